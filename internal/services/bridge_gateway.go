package services

import (
	"context"
	"fmt"
	"math/big"

	"bridge-backend/internal/config"
	"bridge-backend/internal/models"
	"bridge-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// bridgeGateway implements ChainGateway against live RPC endpoints
type bridgeGateway struct {
	chain *ChainService
	relay *RelayService
}

// NewBridgeGateway wires the chain and relay services into the coordinator's
// gateway interface.
func NewBridgeGateway(chain *ChainService, relay *RelayService) ChainGateway {
	return &bridgeGateway{chain: chain, relay: relay}
}

func (g *bridgeGateway) ConfirmDeposit(ctx context.Context, intent *models.TransferIntent) (*types.DepositReceipt, error) {
	networkConfig, err := config.GetNetworkConfigByChainID(intent.ChainFrom)
	if err != nil {
		return nil, err
	}

	receipt, err := g.chain.WaitForReceipt(ctx, intent.ChainFrom, intent.DepositTxHash)
	if err != nil {
		return nil, err
	}

	deposit, err := g.chain.FindDepositEvent(receipt, intent.ChainFrom, networkConfig.BridgeContract)
	if err != nil {
		return nil, err
	}
	if err := VerifyDepositAgainstIntent(deposit, intent.ID, intent.Account, intent.AssetFrom, intent.Amount); err != nil {
		return nil, err
	}
	return deposit, nil
}

func (g *bridgeGateway) SubmitDeposit(ctx context.Context, intent *models.TransferIntent) (string, error) {
	amount, ok := new(big.Int).SetString(intent.Amount, 10)
	if !ok {
		return "", fmt.Errorf("corrupt intent amount %q", intent.Amount)
	}
	return g.relay.SubmitDeposit(ctx, intent.ChainFrom, intent.AssetFrom, intent.Account, amount, intent.ID)
}

func (g *bridgeGateway) SubmitRelease(ctx context.Context, intent *models.TransferIntent, amount *big.Int) (string, error) {
	return g.relay.SubmitRelease(ctx, intent.ChainTo, intent.AssetTo, intent.Account, amount, intent.ID)
}

func (g *bridgeGateway) PriorRelease(ctx context.Context, intentID string) (string, error) {
	return g.relay.PriorRelease(ctx, intentID)
}

func (g *bridgeGateway) ConfirmRelease(ctx context.Context, intent *models.TransferIntent) (*types.WithdrawalReceipt, error) {
	receipt, err := g.chain.WaitForReceipt(ctx, intent.ChainTo, intent.WithdrawTxHash)
	if err != nil {
		return nil, err
	}

	withdrawal := &types.WithdrawalReceipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}
	if amount := g.releasedAmount(receipt, intent.ChainTo); amount != nil {
		withdrawal.Amount = amount
	}
	return withdrawal, nil
}

// releasedAmount extracts the paid-out amount from the WithdrawExecuted event
// when the log is available. Reconciliation is skipped when it is not.
func (g *bridgeGateway) releasedAmount(receipt *gethtypes.Receipt, chainID int) *big.Int {
	networkConfig, err := config.GetNetworkConfigByChainID(chainID)
	if err != nil {
		return nil
	}
	bridgeABI, err := config.BridgeABI()
	if err != nil {
		return nil
	}

	event := bridgeABI.Events["WithdrawExecuted"]
	contract := common.HexToAddress(networkConfig.BridgeContract)

	for _, vLog := range receipt.Logs {
		if vLog.Address != contract || len(vLog.Topics) == 0 || vLog.Topics[0] != event.ID {
			continue
		}
		unpacked, err := event.Inputs.NonIndexed().Unpack(vLog.Data)
		if err != nil {
			return nil
		}
		if amount, ok := unpacked[0].(*big.Int); ok {
			return amount
		}
	}
	return nil
}
