package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/models"
	"bridge-backend/internal/types"
	"bridge-backend/internal/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// bridgeCallParams is the JSON payload stored in the durable queue row for a
// bridge contract call.
type bridgeCallParams struct {
	Asset    string `json:"asset"`
	Amount   string `json:"amount"`
	Account  string `json:"account"`
	IntentID string `json:"intent_id"`
}

// faucetCallParams is the stored payload for a faucet supply call
type faucetCallParams struct {
	Assets  []string `json:"assets"`
	Amounts []string `json:"amounts"`
	Account string   `json:"account"`
}

// RelayService builds, signs and submits bridge contract transactions. Release
// withdrawals are signed with the chain's custody key; dev-mode deposits use
// the optional depositor key. Submission goes through the queue lock so one
// signing address never races for a nonce.
type RelayService struct {
	chain *ChainService
	keys  *RelayerKeyService
	queue *TransactionQueueService
}

// NewRelayService creates a relay service
func NewRelayService(chain *ChainService, keys *RelayerKeyService, queue *TransactionQueueService) *RelayService {
	return &RelayService{chain: chain, keys: keys, queue: queue}
}

// SubmitRelease signs and submits the withdraw call on the destination chain.
// Returns the transaction hash as soon as the transaction is on the wire;
// confirmation is the caller's job.
func (s *RelayService) SubmitRelease(ctx context.Context, chainID int, asset, account string, amount *big.Int, intentID string) (string, error) {
	fromAddress, err := s.keys.Address(chainID)
	if err != nil {
		return "", err
	}

	correlation, err := utils.CorrelationFromIntentID(intentID)
	if err != nil {
		return "", err
	}

	bridgeABI, err := config.BridgeABI()
	if err != nil {
		return "", err
	}
	calldata, err := bridgeABI.Pack("withdraw",
		common.HexToAddress(asset), amount, common.HexToAddress(account), correlation)
	if err != nil {
		return "", fmt.Errorf("failed to pack withdraw call: %w", err)
	}

	networkConfig, err := config.GetNetworkConfigByChainID(chainID)
	if err != nil {
		return "", err
	}

	params := &bridgeCallParams{Asset: asset, Amount: amount.String(), Account: account, IntentID: intentID}
	return s.submitContractCall(ctx, chainID, fromAddress, common.HexToAddress(networkConfig.BridgeContract),
		calldata, models.PendingTransactionTypeWithdraw, intentID, params,
		func(tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
			return s.keys.SignTx(chainID, tx)
		})
}

// SubmitDeposit signs and submits the escrow deposit on the origin chain using
// the network's depositor key. Production deposits are signed by user wallets;
// this path serves dev and faucet-funded flows only.
func (s *RelayService) SubmitDeposit(ctx context.Context, chainID int, asset, account string, amount *big.Int, intentID string) (string, error) {
	networkConfig, err := config.GetNetworkConfigByChainID(chainID)
	if err != nil {
		return "", err
	}
	if networkConfig.DepositorKey == "" {
		return "", &types.AuthorityError{ChainID: chainID, Reason: "no depositor key configured"}
	}

	depositorKey, err := crypto.HexToECDSA(networkConfig.DepositorKey)
	if err != nil {
		return "", &types.AuthorityError{ChainID: chainID, Reason: "malformed depositor key"}
	}
	fromAddress := crypto.PubkeyToAddress(depositorKey.PublicKey)

	correlation, err := utils.CorrelationFromIntentID(intentID)
	if err != nil {
		return "", err
	}

	bridgeABI, err := config.BridgeABI()
	if err != nil {
		return "", err
	}
	calldata, err := bridgeABI.Pack("deposit",
		common.HexToAddress(asset), amount, common.HexToAddress(account), correlation)
	if err != nil {
		return "", fmt.Errorf("failed to pack deposit call: %w", err)
	}

	signer := gethtypes.LatestSignerForChainID(big.NewInt(int64(chainID)))
	params := &bridgeCallParams{Asset: asset, Amount: amount.String(), Account: account, IntentID: intentID}
	return s.submitContractCall(ctx, chainID, fromAddress, common.HexToAddress(networkConfig.BridgeContract),
		calldata, models.PendingTransactionTypeDeposit, intentID, params,
		func(tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
			return gethtypes.SignTx(tx, signer, depositorKey)
		})
}

// SubmitFaucet signs and submits a testnet faucet supply call with the
// relayer key.
func (s *RelayService) SubmitFaucet(ctx context.Context, chainID int, assets []string, amounts []*big.Int, account string) (string, error) {
	fromAddress, err := s.keys.Address(chainID)
	if err != nil {
		return "", err
	}

	networkConfig, err := config.GetNetworkConfigByChainID(chainID)
	if err != nil {
		return "", err
	}
	if networkConfig.FaucetContract == "" {
		return "", fmt.Errorf("no faucet contract configured for chainID %d", chainID)
	}

	assetAddrs := make([]common.Address, len(assets))
	for i, a := range assets {
		assetAddrs[i] = common.HexToAddress(a)
	}

	faucetABI, err := config.FaucetABI()
	if err != nil {
		return "", err
	}
	calldata, err := faucetABI.Pack("supply", assetAddrs, amounts, common.HexToAddress(account))
	if err != nil {
		return "", fmt.Errorf("failed to pack supply call: %w", err)
	}

	amountStrs := make([]string, len(amounts))
	for i, a := range amounts {
		amountStrs[i] = a.String()
	}
	params := &faucetCallParams{Assets: assets, Amounts: amountStrs, Account: account}
	return s.submitContractCall(ctx, chainID, fromAddress, common.HexToAddress(networkConfig.FaucetContract),
		calldata, models.PendingTransactionTypeFaucet, "", params,
		func(tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
			return s.keys.SignTx(chainID, tx)
		})
}

// PriorRelease returns the hash of a withdraw already signed for this intent,
// or "" when none exists. Resume paths consult it before submitting so a lost
// intent-side hash write cannot turn into a second payout.
func (s *RelayService) PriorRelease(ctx context.Context, intentID string) (string, error) {
	pendingTx, err := s.queue.FindSignedByIntent(ctx, intentID, models.PendingTransactionTypeWithdraw)
	if err != nil {
		return "", &types.TransientChainError{Op: "prior-release", Err: err}
	}
	if pendingTx == nil {
		return "", nil
	}
	return pendingTx.TxHash, nil
}

// submitContractCall performs the locked build-sign-send sequence with a
// durable queue row on both sides of the wire.
func (s *RelayService) submitContractCall(
	ctx context.Context,
	chainID int,
	fromAddress, toAddress common.Address,
	calldata []byte,
	txType models.PendingTransactionType,
	intentID string,
	params interface{},
	sign func(*gethtypes.Transaction) (*gethtypes.Transaction, error),
) (string, error) {
	client, exists := s.chain.GetClient(chainID)
	if !exists {
		return "", &types.TransientChainError{ChainID: chainID, Op: string(txType),
			Err: fmt.Errorf("no client for chainID %d", chainID)}
	}

	networkConfig, err := config.GetNetworkConfigByChainID(chainID)
	if err != nil {
		return "", err
	}

	lock := s.queue.LockFor(fromAddress.Hex(), chainID)
	lock.Lock()
	defer lock.Unlock()

	pendingTx, err := s.queue.Record(txType, fromAddress.Hex(), chainID, intentID, params)
	if err != nil {
		return "", err
	}

	nonceCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	nonce, err := client.PendingNonceAt(nonceCtx, fromAddress)
	cancel()
	if err != nil {
		s.queue.MarkFailed(pendingTx, err.Error())
		return "", &types.TransientChainError{ChainID: chainID, Op: "nonce", Err: err}
	}

	gasPrice := s.resolveGasPrice(ctx, client, networkConfig)
	gasLimit, err := s.resolveGasLimit(ctx, client, networkConfig, fromAddress, toAddress, calldata)
	if err != nil {
		s.queue.MarkFailed(pendingTx, err.Error())
		return "", err
	}

	tx := gethtypes.NewTransaction(nonce, toAddress, big.NewInt(0), gasLimit, gasPrice, calldata)
	signedTx, err := sign(tx)
	if err != nil {
		s.queue.MarkFailed(pendingTx, err.Error())
		return "", err
	}

	// The hash and raw bytes go to disk before the send. If the process dies
	// between the send and any later write, recovery finds this row and
	// re-checks by hash instead of paying out a second time.
	txHash := signedTx.Hash().Hex()
	rawTx, err := signedTx.MarshalBinary()
	if err != nil {
		s.queue.MarkFailed(pendingTx, err.Error())
		return "", fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	if err := s.queue.MarkSigned(pendingTx, txHash, nonce, hexutil.Encode(rawTx)); err != nil {
		s.queue.MarkFailed(pendingTx, err.Error())
		return "", &types.TransientChainError{ChainID: chainID, Op: "persist-signed", Err: err}
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = client.SendTransaction(sendCtx, signedTx)
	cancel()
	if err != nil {
		s.queue.MarkFailed(pendingTx, err.Error())
		return "", &types.TransientChainError{ChainID: chainID, Op: "send", Err: err}
	}

	s.queue.MarkSubmitted(pendingTx)

	log.Printf("📤 [Relay] %s submitted: ChainID=%d, From=%s, TxHash=%s, Nonce=%d",
		txType, chainID, fromAddress.Hex(), txHash, nonce)
	return txHash, nil
}

func (s *RelayService) resolveGasPrice(ctx context.Context, client *ethclient.Client, networkConfig *config.NetworkConfig) *big.Int {
	if networkConfig.GasPrice != "" && networkConfig.GasPrice != "auto" {
		if gasPrice, ok := new(big.Int).SetString(networkConfig.GasPrice, 10); ok {
			return gasPrice
		}
	}

	priceCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	suggested, err := client.SuggestGasPrice(priceCtx)
	if err != nil {
		log.Printf("⚠️ [Relay] Failed to get gas price, using fallback: %v", err)
		return big.NewInt(5000000000) // 5 Gwei
	}

	// 20% headroom over the node's suggestion.
	gasPrice := new(big.Int).Mul(suggested, big.NewInt(120))
	return gasPrice.Div(gasPrice, big.NewInt(100))
}

func (s *RelayService) resolveGasLimit(ctx context.Context, client *ethclient.Client, networkConfig *config.NetworkConfig, from, to common.Address, calldata []byte) (uint64, error) {
	if networkConfig.GasLimit > 0 {
		return networkConfig.GasLimit, nil
	}

	estimateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	gasLimit, err := client.EstimateGas(estimateCtx, ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		return 0, &types.TransientChainError{ChainID: networkConfig.ChainID, Op: "estimate-gas", Err: err}
	}
	return gasLimit * 2, nil
}
