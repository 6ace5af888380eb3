package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/types"
	"bridge-backend/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainService maintains one ethclient per enabled network and provides
// receipt polling and deposit event verification on top of it.
type ChainService struct {
	mu      sync.RWMutex
	clients map[int]*ethclient.Client // chainID -> client

	confirmTimeout  time.Duration
	confirmInterval time.Duration
}

// NewChainService dials the first healthy RPC endpoint of each enabled network
func NewChainService(cfg *config.Config) *ChainService {
	s := &ChainService{
		clients:         make(map[int]*ethclient.Client),
		confirmTimeout:  time.Duration(cfg.Bridge.ConfirmTimeout) * time.Second,
		confirmInterval: time.Duration(cfg.Bridge.ConfirmInterval) * time.Second,
	}

	for name, network := range cfg.Networks {
		if !network.Enabled {
			continue
		}

		client := dialFirstHealthy(name, network.RPCEndpoints)
		if client == nil {
			log.Printf("❌ [Chain] No reachable RPC endpoint for network %s (chainID=%d)", name, network.ChainID)
			continue
		}
		s.clients[network.ChainID] = client
		log.Printf("✅ [Chain] Connected to network %s (chainID=%d)", name, network.ChainID)
	}

	return s
}

func dialFirstHealthy(name string, endpoints []string) *ethclient.Client {
	for _, endpoint := range endpoints {
		client, err := ethclient.Dial(endpoint)
		if err != nil {
			log.Printf("⚠️ [Chain] Failed to dial %s endpoint %s: %v", name, endpoint, err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err = client.ChainID(ctx)
		cancel()
		if err != nil {
			log.Printf("⚠️ [Chain] Endpoint %s not responding: %v", endpoint, err)
			client.Close()
			continue
		}
		return client
	}
	return nil
}

// GetClient returns the client for a chain
func (s *ChainService) GetClient(chainID int) (*ethclient.Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, exists := s.clients[chainID]
	return client, exists
}

// Close releases all RPC connections
func (s *ChainService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for chainID, client := range s.clients {
		client.Close()
		delete(s.clients, chainID)
	}
}

// WaitForReceipt polls for a transaction receipt with exponential backoff,
// bounded by the configured confirmation timeout. A timeout returns
// ErrConfirmTimeout, which is a "still pending" signal, not a failure:
// callers keep the stored tx hash and re-arm the wait later. A mined receipt
// with status 0 is returned as RevertedTransactionError.
func (s *ChainService) WaitForReceipt(ctx context.Context, chainID int, txHash string) (*gethtypes.Receipt, error) {
	client, exists := s.GetClient(chainID)
	if !exists {
		return nil, &types.TransientChainError{ChainID: chainID, Op: "wait-receipt",
			Err: fmt.Errorf("no client for chainID %d", chainID)}
	}

	hash := common.HexToHash(txHash)
	deadline := time.Now().Add(s.confirmTimeout)
	interval := s.confirmInterval
	maxInterval := 30 * time.Second

	for time.Now().Before(deadline) {
		queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		receipt, err := client.TransactionReceipt(queryCtx, hash)
		cancel()

		if err == nil && receipt != nil {
			if receipt.Status == gethtypes.ReceiptStatusFailed {
				return receipt, &types.RevertedTransactionError{ChainID: chainID, TxHash: txHash}
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}

	return nil, types.ErrConfirmTimeout
}

// FindDepositEvent locates the DepositReceived event in a mined escrow
// transaction and decodes its payload for verification against the intent.
func (s *ChainService) FindDepositEvent(receipt *gethtypes.Receipt, chainID int, bridgeContract string) (*types.DepositReceipt, error) {
	bridgeABI, err := config.BridgeABI()
	if err != nil {
		return nil, err
	}

	event := bridgeABI.Events["DepositReceived"]
	contract := common.HexToAddress(bridgeContract)

	for _, vLog := range receipt.Logs {
		if vLog.Address != contract {
			continue
		}
		if len(vLog.Topics) < 3 || vLog.Topics[0] != event.ID {
			continue
		}

		// asset and account are indexed; amount and data are in the log body.
		unpacked, err := event.Inputs.NonIndexed().Unpack(vLog.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode DepositReceived event: %w", err)
		}
		amount, ok := unpacked[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected amount type in DepositReceived event")
		}
		data, ok := unpacked[1].([32]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected data type in DepositReceived event")
		}

		return &types.DepositReceipt{
			TxHash:      receipt.TxHash.Hex(),
			BlockNumber: receipt.BlockNumber.Uint64(),
			Amount:      amount,
			Asset:       common.BytesToAddress(vLog.Topics[1].Bytes()).Hex(),
			Account:     common.BytesToAddress(vLog.Topics[2].Bytes()).Hex(),
			Correlation: data,
		}, nil
	}

	return nil, fmt.Errorf("no DepositReceived event in transaction %s", receipt.TxHash.Hex())
}

// VerifyDepositAgainstIntent checks the decoded deposit evidence against the
// stored intent fields. Release is only authorized when everything matches.
func VerifyDepositAgainstIntent(deposit *types.DepositReceipt, intentID, account, asset, amount string) error {
	correlation, err := utils.CorrelationFromIntentID(intentID)
	if err != nil {
		return err
	}
	if deposit.Correlation != correlation {
		return fmt.Errorf("deposit correlation mismatch for intent %s", intentID)
	}

	if !addressesEqual(deposit.Account, account) {
		return fmt.Errorf("deposit account %s does not match intent account %s", deposit.Account, account)
	}
	if !addressesEqual(deposit.Asset, asset) {
		return fmt.Errorf("deposit asset %s does not match intent asset %s", deposit.Asset, asset)
	}

	want, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("intent amount %q is not a valid integer", amount)
	}
	if deposit.Amount == nil || deposit.Amount.Cmp(want) != 0 {
		return fmt.Errorf("deposit amount %v does not match intent amount %s", deposit.Amount, amount)
	}

	return nil
}

func addressesEqual(a, b string) bool {
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// RelayerBalance returns the native balance of an account on a chain
func (s *ChainService) RelayerBalance(ctx context.Context, chainID int, account common.Address) (*big.Int, error) {
	client, exists := s.GetClient(chainID)
	if !exists {
		return nil, fmt.Errorf("no client for chainID %d", chainID)
	}
	return client.BalanceAt(ctx, account, nil)
}
