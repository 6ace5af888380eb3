package services

import (
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"sync"

	"bridge-backend/internal/config"
	"bridge-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// RelayerKeyService owns the custody keys the relayer signs with. Keys are
// loaded once from the environment (never from config files or source) and
// held in memory only.
type RelayerKeyService struct {
	mu   sync.RWMutex
	keys map[int]*relayerIdentity // chainID -> signing identity
}

type relayerIdentity struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewRelayerKeyService loads the custody key for every enabled network.
// Networks without key material are logged and skipped; release attempts on
// them fail with an AuthorityError instead of a panic.
func NewRelayerKeyService(cfg *config.Config) *RelayerKeyService {
	s := &RelayerKeyService{keys: make(map[int]*relayerIdentity)}

	for name, network := range cfg.Networks {
		if !network.Enabled {
			continue
		}
		if network.PrivateKey == "" {
			log.Printf("⚠️ [RelayerKey] No custody key for network %s (chainID=%d), releases disabled", name, network.ChainID)
			continue
		}

		privateKey, err := crypto.HexToECDSA(network.PrivateKey)
		if err != nil {
			log.Printf("❌ [RelayerKey] Invalid custody key for network %s: %v", name, err)
			continue
		}

		address := crypto.PubkeyToAddress(privateKey.PublicKey)
		if network.RelayerAddress != "" && !common.IsHexAddress(network.RelayerAddress) {
			log.Printf("⚠️ [RelayerKey] Ignoring malformed relayerAddress for network %s", name)
		} else if network.RelayerAddress != "" && common.HexToAddress(network.RelayerAddress) != address {
			log.Printf("❌ [RelayerKey] Custody key for network %s derives %s, config expects %s",
				name, address.Hex(), network.RelayerAddress)
			continue
		}

		s.keys[network.ChainID] = &relayerIdentity{privateKey: privateKey, address: address}
		log.Printf("✅ [RelayerKey] Loaded custody key for network %s (chainID=%d, relayer=%s)",
			name, network.ChainID, address.Hex())
	}

	return s
}

// Address returns the relayer signing address for a chain
func (s *RelayerKeyService) Address(chainID int) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, exists := s.keys[chainID]
	if !exists {
		return common.Address{}, &types.AuthorityError{ChainID: chainID, Reason: "no custody key loaded"}
	}
	return identity.address, nil
}

// HasKey reports whether release signing is possible on a chain
func (s *RelayerKeyService) HasKey(chainID int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.keys[chainID]
	return exists
}

// SignTx signs a transaction with the chain's custody key using EIP-155
func (s *RelayerKeyService) SignTx(chainID int, tx *gethtypes.Transaction) (*gethtypes.Transaction, error) {
	s.mu.RLock()
	identity, exists := s.keys[chainID]
	s.mu.RUnlock()

	if !exists {
		return nil, &types.AuthorityError{ChainID: chainID, Reason: "no custody key loaded"}
	}

	signer := gethtypes.LatestSignerForChainID(big.NewInt(int64(chainID)))
	signed, err := gethtypes.SignTx(tx, signer, identity.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}
