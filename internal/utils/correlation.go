package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// CorrelationFromIntentID packs a transfer intent UUID into the bytes32 data
// field carried by both the escrow deposit and the release transaction. The 16
// UUID bytes occupy the low half, the high half stays zero.
func CorrelationFromIntentID(intentID string) ([32]byte, error) {
	var out [32]byte
	id, err := uuid.Parse(intentID)
	if err != nil {
		return out, fmt.Errorf("invalid intent id %q: %w", intentID, err)
	}
	copy(out[16:], id[:])
	return out, nil
}

// IntentIDFromCorrelation recovers the intent UUID from an on-chain data field.
// Rejects values whose high half is non-zero, which cannot have been produced
// by this relayer.
func IntentIDFromCorrelation(data [32]byte) (string, error) {
	for _, b := range data[:16] {
		if b != 0 {
			return "", fmt.Errorf("correlation data is not a packed intent id")
		}
	}
	id, err := uuid.FromBytes(data[16:])
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NormalizeAddress validates a hex address and returns its checksummed form
func NormalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// IsTxHash reports whether s looks like a 32-byte hex transaction hash
func IsTxHash(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
