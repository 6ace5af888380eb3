package utils

import (
	"fmt"
	"math/big"
	"strings"

	"bridge-backend/internal/config"
	"bridge-backend/internal/types"
)

// ParseDecimal converts a decimal token-unit string ("99.9") into smallest
// units as a big.Int. Fractional digits beyond decimals are rejected rather
// than truncated.
func ParseDecimal(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	fracPart += strings.Repeat("0", decimals-len(fracPart))

	value, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if neg {
		value.Neg(value)
	}
	return value, nil
}

// FormatDecimal renders smallest units back to a decimal token-unit string,
// trimming trailing zeros from the fraction.
func FormatDecimal(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}

	neg := value.Sign() < 0
	abs := new(big.Int).Abs(value)

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	intPart, fracPart := new(big.Int).DivMod(abs, scale, new(big.Int))

	result := intPart.String()
	if fracPart.Sign() > 0 {
		frac := fmt.Sprintf("%0*s", decimals, fracPart.String())
		frac = strings.TrimRight(frac, "0")
		result += "." + frac
	}
	if neg {
		result = "-" + result
	}
	return result
}

// FeeSchedule holds the protocol fee parameters in smallest units, snapshotted
// from config at construction.
type FeeSchedule struct {
	rateNum *big.Int // fee = amount * rateNum / rateDen, before clamping
	rateDen *big.Int

	minFee    *big.Int
	maxFee    *big.Int
	minAmount *big.Int
	maxAmount *big.Int

	decimals int
}

// NewFeeSchedule builds a FeeSchedule from bridge configuration
func NewFeeSchedule(cfg *config.BridgeConfig) (*FeeSchedule, error) {
	rateNum, rateDen, err := parseRatio(cfg.FeeRate)
	if err != nil {
		return nil, fmt.Errorf("feeRate: %w", err)
	}

	minFee, err := ParseDecimal(cfg.MinFee, cfg.Decimals)
	if err != nil {
		return nil, fmt.Errorf("minFee: %w", err)
	}
	maxFee, err := ParseDecimal(cfg.MaxFee, cfg.Decimals)
	if err != nil {
		return nil, fmt.Errorf("maxFee: %w", err)
	}
	if minFee.Cmp(maxFee) > 0 {
		return nil, fmt.Errorf("minFee %s exceeds maxFee %s", cfg.MinFee, cfg.MaxFee)
	}

	minAmount, err := ParseDecimal(cfg.MinAmount, cfg.Decimals)
	if err != nil {
		return nil, fmt.Errorf("minAmount: %w", err)
	}
	maxAmount, err := ParseDecimal(cfg.MaxAmount, cfg.Decimals)
	if err != nil {
		return nil, fmt.Errorf("maxAmount: %w", err)
	}

	return &FeeSchedule{
		rateNum:   rateNum,
		rateDen:   rateDen,
		minFee:    minFee,
		maxFee:    maxFee,
		minAmount: minAmount,
		maxAmount: maxAmount,
		decimals:  cfg.Decimals,
	}, nil
}

// parseRatio turns a decimal rate string ("0.001") into an integer fraction
func parseRatio(s string) (*big.Int, *big.Int, error) {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}

	num, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, nil, fmt.Errorf("invalid rate %q", s)
	}
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(len(fracPart))), nil)
	return num, den, nil
}

// Decimals returns the token decimals the schedule was built for
func (f *FeeSchedule) Decimals() int { return f.decimals }

// ValidateAmount checks an amount in smallest units against protocol bounds
func (f *FeeSchedule) ValidateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return &types.UserInputError{Field: "amount", Reason: "must be positive"}
	}
	if amount.Cmp(f.minAmount) < 0 {
		return &types.UserInputError{
			Field:  "amount",
			Reason: fmt.Sprintf("below minimum %s", FormatDecimal(f.minAmount, f.decimals)),
		}
	}
	if amount.Cmp(f.maxAmount) > 0 {
		return &types.UserInputError{
			Field:  "amount",
			Reason: fmt.Sprintf("above maximum %s", FormatDecimal(f.maxAmount, f.decimals)),
		}
	}
	return nil
}

// Fee computes the clamped protocol fee for a deposit amount. The proportional
// fee is clamped independently at both bounds: a fee above the cap pays the
// cap, a fee below the floor pays the floor.
func (f *FeeSchedule) Fee(amount *big.Int) *big.Int {
	fee := new(big.Int).Mul(amount, f.rateNum)
	fee.Quo(fee, f.rateDen)

	if fee.Cmp(f.minFee) < 0 {
		return new(big.Int).Set(f.minFee)
	}
	if fee.Cmp(f.maxFee) > 0 {
		return new(big.Int).Set(f.maxFee)
	}
	return fee
}

// ReleaseAmount computes amount - fee, the exact quantity released on the
// destination chain.
func (f *FeeSchedule) ReleaseAmount(amount *big.Int) (*big.Int, error) {
	if err := f.ValidateAmount(amount); err != nil {
		return nil, err
	}
	release := new(big.Int).Sub(amount, f.Fee(amount))
	if release.Sign() <= 0 {
		return nil, &types.UserInputError{Field: "amount", Reason: "fee exceeds amount"}
	}
	return release, nil
}
