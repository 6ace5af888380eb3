package utils

import (
	"math/big"
	"testing"

	"bridge-backend/internal/config"
	"bridge-backend/internal/types"
)

func testSchedule(t *testing.T) *FeeSchedule {
	t.Helper()
	schedule, err := NewFeeSchedule(&config.BridgeConfig{
		FeeRate:   "0.001",
		MinFee:    "0.014",
		MaxFee:    "0.22",
		MinAmount: "0.05",
		MaxAmount: "1000000",
		Decimals:  18,
	})
	if err != nil {
		t.Fatalf("NewFeeSchedule: %v", err)
	}
	return schedule
}

func mustParse(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := ParseDecimal(s, 18)
	if err != nil {
		t.Fatalf("ParseDecimal(%q): %v", s, err)
	}
	return v
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		input    string
		decimals int
		want     string
		wantErr  bool
	}{
		{"1", 18, "1000000000000000000", false},
		{"99.9", 18, "99900000000000000000", false},
		{"0.014", 18, "14000000000000000", false},
		{"0.05", 2, "5", false},
		{"100000", 18, "100000000000000000000000", false},
		{".5", 18, "500000000000000000", false},
		{"1.123456789012345678", 18, "1123456789012345678", false},
		{"1.1234567890123456789", 18, "", true}, // too many decimal places
		{"", 18, "", true},
		{"abc", 18, "", true},
		{"1.2.3", 18, "", true},
	}

	for _, tt := range tests {
		got, err := ParseDecimal(tt.input, tt.decimals)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDecimal(%q) expected error, got %s", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDecimal(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseDecimal(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"99.9", "99.9"},
		{"0.986", "0.986"},
		{"999999.78", "999999.78"},
		{"1", "1"},
		{"0.014", "0.014"},
	}

	for _, tt := range tests {
		got := FormatDecimal(mustParse(t, tt.input), 18)
		if got != tt.want {
			t.Errorf("FormatDecimal(%s) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestFeeProportionalBand(t *testing.T) {
	schedule := testSchedule(t)

	// 100 units: proportional fee 0.1 sits inside the clamp band.
	amount := mustParse(t, "100")
	fee := schedule.Fee(amount)
	if want := mustParse(t, "0.1"); fee.Cmp(want) != 0 {
		t.Errorf("fee = %s, want %s", FormatDecimal(fee, 18), FormatDecimal(want, 18))
	}

	release, err := schedule.ReleaseAmount(amount)
	if err != nil {
		t.Fatalf("ReleaseAmount: %v", err)
	}
	if want := mustParse(t, "99.9"); release.Cmp(want) != 0 {
		t.Errorf("release = %s, want 99.9", FormatDecimal(release, 18))
	}
}

func TestFeeFloorClamp(t *testing.T) {
	schedule := testSchedule(t)

	// 1 unit: proportional fee 0.001 falls below the 0.014 floor.
	amount := mustParse(t, "1")
	fee := schedule.Fee(amount)
	if want := mustParse(t, "0.014"); fee.Cmp(want) != 0 {
		t.Errorf("fee = %s, want 0.014", FormatDecimal(fee, 18))
	}

	release, err := schedule.ReleaseAmount(amount)
	if err != nil {
		t.Fatalf("ReleaseAmount: %v", err)
	}
	if want := mustParse(t, "0.986"); release.Cmp(want) != 0 {
		t.Errorf("release = %s, want 0.986", FormatDecimal(release, 18))
	}
}

func TestFeeCapClamp(t *testing.T) {
	schedule := testSchedule(t)

	// 1,000,000 units: proportional fee 1000 must clamp to the 0.22 cap,
	// not fall through to the floor.
	amount := mustParse(t, "1000000")
	fee := schedule.Fee(amount)
	if want := mustParse(t, "0.22"); fee.Cmp(want) != 0 {
		t.Errorf("fee = %s, want 0.22", FormatDecimal(fee, 18))
	}

	release, err := schedule.ReleaseAmount(amount)
	if err != nil {
		t.Fatalf("ReleaseAmount: %v", err)
	}
	if want := mustParse(t, "999999.78"); release.Cmp(want) != 0 {
		t.Errorf("release = %s, want 999999.78", FormatDecimal(release, 18))
	}
}

func TestValidateAmountBounds(t *testing.T) {
	schedule := testSchedule(t)

	tests := []struct {
		name    string
		amount  string
		wantErr bool
	}{
		{"zero", "0", true},
		{"below minimum", "0.04", true},
		{"at minimum", "0.05", false},
		{"at maximum", "1000000", false},
		{"above maximum", "1000000.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schedule.ValidateAmount(mustParse(t, tt.amount))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for amount %s", tt.amount)
				}
				var userErr *types.UserInputError
				if !asUserInputError(err, &userErr) {
					t.Errorf("expected UserInputError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for amount %s: %v", tt.amount, err)
			}
		})
	}
}

func TestValidateAmountNegative(t *testing.T) {
	schedule := testSchedule(t)
	neg := new(big.Int).Neg(mustParse(t, "1"))
	if err := schedule.ValidateAmount(neg); err == nil {
		t.Error("expected error for negative amount")
	}
	if err := schedule.ValidateAmount(nil); err == nil {
		t.Error("expected error for nil amount")
	}
}

func asUserInputError(err error, target **types.UserInputError) bool {
	e, ok := err.(*types.UserInputError)
	if ok {
		*target = e
	}
	return ok
}
