package utils

import (
	"testing"

	"github.com/google/uuid"
)

func TestCorrelationRoundTrip(t *testing.T) {
	id := uuid.New().String()

	data, err := CorrelationFromIntentID(id)
	if err != nil {
		t.Fatalf("CorrelationFromIntentID: %v", err)
	}
	for i := 0; i < 16; i++ {
		if data[i] != 0 {
			t.Fatalf("high half byte %d = %x, want zero padding", i, data[i])
		}
	}

	got, err := IntentIDFromCorrelation(data)
	if err != nil {
		t.Fatalf("IntentIDFromCorrelation: %v", err)
	}
	if got != id {
		t.Errorf("round trip = %s, want %s", got, id)
	}
}

func TestCorrelationRejectsInvalidID(t *testing.T) {
	if _, err := CorrelationFromIntentID("not-a-uuid"); err == nil {
		t.Error("expected error for malformed intent id")
	}
}

func TestCorrelationRejectsForeignData(t *testing.T) {
	// Amount-style payloads fill the high bytes and must not decode.
	var data [32]byte
	data[0] = 0x01
	if _, err := IntentIDFromCorrelation(data); err == nil {
		t.Error("expected error for non-zero high half")
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("NormalizeAddress: %v", err)
	}
	if got != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Errorf("checksum = %s", got)
	}

	if _, err := NormalizeAddress("0x123"); err == nil {
		t.Error("expected error for short address")
	}
}

func TestIsTxHash(t *testing.T) {
	valid := "0x" + "ab12" + "00000000000000000000000000000000000000000000000000000000" + "cd34"
	if !IsTxHash(valid) {
		t.Errorf("IsTxHash(%s) = false", valid)
	}
	for _, bad := range []string{"", "0x12", "ab12", valid + "00", "0x" + "zz" + valid[4:]} {
		if IsTxHash(bad) {
			t.Errorf("IsTxHash(%q) = true", bad)
		}
	}
}
