package models

import "testing"

func TestTransferStatusTransitions(t *testing.T) {
	tests := []struct {
		from    TransferIntentStatus
		to      TransferIntentStatus
		allowed bool
	}{
		{TransferStatusCreated, TransferStatusDepositPending, true},
		{TransferStatusCreated, TransferStatusDepositFailed, true},
		{TransferStatusDepositPending, TransferStatusDepositConfirmed, true},
		{TransferStatusDepositPending, TransferStatusDepositFailed, true},
		{TransferStatusDepositConfirmed, TransferStatusWithdrawPending, true},
		{TransferStatusDepositConfirmed, TransferStatusWithdrawFailed, true},
		{TransferStatusWithdrawPending, TransferStatusCompleted, true},
		{TransferStatusWithdrawPending, TransferStatusWithdrawFailed, true},

		// Release may never be reached without a confirmed deposit.
		{TransferStatusCreated, TransferStatusWithdrawPending, false},
		{TransferStatusDepositPending, TransferStatusWithdrawPending, false},
		{TransferStatusCreated, TransferStatusCompleted, false},
		{TransferStatusDepositPending, TransferStatusCompleted, false},
		{TransferStatusDepositConfirmed, TransferStatusCompleted, false},

		// Terminal states stay terminal for the automatic pipeline.
		{TransferStatusCompleted, TransferStatusWithdrawPending, false},
		{TransferStatusDepositFailed, TransferStatusDepositPending, false},
		{TransferStatusWithdrawFailed, TransferStatusWithdrawPending, false},

		// No going backwards.
		{TransferStatusDepositConfirmed, TransferStatusDepositPending, false},
		{TransferStatusWithdrawPending, TransferStatusDepositConfirmed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.allowed {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestStatusClassification(t *testing.T) {
	terminal := []TransferIntentStatus{TransferStatusCompleted, TransferStatusDepositFailed, TransferStatusWithdrawFailed}
	inFlight := []TransferIntentStatus{TransferStatusDepositPending, TransferStatusDepositConfirmed, TransferStatusWithdrawPending}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.InFlight() {
			t.Errorf("%s should not be in flight", s)
		}
	}
	for _, s := range inFlight {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
		if !s.InFlight() {
			t.Errorf("%s should be in flight", s)
		}
	}
	if TransferStatusCreated.IsTerminal() || TransferStatusCreated.InFlight() {
		t.Error("created is neither terminal nor in flight")
	}
}
