package models

import (
	"time"
)

// TransferIntentStatus transfer intent state machine
type TransferIntentStatus string

const (
	TransferStatusCreated          TransferIntentStatus = "created"           // intent recorded, deposit not yet submitted
	TransferStatusDepositPending   TransferIntentStatus = "deposit_pending"   // escrow tx submitted, awaiting confirmation
	TransferStatusDepositConfirmed TransferIntentStatus = "deposit_confirmed" // escrow mined and verified, custody risk owned
	TransferStatusWithdrawPending  TransferIntentStatus = "withdraw_pending"  // release tx submitted, awaiting confirmation
	TransferStatusCompleted        TransferIntentStatus = "completed"         // both receipts present, amounts reconciled

	// terminal failure states
	TransferStatusDepositFailed  TransferIntentStatus = "deposit_failed"  // safe: no funds moved
	TransferStatusWithdrawFailed TransferIntentStatus = "withdraw_failed" // unsafe: escrow funds stranded on origin chain
)

// legalTransitions maps each status to the statuses it may advance to.
// Escrow confirmation must strictly precede release submission, so there is
// no edge that skips deposit_confirmed.
var legalTransitions = map[TransferIntentStatus][]TransferIntentStatus{
	TransferStatusCreated:          {TransferStatusDepositPending, TransferStatusDepositFailed},
	TransferStatusDepositPending:   {TransferStatusDepositConfirmed, TransferStatusDepositFailed},
	TransferStatusDepositConfirmed: {TransferStatusWithdrawPending, TransferStatusWithdrawFailed},
	TransferStatusWithdrawPending:  {TransferStatusCompleted, TransferStatusWithdrawFailed},
}

// CanTransition reports whether moving from to next is a legal state change.
func (s TransferIntentStatus) CanTransition(next TransferIntentStatus) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is a terminal state
func (s TransferIntentStatus) IsTerminal() bool {
	switch s {
	case TransferStatusCompleted, TransferStatusDepositFailed, TransferStatusWithdrawFailed:
		return true
	}
	return false
}

// InFlight reports whether a transfer in this status still needs the
// coordinator to drive it forward.
func (s TransferIntentStatus) InFlight() bool {
	switch s {
	case TransferStatusDepositPending, TransferStatusDepositConfirmed, TransferStatusWithdrawPending:
		return true
	}
	return false
}

// TransferIntent is the durable record of one cross-chain transfer attempt.
// The ID doubles as the correlation identifier carried in the on-chain data
// field, so one intent maps to at most one deposit and one release.
type TransferIntent struct {
	ID     string               `json:"id" gorm:"primaryKey;size:36"` // UUID, correlation identifier
	Status TransferIntentStatus `json:"status" gorm:"not null;default:created;index"`

	Account   string `json:"account" gorm:"not null;index;size:42"` // origin-chain depositor address
	AssetFrom string `json:"asset_from" gorm:"not null;size:42"`    // token contract on the origin chain
	AssetTo   string `json:"asset_to" gorm:"not null;size:42"`      // token contract on the destination chain
	Amount    string `json:"amount" gorm:"not null"`                // deposit amount, smallest units, decimal string

	ChainFrom int `json:"chain_from" gorm:"not null;index"`
	ChainTo   int `json:"chain_to" gorm:"not null"`

	// Fee snapshot taken at creation so a later config change cannot break
	// reconciliation of an in-flight transfer.
	Fee           string `json:"fee" gorm:"not null"`            // smallest units
	ReleaseAmount string `json:"release_amount" gorm:"not null"` // Amount - Fee, smallest units

	// Deposit receipt (escrow step evidence)
	DepositTxHash      string  `json:"deposit_tx_hash" gorm:"index;size:66"`
	DepositBlockNumber *uint64 `json:"deposit_block_number"`

	// Withdrawal receipt (release step artifact)
	WithdrawTxHash      string  `json:"withdraw_tx_hash" gorm:"size:66"`
	WithdrawBlockNumber *uint64 `json:"withdraw_block_number"`

	LastError string `json:"last_error" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName specifies the table name
func (TransferIntent) TableName() string {
	return "transfer_intents"
}
