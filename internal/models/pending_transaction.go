package models

import (
	"time"
)

// PendingTransactionStatus relayer transaction queue status
type PendingTransactionStatus string

const (
	PendingTransactionStatusProcessing PendingTransactionStatus = "processing" // being signed/submitted
	PendingTransactionStatusSubmitted  PendingTransactionStatus = "submitted"  // on the wire, awaiting receipt
	PendingTransactionStatusConfirmed  PendingTransactionStatus = "confirmed"  // mined successfully
	PendingTransactionStatusFailed     PendingTransactionStatus = "failed"     // send failed or reverted on chain
)

// PendingTransactionType transaction kind in the relayer queue
type PendingTransactionType string

const (
	PendingTransactionTypeWithdraw PendingTransactionType = "withdraw"
	PendingTransactionTypeDeposit  PendingTransactionType = "deposit"
	PendingTransactionTypeFaucet   PendingTransactionType = "faucet"
)

// PendingTransaction is a durable row in the per-(relayer address, chain)
// transaction queue. Each row is one submission attempt; retry policy lives
// with the caller that owns the transfer. The hash and signed raw bytes are
// persisted before the transaction reaches the wire, so recovery can always
// tell "never sent" from "sent but the write-back was lost" and re-check or
// re-broadcast by hash instead of double-submitting.
type PendingTransaction struct {
	ID      string                   `json:"id" gorm:"primaryKey;size:36"` // UUID
	Type    PendingTransactionType   `json:"type" gorm:"not null"`
	Status  PendingTransactionStatus `json:"status" gorm:"not null;default:processing;index"`
	Address string                   `json:"address" gorm:"not null;index:idx_address_chain;size:42"` // signing account
	ChainID int                      `json:"chain_id" gorm:"not null;index:idx_address_chain"`
	Nonce   uint64                   `json:"nonce" gorm:"not null"` // allocated at signing time

	TxHash      string  `json:"tx_hash" gorm:"size:66"`   // set at signing, before the send
	TxData      string  `json:"tx_data" gorm:"type:text"` // JSON-serialized request parameters
	RawTx       string  `json:"raw_tx" gorm:"type:text"`  // signed transaction bytes, hex
	BlockNumber *uint64 `json:"block_number"`

	// The transfer intent this row serves.
	IntentID string `json:"intent_id" gorm:"index;size:36"`

	LastError string `json:"last_error" gorm:"type:text"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

// TableName specifies the table name
func (PendingTransaction) TableName() string {
	return "pending_transactions"
}
