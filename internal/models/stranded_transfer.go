package models

import (
	"time"
)

// StrandedTransferStatus recovery status of a stranded transfer
type StrandedTransferStatus string

const (
	StrandedTransferStatusPending   StrandedTransferStatus = "pending"   // waiting for retry
	StrandedTransferStatusRetrying  StrandedTransferStatus = "retrying"  // retry in progress
	StrandedTransferStatusRecovered StrandedTransferStatus = "recovered" // release eventually succeeded
	StrandedTransferStatusAbandoned StrandedTransferStatus = "abandoned" // retries exhausted or operator gave up
)

// StrandedTransfer records a transfer whose escrow deposit confirmed but whose
// release failed. Funds are locked on the origin chain until the release is
// retried successfully or an operator reconciles out of band, so these rows
// must never be silently dropped.
type StrandedTransfer struct {
	ID       string                 `json:"id" gorm:"primaryKey;size:36"` // UUID
	IntentID string                 `json:"intent_id" gorm:"not null;uniqueIndex;size:36"`
	Status   StrandedTransferStatus `json:"status" gorm:"not null;default:pending;index"`

	Account       string `json:"account" gorm:"size:42"`
	AssetTo       string `json:"asset_to" gorm:"size:42"`
	ChainTo       int    `json:"chain_to"`
	ReleaseAmount string `json:"release_amount"` // smallest units

	DepositTxHash  string `json:"deposit_tx_hash" gorm:"size:66"` // evidence of locked funds
	WithdrawTxHash string `json:"withdraw_tx_hash" gorm:"size:66"`

	RetryCount  int       `json:"retry_count" gorm:"default:0"`
	MaxRetries  int       `json:"max_retries" gorm:"default:10"`
	NextRetryAt time.Time `json:"next_retry_at"`

	LastError     string `json:"last_error" gorm:"type:text"`
	OriginalError string `json:"original_error" gorm:"type:text"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
}

// TableName specifies the table name
func (StrandedTransfer) TableName() string {
	return "stranded_transfers"
}

// CalculateNextRetryTime returns the next retry time with exponential backoff:
// 10s, 20s, 40s, ... capped at 10 minutes.
func (st *StrandedTransfer) CalculateNextRetryTime() time.Time {
	baseDelay := 10 * time.Second

	delay := baseDelay * time.Duration(1<<uint(st.RetryCount))
	maxDelay := 10 * time.Minute

	if delay > maxDelay {
		delay = maxDelay
	}

	return time.Now().Add(delay)
}

// ShouldRetry reports whether the transfer is due for another release attempt
func (st *StrandedTransfer) ShouldRetry() bool {
	return st.Status == StrandedTransferStatusPending &&
		st.RetryCount < st.MaxRetries &&
		time.Now().After(st.NextRetryAt)
}

// IncrementRetry records a failed attempt and schedules the next one
func (st *StrandedTransfer) IncrementRetry(errorMsg string) {
	st.RetryCount++
	st.LastError = errorMsg
	st.NextRetryAt = st.CalculateNextRetryTime()

	if st.RetryCount >= st.MaxRetries {
		st.Status = StrandedTransferStatusAbandoned
		now := time.Now()
		st.ResolvedAt = &now
	}
}

// MarkAsRecovered records the release that finally succeeded
func (st *StrandedTransfer) MarkAsRecovered(actualTxHash string) {
	st.Status = StrandedTransferStatusRecovered
	st.WithdrawTxHash = actualTxHash
	now := time.Now()
	st.ResolvedAt = &now
}
