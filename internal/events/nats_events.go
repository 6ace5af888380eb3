// Transfer lifecycle events published on the NATS event stream.
//
// Subjects:
//
//	bridge.transfer.<status>   one event per state transition
//	bridge.alert.stranded      operator alert for stranded funds
package events

import (
	"fmt"
	"log"
	"time"

	"bridge-backend/internal/clients"
	"bridge-backend/internal/models"
)

// TransferEvent is published on every transfer intent state transition
type TransferEvent struct {
	IntentID      string                      `json:"intent_id"`
	Status        models.TransferIntentStatus `json:"status"`
	Account       string                      `json:"account"`
	ChainFrom     int                         `json:"chain_from"`
	ChainTo       int                         `json:"chain_to"`
	Amount        string                      `json:"amount"`
	ReleaseAmount string                      `json:"release_amount"`
	DepositTx     string                      `json:"deposit_tx,omitempty"`
	WithdrawTx    string                      `json:"withdraw_tx,omitempty"`
	Error         string                      `json:"error,omitempty"`
	Timestamp     time.Time                   `json:"timestamp"`
}

// StrandedAlert is the operator alert raised when a release fails after a
// confirmed escrow deposit.
type StrandedAlert struct {
	IntentID  string    `json:"intent_id"`
	Account   string    `json:"account"`
	ChainFrom int       `json:"chain_from"`
	ChainTo   int       `json:"chain_to"`
	Amount    string    `json:"amount"`
	DepositTx string    `json:"deposit_tx"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits transfer events to the NATS stream. Publishing is
// best-effort: a broken stream never blocks the transfer pipeline.
type Publisher struct {
	nats *clients.NATSClient
}

// NewPublisher creates an event publisher. nats may be nil, in which case
// every publish is a logged no-op.
func NewPublisher(nats *clients.NATSClient) *Publisher {
	return &Publisher{nats: nats}
}

// PublishTransferStatus emits a transfer state transition event
func (p *Publisher) PublishTransferStatus(intent *models.TransferIntent) {
	if p.nats == nil {
		return
	}

	event := &TransferEvent{
		IntentID:      intent.ID,
		Status:        intent.Status,
		Account:       intent.Account,
		ChainFrom:     intent.ChainFrom,
		ChainTo:       intent.ChainTo,
		Amount:        intent.Amount,
		ReleaseAmount: intent.ReleaseAmount,
		DepositTx:     intent.DepositTxHash,
		WithdrawTx:    intent.WithdrawTxHash,
		Error:         intent.LastError,
		Timestamp:     time.Now(),
	}

	subject := fmt.Sprintf("bridge.transfer.%s", intent.Status)
	if err := p.nats.PublishJSON(subject, event); err != nil {
		log.Printf("⚠️ [Events] Failed to publish %s for intent %s: %v", subject, intent.ID, err)
	}
}

// PublishStrandedAlert emits the operator alert for stranded funds
func (p *Publisher) PublishStrandedAlert(intent *models.TransferIntent, reason string) {
	if p.nats == nil {
		log.Printf("🚨 [Events] STRANDED transfer %s (no event stream): %s", intent.ID, reason)
		return
	}

	alert := &StrandedAlert{
		IntentID:  intent.ID,
		Account:   intent.Account,
		ChainFrom: intent.ChainFrom,
		ChainTo:   intent.ChainTo,
		Amount:    intent.Amount,
		DepositTx: intent.DepositTxHash,
		Reason:    reason,
		Timestamp: time.Now(),
	}

	if err := p.nats.PublishJSON("bridge.alert.stranded", alert); err != nil {
		log.Printf("🚨 [Events] STRANDED transfer %s, alert publish failed: %v", intent.ID, err)
	}
}
