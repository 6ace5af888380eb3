package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/types"
	"bridge-backend/internal/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChainGateway is the coordinator's view of both chains: confirming escrow
// deposits on the origin chain and submitting/confirming releases on the
// destination chain.
type ChainGateway interface {
	// ConfirmDeposit waits for the intent's deposit transaction and verifies
	// the emitted escrow event against the intent fields.
	ConfirmDeposit(ctx context.Context, intent *models.TransferIntent) (*types.DepositReceipt, error)

	// SubmitDeposit submits a server-signed escrow deposit (dev/faucet flows)
	SubmitDeposit(ctx context.Context, intent *models.TransferIntent) (string, error)

	// SubmitRelease signs and submits the withdraw on the destination chain
	SubmitRelease(ctx context.Context, intent *models.TransferIntent, amount *big.Int) (string, error)

	// PriorRelease returns the hash of a withdraw already signed for the
	// intent, "" when none exists. Consulted before every submission on the
	// resume path.
	PriorRelease(ctx context.Context, intentID string) (string, error)

	// ConfirmRelease waits for the intent's release transaction
	ConfirmRelease(ctx context.Context, intent *models.TransferIntent) (*types.WithdrawalReceipt, error)
}

// StatusNotifier publishes transfer lifecycle events to the event stream
type StatusNotifier interface {
	PublishTransferStatus(intent *models.TransferIntent)
	PublishStrandedAlert(intent *models.TransferIntent, reason string)
}

// StatusPusher pushes transfer updates to connected websocket subscribers
type StatusPusher interface {
	PushTransferUpdate(intent *models.TransferIntent)
}

// CreateTransferParams are the validated inputs for a new transfer intent
type CreateTransferParams struct {
	Account   string
	AssetFrom string
	AssetTo   string
	Amount    *big.Int // smallest units
	ChainFrom int
	ChainTo   int
}

// TransferCoordinator owns the transfer intent state machine. Every
// transition is persisted before the next on-chain action, so a restart can
// always resume from the durable record: escrow confirmation strictly
// precedes release submission, and a failed release strands loudly instead
// of retrying into double-payment.
type TransferCoordinator struct {
	repo         repository.TransferIntentRepository
	strandedRepo repository.StrandedTransferRepository
	gateway      ChainGateway
	fees         *utils.FeeSchedule
	notifier     StatusNotifier
	pusher       StatusPusher

	resumeInterval time.Duration

	driving  sync.Map // intentID -> struct{}, guards concurrent advancement
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewTransferCoordinator creates the coordinator
func NewTransferCoordinator(
	repo repository.TransferIntentRepository,
	strandedRepo repository.StrandedTransferRepository,
	gateway ChainGateway,
	fees *utils.FeeSchedule,
	notifier StatusNotifier,
	pusher StatusPusher,
	resumeInterval time.Duration,
) *TransferCoordinator {
	if resumeInterval <= 0 {
		resumeInterval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TransferCoordinator{
		repo:           repo,
		strandedRepo:   strandedRepo,
		gateway:        gateway,
		fees:           fees,
		notifier:       notifier,
		pusher:         pusher,
		resumeInterval: resumeInterval,
		ctx:            ctx,
		cancel:         cancel,
		stopChan:       make(chan struct{}),
	}
}

// CreateIntent validates the request, snapshots the fee schedule and persists
// a new transfer intent in created status. No chain interaction happens here.
func (c *TransferCoordinator) CreateIntent(ctx context.Context, params *CreateTransferParams) (*models.TransferIntent, error) {
	account, err := utils.NormalizeAddress(params.Account)
	if err != nil {
		return nil, &types.UserInputError{Field: "account", Reason: "not a valid address"}
	}
	assetFrom, err := utils.NormalizeAddress(params.AssetFrom)
	if err != nil {
		return nil, &types.UserInputError{Field: "asset_from", Reason: "not a valid address"}
	}
	assetTo, err := utils.NormalizeAddress(params.AssetTo)
	if err != nil {
		return nil, &types.UserInputError{Field: "asset_to", Reason: "not a valid address"}
	}
	if params.ChainFrom == params.ChainTo {
		return nil, &types.UserInputError{Field: "chain_to", Reason: "origin and destination chains must differ"}
	}

	release, err := c.fees.ReleaseAmount(params.Amount)
	if err != nil {
		return nil, err
	}
	fee := c.fees.Fee(params.Amount)

	intent := &models.TransferIntent{
		ID:            uuid.New().String(),
		Status:        models.TransferStatusCreated,
		Account:       account,
		AssetFrom:     assetFrom,
		AssetTo:       assetTo,
		Amount:        params.Amount.String(),
		ChainFrom:     params.ChainFrom,
		ChainTo:       params.ChainTo,
		Fee:           fee.String(),
		ReleaseAmount: release.String(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := c.repo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to persist transfer intent: %w", err)
	}

	metrics.TransfersInFlight.Inc()
	c.notify(intent)
	log.Printf("✅ [Coordinator] Intent created: ID=%s, Account=%s, Amount=%s, Release=%s",
		intent.ID, account, intent.Amount, intent.ReleaseAmount)
	return intent, nil
}

// AttachDeposit records the user-signed escrow transaction hash and moves the
// intent to deposit_pending. A second submission for the same intent is
// rejected; re-attaching the identical hash is an idempotent no-op.
func (c *TransferCoordinator) AttachDeposit(ctx context.Context, intentID, txHash string) (*models.TransferIntent, error) {
	intent, err := c.repo.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if intent.Status != models.TransferStatusCreated {
		if intent.DepositTxHash == txHash {
			return intent, nil
		}
		return nil, types.ErrDuplicateSubmission
	}

	if err := c.repo.Transition(ctx, intent, models.TransferStatusDepositPending, map[string]interface{}{
		"deposit_tx_hash": txHash,
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrDuplicateSubmission
		}
		return nil, err
	}
	intent.DepositTxHash = txHash

	c.notify(intent)
	log.Printf("📥 [Coordinator] Deposit attached: Intent=%s, TxHash=%s", intentID, txHash)
	return intent, nil
}

// SubmitServerDeposit submits the escrow deposit with the configured
// depositor key (dev and faucet flows) and attaches the resulting hash.
func (c *TransferCoordinator) SubmitServerDeposit(ctx context.Context, intentID string) (*models.TransferIntent, error) {
	intent, err := c.repo.GetByID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != models.TransferStatusCreated {
		return nil, types.ErrDuplicateSubmission
	}

	txHash, err := c.gateway.SubmitDeposit(ctx, intent)
	if err != nil {
		return nil, err
	}
	return c.AttachDeposit(ctx, intentID, txHash)
}

// Advance drives one in-flight intent as far as it can go right now. Waits
// that time out leave the intent in place; the resume sweep re-arms them.
// Safe to call concurrently: only one driver per intent makes progress.
func (c *TransferCoordinator) Advance(ctx context.Context, intent *models.TransferIntent) {
	if _, loaded := c.driving.LoadOrStore(intent.ID, struct{}{}); loaded {
		return
	}
	defer c.driving.Delete(intent.ID)

	for intent.Status.InFlight() {
		var progressed bool
		switch intent.Status {
		case models.TransferStatusDepositPending:
			progressed = c.confirmDeposit(ctx, intent)
		case models.TransferStatusDepositConfirmed:
			progressed = c.beginRelease(ctx, intent)
		case models.TransferStatusWithdrawPending:
			progressed = c.settleRelease(ctx, intent)
		}
		if !progressed {
			return
		}
	}
}

// confirmDeposit settles the escrow step. Returns true when the intent moved
// to a new status.
func (c *TransferCoordinator) confirmDeposit(ctx context.Context, intent *models.TransferIntent) bool {
	deposit, err := c.gateway.ConfirmDeposit(ctx, intent)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrConfirmTimeout):
			log.Printf("⏳ [Coordinator] Deposit still pending: Intent=%s, TxHash=%s", intent.ID, intent.DepositTxHash)
			return false
		case types.IsTransient(err):
			log.Printf("⚠️ [Coordinator] Transient error confirming deposit %s: %v", intent.ID, err)
			return false
		default:
			// Reverted on chain or evidence does not match the intent. Safe
			// failure: no release was ever submitted.
			c.failDeposit(ctx, intent, err)
			return false
		}
	}

	if err := c.repo.Transition(ctx, intent, models.TransferStatusDepositConfirmed, map[string]interface{}{
		"deposit_block_number": &deposit.BlockNumber,
	}); err != nil {
		log.Printf("⚠️ [Coordinator] Lost deposit confirmation race for %s: %v", intent.ID, err)
		return false
	}
	intent.DepositBlockNumber = &deposit.BlockNumber

	c.notify(intent)
	log.Printf("✅ [Coordinator] Deposit confirmed: Intent=%s, Block=%d", intent.ID, deposit.BlockNumber)
	return true
}

// beginRelease persists withdraw_pending before any release submission, so a
// crash between the write and the send can never be mistaken for a fresh
// release opportunity.
func (c *TransferCoordinator) beginRelease(ctx context.Context, intent *models.TransferIntent) bool {
	if err := c.repo.Transition(ctx, intent, models.TransferStatusWithdrawPending, nil); err != nil {
		log.Printf("⚠️ [Coordinator] Lost release transition race for %s: %v", intent.ID, err)
		return false
	}
	c.notify(intent)
	return true
}

// settleRelease submits the release if it has not been submitted yet, then
// waits for its receipt and reconciles the amounts. An empty stored hash is
// not proof that nothing was sent: a crash can lose the hash write after a
// successful send, so a prior submission is always looked up first.
func (c *TransferCoordinator) settleRelease(ctx context.Context, intent *models.TransferIntent) bool {
	if intent.WithdrawTxHash == "" {
		prior, err := c.gateway.PriorRelease(ctx, intent.ID)
		if err != nil {
			// Cannot prove no release is in flight; submitting now could pay
			// out twice. Wait for the next sweep.
			log.Printf("⚠️ [Coordinator] Cannot check for a prior release of %s: %v", intent.ID, err)
			return false
		}

		if prior != "" {
			if err := c.repo.UpdateFields(ctx, intent.ID, map[string]interface{}{
				"withdraw_tx_hash": prior,
			}); err != nil {
				log.Printf("❌ [Coordinator] Failed to persist adopted release hash for %s: %v", intent.ID, err)
			}
			intent.WithdrawTxHash = prior
			log.Printf("🔁 [Coordinator] Adopted prior release submission: Intent=%s, TxHash=%s", intent.ID, prior)
		} else {
			amount, ok := new(big.Int).SetString(intent.ReleaseAmount, 10)
			if !ok {
				c.strand(ctx, intent, fmt.Sprintf("corrupt release amount %q", intent.ReleaseAmount))
				return false
			}

			txHash, err := c.gateway.SubmitRelease(ctx, intent, amount)
			if err != nil {
				if types.IsTransient(err) {
					log.Printf("⚠️ [Coordinator] Transient error submitting release for %s: %v", intent.ID, err)
					return false
				}
				// AuthorityError or revert at submission: escrow is already
				// confirmed, so this is stranded funds, not a retry loop.
				c.strand(ctx, intent, err.Error())
				return false
			}

			if err := c.repo.UpdateFields(ctx, intent.ID, map[string]interface{}{
				"withdraw_tx_hash": txHash,
			}); err != nil {
				log.Printf("❌ [Coordinator] Failed to persist release hash for %s: %v", intent.ID, err)
			}
			intent.WithdrawTxHash = txHash
			log.Printf("📤 [Coordinator] Release submitted: Intent=%s, TxHash=%s", intent.ID, txHash)
		}
	}

	withdrawal, err := c.gateway.ConfirmRelease(ctx, intent)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrConfirmTimeout):
			log.Printf("⏳ [Coordinator] Release still pending: Intent=%s, TxHash=%s", intent.ID, intent.WithdrawTxHash)
			return false
		case types.IsTransient(err):
			return false
		default:
			c.strand(ctx, intent, err.Error())
			return false
		}
	}

	// Reconcile: released amount must equal deposit minus the fee snapshot.
	if withdrawal.Amount != nil && withdrawal.Amount.String() != intent.ReleaseAmount {
		c.strand(ctx, intent, fmt.Sprintf("release amount %s does not match expected %s",
			withdrawal.Amount.String(), intent.ReleaseAmount))
		return false
	}

	now := time.Now()
	if err := c.repo.Transition(ctx, intent, models.TransferStatusCompleted, map[string]interface{}{
		"withdraw_block_number": &withdrawal.BlockNumber,
		"completed_at":          &now,
	}); err != nil {
		log.Printf("⚠️ [Coordinator] Lost completion race for %s: %v", intent.ID, err)
		return false
	}
	intent.WithdrawBlockNumber = &withdrawal.BlockNumber
	intent.CompletedAt = &now

	metrics.TransfersInFlight.Dec()
	metrics.TransferDuration.Observe(now.Sub(intent.CreatedAt).Seconds())
	c.notify(intent)
	log.Printf("🎉 [Coordinator] Transfer completed: Intent=%s, Release=%s, Block=%d",
		intent.ID, intent.ReleaseAmount, withdrawal.BlockNumber)
	return true
}

// failDeposit moves an intent to the safe terminal state
func (c *TransferCoordinator) failDeposit(ctx context.Context, intent *models.TransferIntent, cause error) {
	if err := c.repo.Transition(ctx, intent, models.TransferStatusDepositFailed, map[string]interface{}{
		"last_error": cause.Error(),
	}); err != nil {
		log.Printf("❌ [Coordinator] Failed to mark deposit failure for %s: %v", intent.ID, err)
		return
	}
	intent.LastError = cause.Error()

	metrics.TransfersInFlight.Dec()
	c.notify(intent)
	log.Printf("❌ [Coordinator] Deposit failed (no funds moved): Intent=%s, Cause=%v", intent.ID, cause)
}

// strand marks a transfer whose escrow succeeded but whose release did not.
// Funds are locked on the origin chain with nothing paid out, so this is the
// loudest failure path: a stranded record, an operator alert and a metric.
func (c *TransferCoordinator) strand(ctx context.Context, intent *models.TransferIntent, reason string) {
	if err := c.repo.Transition(ctx, intent, models.TransferStatusWithdrawFailed, map[string]interface{}{
		"last_error": reason,
	}); err != nil {
		log.Printf("❌ [Coordinator] Failed to mark stranded transfer %s: %v", intent.ID, err)
		return
	}
	intent.LastError = reason

	stranded := &models.StrandedTransfer{
		ID:            uuid.New().String(),
		IntentID:      intent.ID,
		Status:        models.StrandedTransferStatusPending,
		Account:       intent.Account,
		AssetTo:       intent.AssetTo,
		ChainTo:       intent.ChainTo,
		ReleaseAmount: intent.ReleaseAmount,
		DepositTxHash: intent.DepositTxHash,
		LastError:     reason,
		OriginalError: reason,
		MaxRetries:    10,
		NextRetryAt:   time.Now().Add(10 * time.Second),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := c.strandedRepo.Create(ctx, stranded); err != nil {
		log.Printf("❌ [Coordinator] Failed to record stranded transfer %s: %v", intent.ID, err)
	}

	metrics.TransfersInFlight.Dec()
	metrics.StrandedTransfersTotal.Inc()
	c.notify(intent)
	c.notifier.PublishStrandedAlert(intent, reason)
	log.Printf("🚨 [Coordinator] Transfer STRANDED: Intent=%s, DepositTx=%s, Reason=%s",
		intent.ID, intent.DepositTxHash, reason)
}

func (c *TransferCoordinator) notify(intent *models.TransferIntent) {
	metrics.TransfersTotal.WithLabelValues(string(intent.Status)).Inc()
	if c.notifier != nil {
		c.notifier.PublishTransferStatus(intent)
	}
	if c.pusher != nil {
		c.pusher.PushTransferUpdate(intent)
	}
}

// Start resumes in-flight transfers from the durable store and begins the
// periodic resume sweep.
func (c *TransferCoordinator) Start() {
	log.Printf("🚀 [Coordinator] Starting transfer coordinator...")

	c.resumeInFlight()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.resumeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.resumeInFlight()
			}
		}
	}()
}

// Stop cancels in-flight confirmation waits and blocks until every driver
// goroutine has exited.
func (c *TransferCoordinator) Stop() {
	close(c.stopChan)
	c.cancel()
	c.wg.Wait()
	log.Printf("🛑 [Coordinator] Transfer coordinator stopped")
}

// AdvanceAsync drives the intent on a coordinator-owned goroutine whose
// context is canceled by Stop.
func (c *TransferCoordinator) AdvanceAsync(intent *models.TransferIntent) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Advance(c.ctx, intent)
	}()
}

func (c *TransferCoordinator) resumeInFlight() {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	intents, err := c.repo.FindInFlight(ctx)
	cancel()
	if err != nil {
		log.Printf("❌ [Coordinator] Failed to query in-flight transfers: %v", err)
		return
	}
	if len(intents) == 0 {
		return
	}

	log.Printf("🔄 [Coordinator] Resuming %d in-flight transfer(s)", len(intents))
	for _, intent := range intents {
		c.AdvanceAsync(intent)
	}
}
