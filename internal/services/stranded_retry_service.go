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

	"gorm.io/gorm"
)

// StrandedRetryService periodically retries the release of stranded
// transfers with exponential backoff. A recovery re-arms the intent through
// the coordinator's normal settle path so completion evidence stays
// consistent.
type StrandedRetryService struct {
	strandedRepo repository.StrandedTransferRepository
	intentRepo   repository.TransferIntentRepository
	gateway      ChainGateway

	checkInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewStrandedRetryService creates the retry service
func NewStrandedRetryService(
	strandedRepo repository.StrandedTransferRepository,
	intentRepo repository.TransferIntentRepository,
	gateway ChainGateway,
) *StrandedRetryService {
	return &StrandedRetryService{
		strandedRepo:  strandedRepo,
		intentRepo:    intentRepo,
		gateway:       gateway,
		checkInterval: 30 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the periodic retry sweep
func (s *StrandedRetryService) Start() {
	log.Printf("🚀 [StrandedRetry] Starting stranded transfer retry service...")
	s.requeueStale()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Stop terminates the retry sweep
func (s *StrandedRetryService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Printf("🛑 [StrandedRetry] Stranded transfer retry service stopped")
}

// requeueStale returns rows left in retrying by a crash to the pending pool.
// Anything older than the stale window cannot still be a live retry.
func (s *StrandedRetryService) requeueStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	requeued, err := s.strandedRepo.RequeueStaleRetrying(ctx, time.Now().Add(-10*time.Minute))
	if err != nil {
		log.Printf("❌ [StrandedRetry] Failed to requeue stale retries: %v", err)
		return
	}
	if requeued > 0 {
		log.Printf("🔄 [StrandedRetry] Requeued %d stale retrying transfer(s)", requeued)
	}
}

func (s *StrandedRetryService) sweep() {
	s.requeueStale()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	due, err := s.strandedRepo.FindDueForRetry(ctx, 10)
	if err != nil {
		log.Printf("❌ [StrandedRetry] Failed to query due retries: %v", err)
		return
	}

	for _, stranded := range due {
		if !stranded.ShouldRetry() {
			continue
		}
		if err := s.RetryOne(ctx, stranded); err != nil {
			log.Printf("⚠️ [StrandedRetry] Retry failed for intent %s: %v", stranded.IntentID, err)
		}
	}
}

// RetryOne attempts the release of one stranded transfer. Also used by the
// admin recovery API for operator-triggered retries.
func (s *StrandedRetryService) RetryOne(ctx context.Context, stranded *models.StrandedTransfer) error {
	stranded.Status = models.StrandedTransferStatusRetrying
	if err := s.strandedRepo.Save(ctx, stranded); err != nil {
		return err
	}

	intent, err := s.intentRepo.GetByID(ctx, stranded.IntentID)
	if err != nil {
		s.recordFailure(ctx, stranded, fmt.Sprintf("intent lookup failed: %v", err))
		return err
	}

	if intent.Status != models.TransferStatusWithdrawFailed {
		// Someone else already recovered or reconciled this transfer.
		stranded.MarkAsRecovered(intent.WithdrawTxHash)
		return s.strandedRepo.Save(ctx, stranded)
	}

	amount, ok := new(big.Int).SetString(stranded.ReleaseAmount, 10)
	if !ok {
		s.recordFailure(ctx, stranded, fmt.Sprintf("corrupt release amount %q", stranded.ReleaseAmount))
		return fmt.Errorf("corrupt release amount %q", stranded.ReleaseAmount)
	}

	log.Printf("🔄 [StrandedRetry] Retrying release: Intent=%s, Attempt=%d/%d",
		stranded.IntentID, stranded.RetryCount+1, stranded.MaxRetries)

	// Re-arm the intent BEFORE anything reaches the wire. The status guard on
	// Reactivate also serializes against a concurrent coordinator driver: if
	// someone else already owns this intent, no second release goes out.
	if err := s.intentRepo.Reactivate(ctx, intent); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		s.recordFailure(ctx, stranded, fmt.Sprintf("failed to re-arm intent: %v", err))
		return err
	}

	txHash, err := s.gateway.SubmitRelease(ctx, intent, amount)
	if err != nil {
		// Hand the intent back to the stranded state; the queue row written
		// before the send covers the case where this write is lost.
		if terr := s.intentRepo.Transition(ctx, intent, models.TransferStatusWithdrawFailed, map[string]interface{}{
			"last_error": err.Error(),
		}); terr != nil {
			log.Printf("⚠️ [StrandedRetry] Failed to re-strand intent %s: %v", intent.ID, terr)
		}
		s.recordFailure(ctx, stranded, err.Error())
		return err
	}

	if err := s.intentRepo.UpdateFields(ctx, intent.ID, map[string]interface{}{
		"withdraw_tx_hash": txHash,
	}); err != nil {
		log.Printf("❌ [StrandedRetry] Failed to persist retry hash for %s: %v", intent.ID, err)
	}
	intent.WithdrawTxHash = txHash

	withdrawal, err := s.gateway.ConfirmRelease(ctx, intent)
	if err != nil {
		if errors.Is(err, types.ErrConfirmTimeout) || types.IsTransient(err) {
			// Still pending; the coordinator's resume sweep owns it now.
			stranded.Status = models.StrandedTransferStatusPending
			stranded.NextRetryAt = stranded.CalculateNextRetryTime()
			return s.strandedRepo.Save(ctx, stranded)
		}
		// Reverted again: the intent goes back to stranded via the
		// coordinator when it settles; count the attempt here.
		s.recordFailure(ctx, stranded, err.Error())
		return err
	}

	now := time.Now()
	if err := s.intentRepo.Transition(ctx, intent, models.TransferStatusCompleted, map[string]interface{}{
		"withdraw_block_number": &withdrawal.BlockNumber,
		"completed_at":          &now,
	}); err != nil {
		log.Printf("⚠️ [StrandedRetry] Failed to complete intent %s: %v", intent.ID, err)
	}

	stranded.MarkAsRecovered(txHash)
	if err := s.strandedRepo.Save(ctx, stranded); err != nil {
		return err
	}

	metrics.StrandedRecoveriesTotal.Inc()
	log.Printf("✅ [StrandedRetry] Transfer recovered: Intent=%s, TxHash=%s", stranded.IntentID, txHash)
	return nil
}

// Abandon marks a stranded transfer as given up; funds must be reconciled
// out of band.
func (s *StrandedRetryService) Abandon(ctx context.Context, stranded *models.StrandedTransfer) error {
	stranded.Status = models.StrandedTransferStatusAbandoned
	now := time.Now()
	stranded.ResolvedAt = &now
	return s.strandedRepo.Save(ctx, stranded)
}

func (s *StrandedRetryService) recordFailure(ctx context.Context, stranded *models.StrandedTransfer, errorMsg string) {
	stranded.Status = models.StrandedTransferStatusPending
	stranded.IncrementRetry(errorMsg)
	if err := s.strandedRepo.Save(ctx, stranded); err != nil {
		log.Printf("❌ [StrandedRetry] Failed to persist retry failure for %s: %v", stranded.IntentID, err)
	}
}
