package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"bridge-backend/internal/metrics"
	"bridge-backend/internal/models"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TransactionQueueService serializes relayer transactions per signing address
// so concurrent releases on the same chain cannot race for a nonce. Every
// submission is recorded as a durable row before it reaches the wire, and
// submitted rows are re-checked against the chain after a restart.
type TransactionQueueService struct {
	db    *gorm.DB
	chain *ChainService

	processingLocks map[string]*sync.Mutex // address:chainID -> mutex
	lockMutex       sync.RWMutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewTransactionQueueService creates a transaction queue service
func NewTransactionQueueService(db *gorm.DB, chain *ChainService) *TransactionQueueService {
	return &TransactionQueueService{
		db:              db,
		chain:           chain,
		processingLocks: make(map[string]*sync.Mutex),
		stopChan:        make(chan struct{}),
	}
}

// LockFor returns the submission lock for one signing address on one chain.
// Callers hold it across nonce allocation and SendTransaction.
func (s *TransactionQueueService) LockFor(address string, chainID int) *sync.Mutex {
	key := fmt.Sprintf("%s:%d", address, chainID)

	s.lockMutex.RLock()
	lock, exists := s.processingLocks[key]
	s.lockMutex.RUnlock()

	if exists {
		return lock
	}

	s.lockMutex.Lock()
	defer s.lockMutex.Unlock()

	if lock, exists := s.processingLocks[key]; exists {
		return lock
	}

	lock = &sync.Mutex{}
	s.processingLocks[key] = lock
	return lock
}

// Record writes the durable queue row for a transaction about to be signed
func (s *TransactionQueueService) Record(
	txType models.PendingTransactionType,
	address string,
	chainID int,
	intentID string,
	txData interface{},
) (*models.PendingTransaction, error) {
	data, err := json.Marshal(txData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx data: %w", err)
	}

	pendingTx := &models.PendingTransaction{
		ID:        uuid.New().String(),
		Type:      txType,
		Status:    models.PendingTransactionStatusProcessing,
		Address:   address,
		ChainID:   chainID,
		TxData:    string(data),
		IntentID:  intentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.Create(pendingTx).Error; err != nil {
		return nil, fmt.Errorf("failed to record pending transaction: %w", err)
	}

	log.Printf("✅ [Queue] Recorded %s transaction: ID=%s, IntentID=%s, Address=%s, ChainID=%d",
		txType, pendingTx.ID, intentID, address, chainID)
	return pendingTx, nil
}

// MarkSigned durably stores the hash, nonce and signed raw bytes of a
// transaction BEFORE it is sent. A failure here aborts the submission: a
// transaction whose evidence is not on disk must never reach the wire,
// because a crash after the send would leave no way to tell it was sent.
func (s *TransactionQueueService) MarkSigned(pendingTx *models.PendingTransaction, txHash string, nonce uint64, rawTx string) error {
	if err := s.db.Model(pendingTx).Updates(map[string]interface{}{
		"tx_hash":    txHash,
		"nonce":      nonce,
		"raw_tx":     rawTx,
		"updated_at": time.Now(),
	}).Error; err != nil {
		return fmt.Errorf("failed to persist signed transaction %s: %w", pendingTx.ID, err)
	}
	pendingTx.TxHash = txHash
	pendingTx.Nonce = nonce
	pendingTx.RawTx = rawTx
	return nil
}

// MarkSubmitted records that the signed transaction is on the wire
func (s *TransactionQueueService) MarkSubmitted(pendingTx *models.PendingTransaction) {
	now := time.Now()
	if err := s.db.Model(pendingTx).Updates(map[string]interface{}{
		"status":       models.PendingTransactionStatusSubmitted,
		"submitted_at": &now,
		"updated_at":   now,
	}).Error; err != nil {
		log.Printf("❌ [Queue] Failed to mark transaction %s submitted: %v", pendingTx.ID, err)
		return
	}
	pendingTx.Status = models.PendingTransactionStatusSubmitted
	pendingTx.SubmittedAt = &now

	metrics.TransactionsSubmittedTotal.WithLabelValues(
		fmt.Sprintf("%d", pendingTx.ChainID), string(pendingTx.Type)).Inc()
	log.Printf("✅ [Queue] Transaction submitted: ID=%s, TxHash=%s, Nonce=%d",
		pendingTx.ID, pendingTx.TxHash, pendingTx.Nonce)
}

// MarkFailed records a failed submission attempt. Each row is one attempt;
// whoever owns the transfer decides whether a fresh attempt gets a new row.
func (s *TransactionQueueService) MarkFailed(pendingTx *models.PendingTransaction, errorMsg string) {
	pendingTx.Status = models.PendingTransactionStatusFailed
	pendingTx.LastError = errorMsg
	pendingTx.UpdatedAt = time.Now()

	if err := s.db.Save(pendingTx).Error; err != nil {
		log.Printf("❌ [Queue] Failed to persist failure for transaction %s: %v", pendingTx.ID, err)
	}
}

// FindSignedByIntent returns the newest queue row of the given type for an
// intent that was signed (hash recorded) and has not failed. Callers use it
// to adopt an earlier submission instead of paying out a second time when
// the intent-side hash write was lost.
func (s *TransactionQueueService) FindSignedByIntent(ctx context.Context, intentID string, txType models.PendingTransactionType) (*models.PendingTransaction, error) {
	var pendingTx models.PendingTransaction
	err := s.db.WithContext(ctx).
		Where("intent_id = ? AND type = ? AND tx_hash <> '' AND status <> ?",
			intentID, txType, models.PendingTransactionStatusFailed).
		Order("created_at DESC").
		First(&pendingTx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pendingTx, nil
}

// MarkConfirmed records a mined transaction
func (s *TransactionQueueService) MarkConfirmed(pendingTx *models.PendingTransaction, blockNumber uint64) {
	now := time.Now()
	if err := s.db.Model(pendingTx).Updates(map[string]interface{}{
		"status":       models.PendingTransactionStatusConfirmed,
		"block_number": &blockNumber,
		"confirmed_at": &now,
		"updated_at":   now,
	}).Error; err != nil {
		log.Printf("❌ [Queue] Failed to mark transaction %s confirmed: %v", pendingTx.ID, err)
	}
}

// Start recovers leftover rows and begins the periodic confirmation sweep
func (s *TransactionQueueService) Start() {
	log.Printf("🚀 [Queue] Starting transaction queue service...")

	if err := s.RecoverPendingTransactions(); err != nil {
		log.Printf("❌ [Queue] Failed to recover pending transactions: %v", err)
	}

	s.wg.Add(1)
	go s.periodicCheck()
}

// Stop terminates the background sweep
func (s *TransactionQueueService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Printf("🛑 [Queue] Transaction queue service stopped")
}

// RecoverPendingTransactions reconciles queue rows left over from a previous
// run. Submitted rows are re-checked against the chain by hash. Processing
// rows with a hash were signed before the crash and may or may not have
// reached the wire: the stored raw bytes are re-broadcast (same hash, so the
// send is idempotent) and the row is promoted to submitted. Processing rows
// without a hash were interrupted mid-signing and are marked failed; their
// owning intent resubmits through its own retry path.
func (s *TransactionQueueService) RecoverPendingTransactions() error {
	var pendingTxs []models.PendingTransaction
	if err := s.db.Where("status IN ?", []models.PendingTransactionStatus{
		models.PendingTransactionStatusProcessing,
		models.PendingTransactionStatusSubmitted,
	}).Find(&pendingTxs).Error; err != nil {
		return fmt.Errorf("failed to query pending transactions: %w", err)
	}

	log.Printf("📋 [Queue] Found %d unfinished transactions to recover", len(pendingTxs))

	for i := range pendingTxs {
		tx := &pendingTxs[i]
		switch tx.Status {
		case models.PendingTransactionStatusSubmitted:
			if err := s.checkTransactionStatus(tx); err != nil {
				log.Printf("⚠️ [Queue] Failed to check submitted transaction %s: %v", tx.ID, err)
			}

		case models.PendingTransactionStatusProcessing:
			if tx.TxHash != "" {
				s.rebroadcast(tx)
				now := time.Now()
				s.db.Model(tx).Updates(map[string]interface{}{
					"status":       models.PendingTransactionStatusSubmitted,
					"submitted_at": &now,
				})
				tx.Status = models.PendingTransactionStatusSubmitted
				if err := s.checkTransactionStatus(tx); err != nil {
					log.Printf("⚠️ [Queue] Failed to check transaction %s: %v", tx.ID, err)
				}
			} else {
				log.Printf("⚠️ [Queue] Transaction %s interrupted before signing, marking failed", tx.ID)
				s.MarkFailed(tx, "interrupted before signing")
			}
		}
	}

	return nil
}

// rebroadcast re-sends the stored signed bytes. The node rejects duplicates
// of an already-known or already-mined transaction, so this is safe to call
// without knowing whether the original send went through.
func (s *TransactionQueueService) rebroadcast(pendingTx *models.PendingTransaction) {
	if pendingTx.RawTx == "" {
		return
	}
	client, exists := s.chain.GetClient(pendingTx.ChainID)
	if !exists {
		return
	}

	var tx gethtypes.Transaction
	if err := tx.UnmarshalBinary(common.FromHex(pendingTx.RawTx)); err != nil {
		log.Printf("⚠️ [Queue] Corrupt raw tx for %s: %v", pendingTx.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.SendTransaction(ctx, &tx); err != nil {
		log.Printf("📋 [Queue] Re-broadcast of %s returned %v (already known is expected)", pendingTx.TxHash, err)
		return
	}
	log.Printf("📤 [Queue] Re-broadcast recovered transaction: ID=%s, TxHash=%s", pendingTx.ID, pendingTx.TxHash)
}

func (s *TransactionQueueService) periodicCheck() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweepSubmitted()
			s.updateQueueDepth()
		}
	}
}

// sweepSubmitted re-checks submitted rows older than a minute by tx hash
func (s *TransactionQueueService) sweepSubmitted() {
	var submittedTxs []models.PendingTransaction
	oneMinuteAgo := time.Now().Add(-1 * time.Minute)
	if err := s.db.Where("status = ? AND submitted_at < ?",
		models.PendingTransactionStatusSubmitted, oneMinuteAgo).
		Find(&submittedTxs).Error; err != nil {
		log.Printf("⚠️ [Queue] Failed to query submitted transactions: %v", err)
		return
	}

	for i := range submittedTxs {
		if err := s.checkTransactionStatus(&submittedTxs[i]); err != nil {
			log.Printf("⚠️ [Queue] Failed to check transaction %s: %v", submittedTxs[i].ID, err)
		}
	}
}

func (s *TransactionQueueService) updateQueueDepth() {
	type row struct {
		ChainID int
		Count   int64
	}
	var rows []row
	if err := s.db.Model(&models.PendingTransaction{}).
		Select("chain_id, count(*) as count").
		Where("status IN ?", []models.PendingTransactionStatus{
			models.PendingTransactionStatusProcessing,
			models.PendingTransactionStatusSubmitted,
		}).
		Group("chain_id").
		Scan(&rows).Error; err != nil {
		return
	}
	for _, r := range rows {
		metrics.QueueDepth.WithLabelValues(fmt.Sprintf("%d", r.ChainID)).Set(float64(r.Count))
	}
}

func (s *TransactionQueueService) checkTransactionStatus(pendingTx *models.PendingTransaction) error {
	if pendingTx.TxHash == "" {
		return nil
	}

	client, exists := s.chain.GetClient(pendingTx.ChainID)
	if !exists {
		return fmt.Errorf("client not found for chainID %d", pendingTx.ChainID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(pendingTx.TxHash))
	if err != nil {
		// Still pending on chain, keep waiting.
		return nil
	}

	if receipt.Status == 1 {
		s.MarkConfirmed(pendingTx, receipt.BlockNumber.Uint64())
		return nil
	}

	metrics.TransactionsRevertedTotal.WithLabelValues(
		fmt.Sprintf("%d", pendingTx.ChainID), string(pendingTx.Type)).Inc()
	now := time.Now()
	return s.db.Model(pendingTx).Updates(map[string]interface{}{
		"status":     models.PendingTransactionStatusFailed,
		"last_error": "transaction reverted on chain",
		"updated_at": now,
	}).Error
}
