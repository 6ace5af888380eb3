package repository

import (
	"context"
	"time"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// TransferIntentRepository defines the interface for transfer intent data access
type TransferIntentRepository interface {
	Create(ctx context.Context, intent *models.TransferIntent) error
	GetByID(ctx context.Context, id string) (*models.TransferIntent, error)
	FindByAccount(ctx context.Context, account string, page, limit int) ([]*models.TransferIntent, int64, error)
	FindInFlight(ctx context.Context) ([]*models.TransferIntent, error)
	FindByDepositTxHash(ctx context.Context, chainID int, txHash string) (*models.TransferIntent, error)

	// Transition atomically moves an intent from its current status to next,
	// applying updates, and fails if the stored status changed underneath us
	// or the transition is illegal. This is the idempotency guard: two
	// concurrent drivers of the same intent cannot both win.
	Transition(ctx context.Context, intent *models.TransferIntent, next models.TransferIntentStatus, updates map[string]interface{}) error

	// UpdateFields persists non-status fields of an intent (tx hashes, errors)
	UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error

	// Reactivate re-arms a stranded intent for an operator-driven release
	// retry. This is the only path out of withdraw_failed; the automatic
	// pipeline treats that status as terminal.
	Reactivate(ctx context.Context, intent *models.TransferIntent) error
}

// transferIntentRepository implements TransferIntentRepository
type transferIntentRepository struct {
	db *gorm.DB
}

// NewTransferIntentRepository creates a new TransferIntentRepository instance
func NewTransferIntentRepository(db *gorm.DB) TransferIntentRepository {
	return &transferIntentRepository{db: db}
}

func (r *transferIntentRepository) Create(ctx context.Context, intent *models.TransferIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *transferIntentRepository) GetByID(ctx context.Context, id string) (*models.TransferIntent, error) {
	var intent models.TransferIntent
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *transferIntentRepository) FindByAccount(ctx context.Context, account string, page, limit int) ([]*models.TransferIntent, int64, error) {
	var intents []*models.TransferIntent
	var total int64

	query := r.db.WithContext(ctx).Model(&models.TransferIntent{}).Where("account = ?", account)
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&intents).Error
	if err != nil {
		return nil, 0, err
	}

	return intents, total, nil
}

func (r *transferIntentRepository) FindInFlight(ctx context.Context) ([]*models.TransferIntent, error) {
	var intents []*models.TransferIntent
	err := r.db.WithContext(ctx).
		Where("status IN ?", []models.TransferIntentStatus{
			models.TransferStatusDepositPending,
			models.TransferStatusDepositConfirmed,
			models.TransferStatusWithdrawPending,
		}).
		Order("created_at ASC").
		Find(&intents).Error
	if err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *transferIntentRepository) FindByDepositTxHash(ctx context.Context, chainID int, txHash string) (*models.TransferIntent, error) {
	var intent models.TransferIntent
	err := r.db.WithContext(ctx).
		Where("chain_from = ? AND deposit_tx_hash = ?", chainID, txHash).
		First(&intent).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *transferIntentRepository) Transition(ctx context.Context, intent *models.TransferIntent, next models.TransferIntentStatus, updates map[string]interface{}) error {
	if !intent.Status.CanTransition(next) {
		return gorm.ErrInvalidTransaction
	}

	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = next
	updates["updated_at"] = time.Now()

	// Guard on the previous status so a concurrent transition loses cleanly.
	res := r.db.WithContext(ctx).Model(&models.TransferIntent{}).
		Where("id = ? AND status = ?", intent.ID, intent.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	intent.Status = next
	return nil
}

func (r *transferIntentRepository) UpdateFields(ctx context.Context, id string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.TransferIntent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *transferIntentRepository) Reactivate(ctx context.Context, intent *models.TransferIntent) error {
	res := r.db.WithContext(ctx).Model(&models.TransferIntent{}).
		Where("id = ? AND status = ?", intent.ID, models.TransferStatusWithdrawFailed).
		Updates(map[string]interface{}{
			"status":           models.TransferStatusWithdrawPending,
			"withdraw_tx_hash": "",
			"last_error":       "",
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	intent.Status = models.TransferStatusWithdrawPending
	intent.WithdrawTxHash = ""
	intent.LastError = ""
	return nil
}
