package repository

import (
	"context"
	"time"

	"bridge-backend/internal/models"

	"gorm.io/gorm"
)

// StrandedTransferRepository defines the interface for stranded transfer data access
type StrandedTransferRepository interface {
	Create(ctx context.Context, st *models.StrandedTransfer) error
	GetByID(ctx context.Context, id string) (*models.StrandedTransfer, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.StrandedTransfer, error)
	FindDueForRetry(ctx context.Context, limit int) ([]*models.StrandedTransfer, error)
	FindUnresolved(ctx context.Context, page, limit int) ([]*models.StrandedTransfer, int64, error)
	Save(ctx context.Context, st *models.StrandedTransfer) error
	RequeueStaleRetrying(ctx context.Context, olderThan time.Time) (int64, error)
}

type strandedTransferRepository struct {
	db *gorm.DB
}

// NewStrandedTransferRepository creates a new StrandedTransferRepository instance
func NewStrandedTransferRepository(db *gorm.DB) StrandedTransferRepository {
	return &strandedTransferRepository{db: db}
}

func (r *strandedTransferRepository) Create(ctx context.Context, st *models.StrandedTransfer) error {
	return r.db.WithContext(ctx).Create(st).Error
}

func (r *strandedTransferRepository) GetByID(ctx context.Context, id string) (*models.StrandedTransfer, error) {
	var st models.StrandedTransfer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *strandedTransferRepository) GetByIntentID(ctx context.Context, intentID string) (*models.StrandedTransfer, error) {
	var st models.StrandedTransfer
	err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *strandedTransferRepository) FindDueForRetry(ctx context.Context, limit int) ([]*models.StrandedTransfer, error) {
	var transfers []*models.StrandedTransfer
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.StrandedTransferStatusPending, time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&transfers).Error
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *strandedTransferRepository) FindUnresolved(ctx context.Context, page, limit int) ([]*models.StrandedTransfer, int64, error) {
	var transfers []*models.StrandedTransfer
	var total int64

	query := r.db.WithContext(ctx).Model(&models.StrandedTransfer{}).
		Where("status IN ?", []models.StrandedTransferStatus{
			models.StrandedTransferStatusPending,
			models.StrandedTransferStatusRetrying,
		})
	query.Count(&total)

	offset := (page - 1) * limit
	err := query.Offset(offset).Limit(limit).Order("created_at ASC").Find(&transfers).Error
	if err != nil {
		return nil, 0, err
	}

	return transfers, total, nil
}

func (r *strandedTransferRepository) Save(ctx context.Context, st *models.StrandedTransfer) error {
	return r.db.WithContext(ctx).Save(st).Error
}

// RequeueStaleRetrying returns rows stuck in retrying (a crash mid-retry
// never writes them back) to pending so the sweep picks them up again.
func (r *strandedTransferRepository) RequeueStaleRetrying(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.StrandedTransfer{}).
		Where("status = ? AND updated_at < ?", models.StrandedTransferStatusRetrying, olderThan).
		Updates(map[string]interface{}{
			"status":        models.StrandedTransferStatusPending,
			"next_retry_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
