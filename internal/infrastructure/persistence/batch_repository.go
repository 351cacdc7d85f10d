package persistence

import (
	"context"
	"errors"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fifoOrder is the canonical batch ordering: oldest start date first,
// ID ascending as the tie-break so allocation stays deterministic.
const fifoOrder = "start_date ASC, id ASC"

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*livestock.Batch, error) {
	var batch livestock.Batch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByIDs finds multiple batches by ID in one round trip
func (r *GormBatchRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*livestock.Batch, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var batches []*livestock.Batch
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order(fifoOrder).
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindByOwner finds all non-retired batches of an owner in FIFO order
func (r *GormBatchRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*livestock.Batch, error) {
	var batches []*livestock.Batch
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status <> ?", ownerID, livestock.BatchStatusRetired).
		Order(fifoOrder).
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// FindAvailableByOwner finds open batches that still have quantity on
// hand, in FIFO order
func (r *GormBatchRepository) FindAvailableByOwner(ctx context.Context, ownerID uuid.UUID) ([]*livestock.Batch, error) {
	var batches []*livestock.Batch
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, livestock.BatchStatusOpen).
		Where("initial_quantity - depleted_quantity - sold_quantity - mutated_quantity > 0").
		Order(fifoOrder).
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// Save creates or updates a batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *livestock.Batch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

// SaveAll creates or updates multiple batches
func (r *GormBatchRepository) SaveAll(ctx context.Context, batches []*livestock.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	for _, batch := range batches {
		if err := r.db.WithContext(ctx).Save(batch).Error; err != nil {
			return err
		}
	}
	return nil
}

// CountByOwner counts non-retired batches of an owner
func (r *GormBatchRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&livestock.Batch{}).
		Where("owner_id = ? AND status <> ?", ownerID, livestock.BatchStatusRetired).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormBatchRepository implements BatchRepository
var _ livestock.BatchRepository = (*GormBatchRepository)(nil)
