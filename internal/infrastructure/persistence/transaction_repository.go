package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransactionRepository implements TransactionRepository using GORM.
// Item lines are part of the transaction aggregate and are loaded and
// saved with it.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByID finds a transaction with its items
func (r *GormTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*livestock.Transaction, error) {
	var txn livestock.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// FindByIdempotencyKey finds the transaction committed under a client token
func (r *GormTransactionRepository) FindByIdempotencyKey(ctx context.Context, key string) (*livestock.Transaction, error) {
	var txn livestock.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("idempotency_key = ?", key).
		First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// FindActiveByOwnerAndDate finds active transactions of an owner on a
// calendar date
func (r *GormTransactionRepository) FindActiveByOwnerAndDate(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]*livestock.Transaction, error) {
	dayStart := date.Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var txns []*livestock.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("owner_id = ? AND status = ?", ownerID, livestock.StatusActive).
		Where("occurred_at >= ? AND occurred_at < ?", dayStart, dayEnd).
		Order("occurred_at ASC, created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindByOwnerAndPeriod finds transactions of an owner within [from, to],
// newest first
func (r *GormTransactionRepository) FindByOwnerAndPeriod(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]*livestock.Transaction, error) {
	var txns []*livestock.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("owner_id = ?", ownerID).
		Where("occurred_at >= ? AND occurred_at <= ?", from, to).
		Order("occurred_at DESC, created_at DESC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// FindAll finds transactions matching the filter
func (r *GormTransactionRepository) FindAll(ctx context.Context, filter livestock.TransactionFilter) ([]*livestock.Transaction, error) {
	var txns []*livestock.Transaction
	query := r.db.WithContext(ctx).
		Preload("Items").
		Model(&livestock.Transaction{})

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.DepletionType != nil {
		query = query.Where("depletion_type = ?", *filter.DepletionType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.DateFrom != nil {
		query = query.Where("occurred_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("occurred_at <= ?", *filter.DateTo)
	}

	query = r.applyFilter(query, filter.Filter)

	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

// Create persists a new transaction with its items
func (r *GormTransactionRepository) Create(ctx context.Context, txn *livestock.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// Save updates a transaction, replacing its item lines with the ones
// currently on the aggregate. Callers run this inside a transaction
// scope so the delete and re-insert stay atomic.
func (r *GormTransactionRepository) Save(ctx context.Context, txn *livestock.Transaction) error {
	if err := r.db.WithContext(ctx).Omit("Items").Save(txn).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txn.ID).
		Delete(&livestock.TransactionItem{}).Error; err != nil {
		return err
	}
	if len(txn.Items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&txn.Items).Error
}

// applyFilter applies pagination and ordering to the query
func (r *GormTransactionRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderBy := ValidateSortField(filter.OrderBy, TransactionSortFields, "occurred_at")
		query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("occurred_at DESC, created_at DESC")
	}

	return query
}

// Ensure GormTransactionRepository implements TransactionRepository
var _ livestock.TransactionRepository = (*GormTransactionRepository)(nil)
