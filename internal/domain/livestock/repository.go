package livestock

import (
	"context"
	"time"

	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchRepository manages the batch ledger.
//
// Batches are never deleted; retirement is a status change and stays
// visible to queries that ask for it.
type BatchRepository interface {
	// FindByID retrieves a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByIDs retrieves multiple batches by ID in one round trip
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Batch, error)

	// FindByOwner retrieves all non-retired batches of an owner,
	// ordered by start date then ID ascending
	FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Batch, error)

	// FindAvailableByOwner retrieves open batches with available
	// quantity, ordered by start date then ID ascending
	FindAvailableByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Batch, error)

	// Save persists a batch (create or update)
	Save(ctx context.Context, batch *Batch) error

	// SaveAll persists multiple batches
	SaveAll(ctx context.Context, batches []*Batch) error

	// CountByOwner counts non-retired batches of an owner
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

// TransactionFilter represents filter options for transaction queries
type TransactionFilter struct {
	shared.Filter
	OwnerID       *uuid.UUID
	Kind          *TransactionKind
	DepletionType *DepletionType
	Status        *TransactionStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// TransactionRepository manages committed outbound transactions and
// their item lines. Items are part of the transaction aggregate and
// are loaded and saved with it.
type TransactionRepository interface {
	// FindByID retrieves a transaction with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// FindByIdempotencyKey retrieves the transaction committed under a
	// client token, or shared.ErrNotFound
	FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)

	// FindActiveByOwnerAndDate retrieves active transactions of an
	// owner on a calendar date, for the restriction check
	FindActiveByOwnerAndDate(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]*Transaction, error)

	// FindByOwnerAndPeriod retrieves transactions of an owner within
	// [from, to], newest first
	FindByOwnerAndPeriod(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]*Transaction, error)

	// FindAll retrieves transactions matching the filter
	FindAll(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)

	// Create persists a new transaction with its items
	Create(ctx context.Context, txn *Transaction) error

	// Save updates a transaction, replacing its items
	Save(ctx context.Context, txn *Transaction) error
}
