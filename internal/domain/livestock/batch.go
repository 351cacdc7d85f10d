package livestock

import (
	"fmt"
	"time"

	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchStatus represents the lifecycle state of a batch.
// A single status field is the only mutation gate; there are no
// parallel boolean flags.
type BatchStatus string

const (
	BatchStatusOpen    BatchStatus = "open"
	BatchStatusLocked  BatchStatus = "locked"
	BatchStatusRetired BatchStatus = "retired"
)

// IsValid checks if the batch status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusOpen, BatchStatusLocked, BatchStatusRetired:
		return true
	}
	return false
}

// ConsumptionCounter identifies which outbound counter a movement
// increments on a batch.
type ConsumptionCounter string

const (
	CounterDepleted ConsumptionCounter = "depleted"
	CounterSold     ConsumptionCounter = "sold"
	CounterMutated  ConsumptionCounter = "mutated"
	CounterUnknown  ConsumptionCounter = "unknown"
)

// Batch is a dated cohort of livestock owned by a stock-holding entity
// (a pen or farm location). Outbound quantity never decrements the
// initial count; it accumulates on per-cause counters so the full
// history stays reconstructible.
type Batch struct {
	shared.BaseEntity
	OwnerID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_batches_owner"`
	StartDate        time.Time       `gorm:"not null;index:idx_batches_owner_start"`
	InitialQuantity  int64           `gorm:"not null"`
	DepletedQuantity int64           `gorm:"not null;default:0"`
	SoldQuantity     int64           `gorm:"not null;default:0"`
	MutatedQuantity  int64           `gorm:"not null;default:0"`
	Status           BatchStatus     `gorm:"type:varchar(20);not null;default:'open';index"`
	AcquisitionCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0"`
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "livestock_batches"
}

// NewBatch creates an open batch with zeroed consumption counters.
func NewBatch(ownerID uuid.UUID, startDate time.Time, initialQuantity int64, acquisitionCost decimal.Decimal) (*Batch, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "owner ID is required")
	}
	if initialQuantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "initial quantity must be positive")
	}
	if acquisitionCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "acquisition cost cannot be negative")
	}
	return &Batch{
		BaseEntity:      shared.NewBaseEntity(),
		OwnerID:         ownerID,
		StartDate:       startDate.Truncate(24 * time.Hour),
		InitialQuantity: initialQuantity,
		Status:          BatchStatusOpen,
		AcquisitionCost: acquisitionCost,
	}, nil
}

// ConsumedQuantity returns the total outbound quantity across all counters.
func (b *Batch) ConsumedQuantity() int64 {
	return b.DepletedQuantity + b.SoldQuantity + b.MutatedQuantity
}

// AvailableQuantity returns the quantity still on hand.
func (b *Batch) AvailableQuantity() int64 {
	return b.InitialQuantity - b.ConsumedQuantity()
}

// IsOpen reports whether the batch accepts mutations.
func (b *Batch) IsOpen() bool {
	return b.Status == BatchStatusOpen
}

// AgeDays returns the batch age in whole days as of the given date.
func (b *Batch) AgeDays(asOf time.Time) int {
	if asOf.Before(b.StartDate) {
		return 0
	}
	return int(asOf.Sub(b.StartDate).Hours() / 24)
}

// Consume increments the given counter by quantity. The batch-level
// invariant (consumed never exceeds initial) is enforced here; callers
// get an error back, never a panic.
func (b *Batch) Consume(counter ConsumptionCounter, quantity int64) error {
	if !b.IsOpen() {
		return shared.NewDomainError("BATCH_NOT_OPEN",
			fmt.Sprintf("batch %s is %s and cannot be consumed", b.ID, b.Status))
	}
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "consume quantity must be positive")
	}
	if quantity > b.AvailableQuantity() {
		return &ReconciliationConflictError{
			BatchIDs: []uuid.UUID{b.ID},
			Message: fmt.Sprintf("batch %s has %d available, cannot consume %d",
				b.ID, b.AvailableQuantity(), quantity),
		}
	}
	if err := b.addToCounter(counter, quantity); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()
	return nil
}

// Release decrements the given counter by quantity, returning heads to
// the batch. Used by edit reconciliation and transaction reversal.
func (b *Batch) Release(counter ConsumptionCounter, quantity int64) error {
	if quantity <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "release quantity must be positive")
	}
	var current int64
	switch counter {
	case CounterDepleted:
		current = b.DepletedQuantity
	case CounterSold:
		current = b.SoldQuantity
	case CounterMutated:
		current = b.MutatedQuantity
	default:
		return shared.NewDomainError("INVALID_COUNTER", fmt.Sprintf("unknown consumption counter %q", counter))
	}
	if quantity > current {
		return &ReconciliationConflictError{
			BatchIDs: []uuid.UUID{b.ID},
			Message: fmt.Sprintf("batch %s has only %d on counter %s, cannot release %d",
				b.ID, current, counter, quantity),
		}
	}
	if err := b.addToCounter(counter, -quantity); err != nil {
		return err
	}
	b.UpdatedAt = time.Now()
	return nil
}

func (b *Batch) addToCounter(counter ConsumptionCounter, delta int64) error {
	switch counter {
	case CounterDepleted:
		b.DepletedQuantity += delta
	case CounterSold:
		b.SoldQuantity += delta
	case CounterMutated:
		b.MutatedQuantity += delta
	default:
		return shared.NewDomainError("INVALID_COUNTER", fmt.Sprintf("unknown consumption counter %q", counter))
	}
	return nil
}

// Lock prevents further consumption without retiring the batch.
func (b *Batch) Lock() error {
	if b.Status == BatchStatusRetired {
		return shared.ErrInvalidState
	}
	b.Status = BatchStatusLocked
	b.UpdatedAt = time.Now()
	return nil
}

// Unlock reopens a locked batch.
func (b *Batch) Unlock() error {
	if b.Status != BatchStatusLocked {
		return shared.ErrInvalidState
	}
	b.Status = BatchStatusOpen
	b.UpdatedAt = time.Now()
	return nil
}

// Retire soft-closes the batch. Retired batches are kept forever for
// reconstruction; they are never deleted.
func (b *Batch) Retire() {
	b.Status = BatchStatusRetired
	b.UpdatedAt = time.Now()
}

// Clone returns a deep copy, used to build restored ledgers for edits
// without touching live state.
func (b *Batch) Clone() *Batch {
	clone := *b
	return &clone
}
