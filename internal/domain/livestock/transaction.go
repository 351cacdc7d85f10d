package livestock

import (
	"time"

	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes depletions (heads leave the ledger)
// from mutations (heads move to another owner).
type TransactionKind string

const (
	KindDepletion TransactionKind = "depletion"
	KindMutation  TransactionKind = "mutation"
)

// IsValid checks if the transaction kind is valid
func (k TransactionKind) IsValid() bool {
	return k == KindDepletion || k == KindMutation
}

// TransactionStatus is the lifecycle state of a committed transaction.
// Reversal is soft; reversed transactions stay on record but no longer
// hold quantity against batches.
type TransactionStatus string

const (
	StatusActive   TransactionStatus = "active"
	StatusReversed TransactionStatus = "reversed"
)

// TransactionItem is one committed allocation line: the quantity a
// single batch contributed to the parent transaction.
type TransactionItem struct {
	shared.BaseEntity
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index:idx_txn_items_txn"`
	BatchID       uuid.UUID `gorm:"type:uuid;not null;index:idx_txn_items_batch"`
	Quantity      int64     `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TransactionItem) TableName() string {
	return "livestock_transaction_items"
}

// Transaction is a committed outbound movement. Its items always mirror
// the allocation plan it was committed from, so batch counters can be
// released exactly during edits and reversals.
type Transaction struct {
	shared.BaseEntity
	OwnerID            uuid.UUID         `gorm:"type:uuid;not null;index:idx_livestock_txns_owner"`
	Kind               TransactionKind   `gorm:"type:varchar(20);not null"`
	DepletionType      DepletionType     `gorm:"type:varchar(30);not null"`
	OccurredAt         time.Time         `gorm:"not null;index:idx_livestock_txns_owner_date"`
	Quantity           int64             `gorm:"not null"`
	RequestedQuantity  int64             `gorm:"not null"`
	UnitPrice          decimal.Decimal   `gorm:"type:decimal(20,4);default:0"`
	TotalValue         decimal.Decimal   `gorm:"type:decimal(20,4);default:0"`
	BuyerName          string            `gorm:"type:varchar(255)"`
	DestinationOwnerID *uuid.UUID        `gorm:"type:uuid"`
	ActorID            uuid.UUID         `gorm:"type:uuid;not null"`
	Status             TransactionStatus `gorm:"type:varchar(20);not null;default:'active'"`
	IdempotencyKey     string            `gorm:"type:varchar(128);uniqueIndex:idx_livestock_txns_idem"`
	Items              []TransactionItem `gorm:"foreignKey:TransactionID"`
}

// TableName returns the table name for GORM
func (Transaction) TableName() string {
	return "livestock_transactions"
}

// NewTransactionFromPlan builds a transaction whose items mirror the
// plan's allocations. The plan must be fully fulfillable; shortfall
// handling belongs to the caller.
func NewTransactionFromPlan(plan *AllocationPlan, depletionType DepletionType, occurredAt time.Time, actorID uuid.UUID, idempotencyKey string) (*Transaction, error) {
	if actorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACTOR", "actor ID is required")
	}
	if !plan.CanFulfill {
		return nil, &ShortfallError{
			OwnerID:   plan.OwnerID,
			Requested: plan.RequestedQuantity,
			Available: plan.FulfilledQuantity,
			Shortfall: plan.ShortfallQuantity,
		}
	}

	kind := KindDepletion
	if depletionType.IsMutation() {
		kind = KindMutation
	}

	txn := &Transaction{
		BaseEntity:        shared.NewBaseEntity(),
		OwnerID:           plan.OwnerID,
		Kind:              kind,
		DepletionType:     depletionType,
		OccurredAt:        occurredAt.Truncate(24 * time.Hour),
		Quantity:          plan.FulfilledQuantity,
		RequestedQuantity: plan.RequestedQuantity,
		ActorID:           actorID,
		Status:            StatusActive,
		IdempotencyKey:    idempotencyKey,
	}
	txn.Items = itemsFromPlan(txn.ID, plan)
	return txn, nil
}

func itemsFromPlan(txnID uuid.UUID, plan *AllocationPlan) []TransactionItem {
	items := make([]TransactionItem, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		items = append(items, TransactionItem{
			BaseEntity:    shared.NewBaseEntity(),
			TransactionID: txnID,
			BatchID:       a.BatchID,
			Quantity:      a.QuantityTaken,
		})
	}
	return items
}

// WithSale records sale pricing on the transaction.
func (t *Transaction) WithSale(unitPrice decimal.Decimal, buyerName string) *Transaction {
	t.UnitPrice = unitPrice
	t.BuyerName = buyerName
	t.TotalValue = unitPrice.Mul(decimal.NewFromInt(t.Quantity))
	return t
}

// WithDestination records the receiving owner of a transfer.
func (t *Transaction) WithDestination(ownerID uuid.UUID) *Transaction {
	t.DestinationOwnerID = &ownerID
	return t
}

// IsActive reports whether the transaction still holds quantity
// against its batches.
func (t *Transaction) IsActive() bool {
	return t.Status == StatusActive
}

// Counter returns the batch counter this transaction's quantity sits on.
func (t *Transaction) Counter() ConsumptionCounter {
	return t.DepletionType.Counter()
}

// ReplaceItems swaps the item lines for the given plan's allocations and
// updates the head count totals. Used by edit reconciliation after the
// revised plan has been applied to the batches.
func (t *Transaction) ReplaceItems(plan *AllocationPlan) {
	t.Items = itemsFromPlan(t.ID, plan)
	t.Quantity = plan.FulfilledQuantity
	t.RequestedQuantity = plan.RequestedQuantity
	if !t.UnitPrice.IsZero() {
		t.TotalValue = t.UnitPrice.Mul(decimal.NewFromInt(t.Quantity))
	}
	t.UpdatedAt = time.Now()
}

// Reverse flips the transaction to reversed. Callers are responsible
// for releasing the item quantities back onto the batches in the same
// atomic unit.
func (t *Transaction) Reverse() error {
	if t.Status == StatusReversed {
		return shared.NewDomainError("ALREADY_REVERSED", "transaction is already reversed")
	}
	t.Status = StatusReversed
	t.UpdatedAt = time.Now()
	return nil
}
