package livestock

import (
	"fmt"
	"sort"
	"time"

	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ManualLine is a caller-specified allocation line for an edit: take
// this many heads from this batch instead of letting FIFO decide.
type ManualLine struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Quantity int64     `json:"quantity"`
}

// EditSession is an in-memory workspace for editing a committed
// transaction. Beginning a session builds the restored ledger: deep
// copies of the touched batches with the transaction's own items
// released, so revisions allocate against the state the ledger would
// have without the transaction. Nothing here writes to live state;
// only CommitEdit in the application layer does, and cancelling a
// session is a pure no-op on the ledger.
type EditSession struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	OwnerID       uuid.UUID
	Original      *Transaction
	Restored      []*Batch
	Plan          *AllocationPlan
	CreatedAt     time.Time
}

// BeginEdit builds the restored ledger for a transaction. The batches
// slice must contain every batch of the owner's ledger; copies of the
// ones the transaction touched get their quantities released virtually.
func BeginEdit(txn *Transaction, batches []*Batch) (*EditSession, error) {
	if txn == nil {
		return nil, shared.ErrNotFound
	}
	if !txn.IsActive() {
		return nil, shared.NewDomainError("TRANSACTION_REVERSED", "a reversed transaction cannot be edited")
	}

	counter := txn.Counter()
	restored := make([]*Batch, 0, len(batches))
	byID := make(map[uuid.UUID]*Batch, len(batches))
	for _, b := range batches {
		clone := b.Clone()
		restored = append(restored, clone)
		byID[clone.ID] = clone
	}
	for _, item := range txn.Items {
		batch, ok := byID[item.BatchID]
		if !ok {
			return nil, shared.NewDomainError("BATCH_MISSING",
				fmt.Sprintf("transaction references batch %s which is not on the ledger", item.BatchID))
		}
		if err := batch.Release(counter, item.Quantity); err != nil {
			return nil, err
		}
	}

	return &EditSession{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		OwnerID:       txn.OwnerID,
		Original:      txn,
		Restored:      restored,
		CreatedAt:     time.Now(),
	}, nil
}

// RestoredAvailability returns the quantity a batch has available on
// the restored ledger, i.e. with the edited transaction backed out.
func (s *EditSession) RestoredAvailability(batchID uuid.UUID) (int64, bool) {
	for _, b := range s.Restored {
		if b.ID == batchID {
			return b.AvailableQuantity(), true
		}
	}
	return 0, false
}

func (s *EditSession) restoredBatch(batchID uuid.UUID) *Batch {
	for _, b := range s.Restored {
		if b.ID == batchID {
			return b
		}
	}
	return nil
}

// ReviseQuantity computes a fresh FIFO plan for the new total quantity
// against the restored ledger and stores it on the session.
func (s *EditSession) ReviseQuantity(quantity int64) (*AllocationPlan, error) {
	plan, err := AllocateFIFO(s.OwnerID, s.Restored, quantity, s.Original.OccurredAt)
	if err != nil {
		return nil, err
	}
	if !plan.CanFulfill {
		return nil, &ShortfallError{
			OwnerID:   s.OwnerID,
			Requested: plan.RequestedQuantity,
			Available: plan.FulfilledQuantity,
			Shortfall: plan.ShortfallQuantity,
		}
	}
	s.Plan = plan
	return plan, nil
}

// SetManualLines validates caller-specified lines against the restored
// ledger and stores the resulting plan. Validation runs on batch-wide
// running totals: lines naming the same batch are summed before the
// comparison, so two lines of 30 against a batch holding 50 fail even
// though each line fits on its own.
func (s *EditSession) SetManualLines(lines []ManualLine) (*AllocationPlan, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_LINES", "at least one line is required")
	}

	totals := make(map[uuid.UUID]int64, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_QUANTITY", "line quantity must be positive")
		}
		if _, seen := totals[line.BatchID]; !seen {
			order = append(order, line.BatchID)
		}
		totals[line.BatchID] += line.Quantity
	}

	var conflicts []uuid.UUID
	for _, batchID := range order {
		available, ok := s.RestoredAvailability(batchID)
		if !ok {
			return nil, shared.NewDomainError("BATCH_MISSING",
				fmt.Sprintf("batch %s is not on the ledger", batchID))
		}
		if totals[batchID] > available {
			conflicts = append(conflicts, batchID)
		}
	}
	if len(conflicts) > 0 {
		return nil, &ReconciliationConflictError{BatchIDs: conflicts}
	}

	// Manual plans keep the same ordering contract as FIFO ones:
	// oldest batch first, ID as the tie-break.
	sort.Slice(order, func(i, j int) bool {
		bi, bj := s.restoredBatch(order[i]), s.restoredBatch(order[j])
		if !bi.StartDate.Equal(bj.StartDate) {
			return bi.StartDate.Before(bj.StartDate)
		}
		return bi.ID.String() < bj.ID.String()
	})

	plan := &AllocationPlan{
		OwnerID:              s.OwnerID,
		AsOfDate:             s.Original.OccurredAt,
		Allocations:          make([]BatchAllocation, 0, len(order)),
		AvailabilitySnapshot: make(map[uuid.UUID]int64, len(order)),
	}
	for _, batchID := range order {
		available, _ := s.RestoredAvailability(batchID)
		take := totals[batchID]
		plan.Allocations = append(plan.Allocations, BatchAllocation{
			BatchID:        batchID,
			StartDate:      s.restoredBatch(batchID).StartDate,
			QuantityTaken:  take,
			RemainingAfter: available - take,
		})
		plan.AvailabilitySnapshot[batchID] = available
		plan.FulfilledQuantity += take
	}
	plan.RequestedQuantity = plan.FulfilledQuantity
	plan.CanFulfill = true

	s.Plan = plan
	return plan, nil
}
