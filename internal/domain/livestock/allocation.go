package livestock

import (
	"sort"
	"time"

	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchAllocation is one line of an allocation plan: how many heads a
// single batch contributes and what remains on it afterwards.
type BatchAllocation struct {
	BatchID        uuid.UUID `json:"batch_id"`
	StartDate      time.Time `json:"start_date"`
	QuantityTaken  int64     `json:"quantity_taken"`
	RemainingAfter int64     `json:"remaining_after"`
}

// AllocationPlan is the deterministic result of a FIFO walk over an
// owner's ledger. It is a pure value: building a plan never mutates
// batches. The availability snapshot records what each touched batch
// had on hand at plan time so commit can detect staleness.
type AllocationPlan struct {
	OwnerID              uuid.UUID           `json:"owner_id"`
	AsOfDate             time.Time           `json:"as_of_date"`
	RequestedQuantity    int64               `json:"requested_quantity"`
	FulfilledQuantity    int64               `json:"fulfilled_quantity"`
	ShortfallQuantity    int64               `json:"shortfall_quantity"`
	CanFulfill           bool                `json:"can_fulfill"`
	Allocations          []BatchAllocation   `json:"allocations"`
	AvailabilitySnapshot map[uuid.UUID]int64 `json:"availability_snapshot"`
}

// BatchIDs returns the IDs of every batch the plan touches, in plan order.
func (p *AllocationPlan) BatchIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(p.Allocations))
	for i, a := range p.Allocations {
		ids[i] = a.BatchID
	}
	return ids
}

// AllocateFIFO distributes a requested quantity across the given batches
// strictly oldest-first by start date, tie-broken by ascending batch ID
// so the order is total and the plan reproducible. Batches that are not
// open, have nothing available, or started after asOf are skipped.
//
// A ledger with no eligible batches produces an empty plan with full
// shortfall; only a non-positive request is an error.
func AllocateFIFO(ownerID uuid.UUID, batches []*Batch, requested int64, asOf time.Time) (*AllocationPlan, error) {
	if requested <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "requested quantity must be positive")
	}

	eligible := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if !b.IsOpen() || b.AvailableQuantity() <= 0 {
			continue
		}
		if b.StartDate.After(asOf) {
			continue
		}
		eligible = append(eligible, b)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].StartDate.Equal(eligible[j].StartDate) {
			return eligible[i].StartDate.Before(eligible[j].StartDate)
		}
		return eligible[i].ID.String() < eligible[j].ID.String()
	})

	plan := &AllocationPlan{
		OwnerID:              ownerID,
		AsOfDate:             asOf,
		RequestedQuantity:    requested,
		Allocations:          make([]BatchAllocation, 0, len(eligible)),
		AvailabilitySnapshot: make(map[uuid.UUID]int64),
	}

	remaining := requested
	for _, b := range eligible {
		if remaining <= 0 {
			break
		}
		available := b.AvailableQuantity()
		take := remaining
		if take > available {
			take = available
		}
		plan.Allocations = append(plan.Allocations, BatchAllocation{
			BatchID:        b.ID,
			StartDate:      b.StartDate,
			QuantityTaken:  take,
			RemainingAfter: available - take,
		})
		plan.AvailabilitySnapshot[b.ID] = available
		plan.FulfilledQuantity += take
		remaining -= take
	}

	plan.ShortfallQuantity = remaining
	plan.CanFulfill = remaining == 0
	return plan, nil
}
