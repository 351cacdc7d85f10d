package livestock

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ShortfallError reports that the ledger cannot cover a requested
// quantity. It blocks commits; previews surface the same numbers as
// plan fields instead.
type ShortfallError struct {
	OwnerID   uuid.UUID
	Requested int64
	Available int64
	Shortfall int64
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("owner %s: requested %d but only %d available (short %d)",
		e.OwnerID, e.Requested, e.Available, e.Shortfall)
}

// StaleAllocationError reports that batch availability changed between
// preview and commit. The caller must re-preview.
type StaleAllocationError struct {
	BatchIDs []uuid.UUID
}

func (e *StaleAllocationError) Error() string {
	return fmt.Sprintf("allocation plan is stale, availability changed for batches [%s]", joinIDs(e.BatchIDs))
}

// ReconciliationConflictError reports batches that would go negative if
// an edit or consumption were applied. The whole operation is rejected.
type ReconciliationConflictError struct {
	BatchIDs []uuid.UUID
	Message  string
}

func (e *ReconciliationConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("reconciliation conflict on batches [%s]", joinIDs(e.BatchIDs))
}

// RestrictionError blocks an operation because a conflicting transaction
// already exists for the owner and date.
type RestrictionError struct {
	Result RestrictionResult
}

func (e *RestrictionError) Error() string {
	if e.Result.Message != "" {
		return e.Result.Message
	}
	return "a conflicting transaction already exists for this owner and date"
}

func joinIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}
