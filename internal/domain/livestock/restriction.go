package livestock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RestrictionResult is the outcome of the duplicate-transaction check.
// It is plain data: handlers render it, the commit path turns a
// positive result into a RestrictionError.
type RestrictionResult struct {
	HasRestriction            bool        `json:"has_restriction"`
	ConflictingTransactionIDs []uuid.UUID `json:"conflicting_transaction_ids"`
	Message                   string      `json:"message"`
	SuggestedAction           string      `json:"suggested_action"`
}

// BuildRestrictionResult inspects the active transactions already
// recorded for an owner on a given date. Reversed transactions never
// restrict; they no longer hold quantity.
func BuildRestrictionResult(ownerID uuid.UUID, date time.Time, existing []*Transaction) RestrictionResult {
	ids := make([]uuid.UUID, 0, len(existing))
	for _, txn := range existing {
		if txn.IsActive() {
			ids = append(ids, txn.ID)
		}
	}
	if len(ids) == 0 {
		return RestrictionResult{}
	}
	return RestrictionResult{
		HasRestriction:            true,
		ConflictingTransactionIDs: ids,
		Message: fmt.Sprintf("owner %s already has %d transaction(s) recorded on %s",
			ownerID, len(ids), date.Format("2006-01-02")),
		SuggestedAction: "edit the existing transaction instead of recording a new one, or reverse it first",
	}
}

// AllowsBypass reports whether the restriction may be skipped for the
// given type. Only internal transfers qualify, and only when the caller
// confirmed explicitly.
func (r RestrictionResult) AllowsBypass(depletionType DepletionType, confirmed bool) bool {
	return depletionType == TypeInternalTransfer && confirmed
}
