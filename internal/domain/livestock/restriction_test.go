package livestock

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRestrictionResult(t *testing.T) {
	ownerID := uuid.New()

	makeTxn := func(t *testing.T) *Transaction {
		t.Helper()
		b := newTestBatch(t, ownerID, date(2025, 1, 1), 100)
		plan, err := AllocateFIFO(ownerID, []*Batch{b}, 10, date(2025, 1, 15))
		require.NoError(t, err)
		txn, err := NewTransactionFromPlan(plan, TypeMortality, date(2025, 1, 15), uuid.New(), uuid.NewString())
		require.NoError(t, err)
		return txn
	}

	t.Run("no transactions means no restriction", func(t *testing.T) {
		result := BuildRestrictionResult(ownerID, date(2025, 1, 15), nil)

		assert.False(t, result.HasRestriction)
		assert.Empty(t, result.ConflictingTransactionIDs)
	})

	t.Run("active transaction restricts", func(t *testing.T) {
		txn := makeTxn(t)
		result := BuildRestrictionResult(ownerID, date(2025, 1, 15), []*Transaction{txn})

		assert.True(t, result.HasRestriction)
		assert.Equal(t, []uuid.UUID{txn.ID}, result.ConflictingTransactionIDs)
		assert.NotEmpty(t, result.Message)
		assert.NotEmpty(t, result.SuggestedAction)
	})

	t.Run("reversed transactions do not restrict", func(t *testing.T) {
		txn := makeTxn(t)
		require.NoError(t, txn.Reverse())

		result := BuildRestrictionResult(ownerID, date(2025, 1, 15), []*Transaction{txn})
		assert.False(t, result.HasRestriction)
	})
}

func TestRestrictionAllowsBypass(t *testing.T) {
	restricted := RestrictionResult{HasRestriction: true}

	assert.True(t, restricted.AllowsBypass(TypeInternalTransfer, true))
	assert.False(t, restricted.AllowsBypass(TypeInternalTransfer, false))
	assert.False(t, restricted.AllowsBypass(TypeMortality, true))
	assert.False(t, restricted.AllowsBypass(TypeSale, true))
}
