package livestock

import (
	"context"
	"sync"
	"testing"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditWorkflow(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()

	t.Run("revising a depletion releases the difference FIFO", func(t *testing.T) {
		f := newFixture(t)
		b1 := f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		b2 := f.seedBatch(t, ownerID, date(2025, 1, 10), 50)
		committed := commitDepletion(t, f, ownerID, "Mati", 120, 15, "tok-ed1")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)

		plan, err := f.edits.ReviseQuantity(ctx, session.ID, 80)
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, b1.ID, plan.Allocations[0].BatchID)
		assert.Equal(t, int64(80), plan.Allocations[0].QuantityTaken)

		updated, err := f.edits.CommitEdit(ctx, session.ID, uuid.New())
		require.NoError(t, err)

		assert.Equal(t, int64(80), updated.Quantity)
		require.Len(t, updated.Items, 1)
		assert.Equal(t, b1.ID, updated.Items[0].BatchID)

		// B1 holds the revised 80, B2 is fully restored.
		s1 := f.batchState(t, b1.ID)
		s2 := f.batchState(t, b2.ID)
		assert.Equal(t, int64(80), s1.DepletedQuantity)
		assert.Equal(t, int64(20), s1.AvailableQuantity())
		assert.Equal(t, int64(0), s2.DepletedQuantity)
		assert.Equal(t, int64(50), s2.AvailableQuantity())
	})

	t.Run("beginning an edit does not touch the live ledger", func(t *testing.T) {
		f := newFixture(t)
		b := f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed2")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)

		restored, ok := session.RestoredAvailability(b.ID)
		require.True(t, ok)
		assert.Equal(t, int64(100), restored)
		assert.Equal(t, int64(60), f.batchState(t, b.ID).AvailableQuantity())
	})

	t.Run("cancel is a no-op on the ledger", func(t *testing.T) {
		f := newFixture(t)
		b := f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed3")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)
		_, err = f.edits.ReviseQuantity(ctx, session.ID, 10)
		require.NoError(t, err)

		require.NoError(t, f.edits.CancelEdit(ctx, session.ID))

		assert.Equal(t, int64(40), f.batchState(t, b.ID).DepletedQuantity)
		stored, err := f.txns.FindByID(ctx, committed.Transaction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40), stored.Quantity)

		// The session is gone.
		_, err = f.edits.ReviseQuantity(ctx, session.ID, 10)
		assert.Error(t, err)
	})

	t.Run("commit without a revision fails", func(t *testing.T) {
		f := newFixture(t)
		f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed4")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)

		_, err = f.edits.CommitEdit(ctx, session.ID, uuid.New())
		assert.Error(t, err)
	})

	t.Run("manual lines against one batch validate the summed total", func(t *testing.T) {
		f := newFixture(t)
		b1 := f.seedBatch(t, ownerID, date(2025, 1, 1), 50)
		f.seedBatch(t, ownerID, date(2025, 1, 10), 50)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed5")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)

		// Each line fits alone against b1's restored 50; together they
		// do not.
		_, err = f.edits.SetManualLines(ctx, session.ID, []livestock.ManualLine{
			{BatchID: b1.ID, Quantity: 30},
			{BatchID: b1.ID, Quantity: 30},
		})
		var conflict *livestock.ReconciliationConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []uuid.UUID{b1.ID}, conflict.BatchIDs)

		plan, err := f.edits.SetManualLines(ctx, session.ID, []livestock.ManualLine{
			{BatchID: b1.ID, Quantity: 30},
			{BatchID: b1.ID, Quantity: 20},
		})
		require.NoError(t, err)

		updated, err := f.edits.CommitEdit(ctx, session.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, plan.FulfilledQuantity, updated.Quantity)
		assert.Equal(t, int64(50), f.batchState(t, b1.ID).DepletedQuantity)
	})

	t.Run("edit that would drive a batch negative is rejected whole", func(t *testing.T) {
		f := newFixture(t)
		b := f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed6")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)
		_, err = f.edits.ReviseQuantity(ctx, session.ID, 90)
		require.NoError(t, err)

		// Concurrent consumption lands after the session was built.
		drifted := f.batchState(t, b.ID)
		require.NoError(t, drifted.Consume(livestock.CounterSold, 30))
		require.NoError(t, f.batches.Save(ctx, drifted))

		_, err = f.edits.CommitEdit(ctx, session.ID, uuid.New())
		var conflict *livestock.ReconciliationConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []uuid.UUID{b.ID}, conflict.BatchIDs)

		// Rejected whole: the original allocation still stands.
		state := f.batchState(t, b.ID)
		assert.Equal(t, int64(40), state.DepletedQuantity)
		assert.Equal(t, int64(30), state.SoldQuantity)
		stored, err := f.txns.FindByID(ctx, committed.Transaction.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40), stored.Quantity)
	})

	t.Run("concurrent revisions on one session stay consistent", func(t *testing.T) {
		f := newFixture(t)
		b := f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed8")

		session, err := f.edits.BeginEdit(ctx, committed.Transaction.ID)
		require.NoError(t, err)

		quantities := []int64{10, 20, 30, 50, 60, 70}
		var wg sync.WaitGroup
		for _, q := range quantities {
			wg.Add(1)
			go func(q int64) {
				defer wg.Done()
				_, err := f.edits.ReviseQuantity(ctx, session.ID, q)
				assert.NoError(t, err)
			}(q)
		}
		wg.Wait()

		// Whichever revision won, the committed state must match it.
		updated, err := f.edits.CommitEdit(ctx, session.ID, uuid.New())
		require.NoError(t, err)
		assert.Contains(t, quantities, updated.Quantity)
		assert.Equal(t, updated.Quantity, f.batchState(t, b.ID).DepletedQuantity)
	})

	t.Run("reversed transaction cannot be edited", func(t *testing.T) {
		f := newFixture(t)
		f.seedBatch(t, ownerID, date(2025, 1, 1), 100)
		committed := commitDepletion(t, f, ownerID, "Mati", 40, 15, "tok-ed7")

		_, err := f.ledger.ReverseTransaction(ctx, committed.Transaction.ID, uuid.New())
		require.NoError(t, err)

		_, err = f.edits.BeginEdit(ctx, committed.Transaction.ID)
		assert.Error(t, err)
	})
}
