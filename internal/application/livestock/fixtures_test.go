package livestock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memBatchRepo is an in-memory BatchRepository. It stores and returns
// clones so entities behave like rows: mutations only stick after Save.
type memBatchRepo struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*livestock.Batch
}

func newMemBatchRepo() *memBatchRepo {
	return &memBatchRepo{batches: make(map[uuid.UUID]*livestock.Batch)}
}

func (r *memBatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*livestock.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *memBatchRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*livestock.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*livestock.Batch, 0, len(ids))
	for _, id := range ids {
		if b, ok := r.batches[id]; ok {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (r *memBatchRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]*livestock.Batch, error) {
	return r.findOwner(ownerID, false)
}

func (r *memBatchRepo) FindAvailableByOwner(ctx context.Context, ownerID uuid.UUID) ([]*livestock.Batch, error) {
	return r.findOwner(ownerID, true)
}

func (r *memBatchRepo) findOwner(ownerID uuid.UUID, availableOnly bool) ([]*livestock.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*livestock.Batch
	for _, b := range r.batches {
		if b.OwnerID != ownerID || b.Status == livestock.BatchStatusRetired {
			continue
		}
		if availableOnly && (!b.IsOpen() || b.AvailableQuantity() <= 0) {
			continue
		}
		out = append(out, b.Clone())
	}
	return out, nil
}

func (r *memBatchRepo) Save(ctx context.Context, batch *livestock.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = batch.Clone()
	return nil
}

func (r *memBatchRepo) SaveAll(ctx context.Context, batches []*livestock.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range batches {
		r.batches[b.ID] = b.Clone()
	}
	return nil
}

func (r *memBatchRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, b := range r.batches {
		if b.OwnerID == ownerID && b.Status != livestock.BatchStatusRetired {
			n++
		}
	}
	return n, nil
}

func cloneTxn(t *livestock.Transaction) *livestock.Transaction {
	clone := *t
	clone.Items = make([]livestock.TransactionItem, len(t.Items))
	copy(clone.Items, t.Items)
	return &clone
}

// memTxnRepo is an in-memory TransactionRepository.
type memTxnRepo struct {
	mu   sync.RWMutex
	txns map[uuid.UUID]*livestock.Transaction
}

func newMemTxnRepo() *memTxnRepo {
	return &memTxnRepo{txns: make(map[uuid.UUID]*livestock.Transaction)}
}

func (r *memTxnRepo) FindByID(ctx context.Context, id uuid.UUID) (*livestock.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	txn, ok := r.txns[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return cloneTxn(txn), nil
}

func (r *memTxnRepo) FindByIdempotencyKey(ctx context.Context, key string) (*livestock.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, txn := range r.txns {
		if txn.IdempotencyKey == key {
			return cloneTxn(txn), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memTxnRepo) FindActiveByOwnerAndDate(ctx context.Context, ownerID uuid.UUID, date time.Time) ([]*livestock.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	day := date.Truncate(24 * time.Hour)
	var out []*livestock.Transaction
	for _, txn := range r.txns {
		if txn.OwnerID == ownerID && txn.IsActive() && txn.OccurredAt.Equal(day) {
			out = append(out, cloneTxn(txn))
		}
	}
	return out, nil
}

func (r *memTxnRepo) FindByOwnerAndPeriod(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]*livestock.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*livestock.Transaction
	for _, txn := range r.txns {
		if txn.OwnerID != ownerID {
			continue
		}
		if txn.OccurredAt.Before(from) || txn.OccurredAt.After(to) {
			continue
		}
		out = append(out, cloneTxn(txn))
	}
	return out, nil
}

func (r *memTxnRepo) FindAll(ctx context.Context, filter livestock.TransactionFilter) ([]*livestock.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*livestock.Transaction
	for _, txn := range r.txns {
		if filter.OwnerID != nil && txn.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, cloneTxn(txn))
	}
	return out, nil
}

func (r *memTxnRepo) Create(ctx context.Context, txn *livestock.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.txns[txn.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.txns[txn.ID] = cloneTxn(txn)
	return nil
}

func (r *memTxnRepo) Save(ctx context.Context, txn *livestock.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[txn.ID] = cloneTxn(txn)
	return nil
}

// fakeIdempotencyStore is a TTL-less in-memory IdempotencyStore.
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: make(map[string]bool)}
}

func (s *fakeIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[eventID], nil
}

func (s *fakeIdempotencyStore) Release(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, eventID)
	return nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }

// fixture wires a full service stack over in-memory repositories.
type fixture struct {
	batches *memBatchRepo
	txns    *memTxnRepo
	ledger  *LedgerService
	edits   *EditService
	stats   *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	batches := newMemBatchRepo()
	txns := newMemTxnRepo()
	scope := NewNoOpTransactionScope(batches, txns)
	logger := zap.NewNop()

	ledger := NewLedgerService(batches, txns, scope, newFakeIdempotencyStore(), logger)
	edits := NewEditService(ledger, txns, batches, scope, logger)
	t.Cleanup(func() { _ = edits.Close() })

	return &fixture{
		batches: batches,
		txns:    txns,
		ledger:  ledger,
		edits:   edits,
		stats:   NewStatsService(txns, batches, logger),
	}
}

// seedBatch registers a batch and returns its stored state.
func (f *fixture) seedBatch(t *testing.T, ownerID uuid.UUID, start time.Time, initial int64) *livestock.Batch {
	t.Helper()
	batch, err := f.ledger.RegisterBatch(context.Background(), RegisterBatchRequest{
		OwnerID:         ownerID,
		StartDate:       start,
		InitialQuantity: initial,
		AcquisitionCost: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	return batch
}

// batchState re-reads a batch from the repository.
func (f *fixture) batchState(t *testing.T, id uuid.UUID) *livestock.Batch {
	t.Helper()
	b, err := f.batches.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}
