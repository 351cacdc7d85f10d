package livestock

import (
	"context"
	"sync"
	"time"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultSessionTTL = 30 * time.Minute

// EditService drives the edit reconciliation workflow. Sessions live in
// memory only; beginning, revising and cancelling an edit never write
// to the ledger. CommitEdit is the single point where the revision is
// applied, atomically, with the same per-owner serialization as plain
// commits.
type EditService struct {
	ledger     *LedgerService
	txnRepo    livestock.TransactionRepository
	batchRepo  livestock.BatchRepository
	scope      TransactionScope
	logger     *zap.Logger
	sessionTTL time.Duration

	mu           sync.RWMutex
	sessions     map[uuid.UUID]*livestock.EditSession
	sessionLocks sync.Map
	stopCh       chan struct{}
	stopOnce     sync.Once
}

// EditServiceOption configures an EditService
type EditServiceOption func(*EditService)

// WithSessionTTL overrides how long an idle edit session is kept
func WithSessionTTL(ttl time.Duration) EditServiceOption {
	return func(s *EditService) {
		s.sessionTTL = ttl
	}
}

// NewEditService creates a new edit service and starts its session
// cleanup goroutine. Call Close to stop it.
func NewEditService(
	ledger *LedgerService,
	txnRepo livestock.TransactionRepository,
	batchRepo livestock.BatchRepository,
	scope TransactionScope,
	logger *zap.Logger,
	opts ...EditServiceOption,
) *EditService {
	s := &EditService{
		ledger:     ledger,
		txnRepo:    txnRepo,
		batchRepo:  batchRepo,
		scope:      scope,
		logger:     logger,
		sessionTTL: defaultSessionTTL,
		sessions:   make(map[uuid.UUID]*livestock.EditSession),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.cleanupLoop()
	return s
}

// Close stops the session cleanup goroutine
func (s *EditService) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	return nil
}

func (s *EditService) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.sessionTTL)
			s.mu.Lock()
			for id, session := range s.sessions {
				if session.CreatedAt.Before(cutoff) {
					delete(s.sessions, id)
					s.sessionLocks.Delete(id)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *EditService) session(id uuid.UUID) (*livestock.EditSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return session, nil
}

// lockSession serializes plan writes and reads for one session, so a
// revision racing a commit cannot observe a half-updated plan.
func (s *EditService) lockSession(id uuid.UUID) func() {
	v, _ := s.sessionLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *EditService) dropSession(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.sessionLocks.Delete(id)
}

// BeginEdit loads a transaction and its owner's ledger and opens a
// session over the restored ledger. The live ledger is not touched.
func (s *EditService) BeginEdit(ctx context.Context, transactionID uuid.UUID) (*livestock.EditSession, error) {
	txn, err := s.txnRepo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.FindByOwner(ctx, txn.OwnerID)
	if err != nil {
		return nil, err
	}

	session, err := livestock.BeginEdit(txn, batches)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("edit session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("transaction_id", transactionID.String()),
	)
	return session, nil
}

// ReviseQuantity recomputes the session plan for a new total quantity
// against the restored ledger.
func (s *EditService) ReviseQuantity(ctx context.Context, sessionID uuid.UUID, quantity int64) (*livestock.AllocationPlan, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockSession(sessionID)
	defer unlock()
	return session.ReviseQuantity(quantity)
}

// SetManualLines validates caller-picked lines against batch-wide
// running totals on the restored ledger and stores the plan.
func (s *EditService) SetManualLines(ctx context.Context, sessionID uuid.UUID, lines []livestock.ManualLine) (*livestock.AllocationPlan, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockSession(sessionID)
	defer unlock()
	return session.SetManualLines(lines)
}

// CommitEdit atomically replaces the transaction's allocation with the
// session plan: original items are released, revised lines consumed and
// the item rows swapped, all inside one transaction scope. If any batch
// would go negative the whole edit is rejected and nothing changes.
func (s *EditService) CommitEdit(ctx context.Context, sessionID, actorID uuid.UUID) (*livestock.Transaction, error) {
	if actorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACTOR", "actor ID is required")
	}
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	unlockSession := s.lockSession(sessionID)
	defer unlockSession()
	if session.Plan == nil {
		return nil, shared.NewDomainError("NO_REVISION", "the session has no revised plan to commit")
	}

	unlock := s.ledger.lockOwner(session.OwnerID)
	defer unlock()

	var updated *livestock.Transaction
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		txn, err := repos.TransactionRepository().FindByID(ctx, session.TransactionID)
		if err != nil {
			return err
		}
		if !txn.IsActive() {
			return shared.NewDomainError("TRANSACTION_REVERSED", "a reversed transaction cannot be edited")
		}

		idSet := make(map[uuid.UUID]struct{})
		for _, item := range txn.Items {
			idSet[item.BatchID] = struct{}{}
		}
		for _, line := range session.Plan.Allocations {
			idSet[line.BatchID] = struct{}{}
		}
		ids := make([]uuid.UUID, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}

		batches, err := repos.BatchRepository().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]*livestock.Batch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}

		counter := txn.Counter()
		for _, item := range txn.Items {
			batch, ok := byID[item.BatchID]
			if !ok {
				return shared.ErrNotFound
			}
			if err := batch.Release(counter, item.Quantity); err != nil {
				return err
			}
		}

		// Releases first, then consumes, so a batch shared between the
		// old and the new allocation is judged on its net state. Any
		// batch that cannot cover its revised line fails the whole
		// edit; partial application never reaches the database.
		var conflicts []uuid.UUID
		for _, line := range session.Plan.Allocations {
			batch, ok := byID[line.BatchID]
			if !ok {
				return shared.ErrNotFound
			}
			if err := batch.Consume(counter, line.QuantityTaken); err != nil {
				conflicts = append(conflicts, line.BatchID)
			}
		}
		if len(conflicts) > 0 {
			return &livestock.ReconciliationConflictError{BatchIDs: conflicts}
		}

		txn.ReplaceItems(session.Plan)
		if err := repos.BatchRepository().SaveAll(ctx, batches); err != nil {
			return err
		}
		if err := repos.TransactionRepository().Save(ctx, txn); err != nil {
			return err
		}
		updated = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dropSession(sessionID)
	s.logger.Info("edit committed",
		zap.String("session_id", sessionID.String()),
		zap.String("transaction_id", updated.ID.String()),
		zap.Int64("quantity", updated.Quantity),
		zap.String("actor_id", actorID.String()),
	)
	return updated, nil
}

// CancelEdit discards the session. The live ledger was never touched,
// so this is a pure no-op on persisted state.
func (s *EditService) CancelEdit(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.session(sessionID); err != nil {
		return err
	}
	s.dropSession(sessionID)
	return nil
}
