package livestock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService implements the preview/commit pipeline over the batch
// ledger. Previews are pure reads and run lock-free; commits for the
// same owner are serialized by a keyed mutex and executed atomically
// through the transaction scope.
type LedgerService struct {
	batchRepo      livestock.BatchRepository
	txnRepo        livestock.TransactionRepository
	scope          TransactionScope
	idempotency    shared.IdempotencyStore
	logger         *zap.Logger
	idempotencyTTL time.Duration
	ownerLocks     sync.Map
}

// LedgerServiceOption configures a LedgerService
type LedgerServiceOption func(*LedgerService)

// WithIdempotencyTTL overrides how long commit tokens are remembered
func WithIdempotencyTTL(ttl time.Duration) LedgerServiceOption {
	return func(s *LedgerService) {
		s.idempotencyTTL = ttl
	}
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	batchRepo livestock.BatchRepository,
	txnRepo livestock.TransactionRepository,
	scope TransactionScope,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...LedgerServiceOption,
) *LedgerService {
	s := &LedgerService{
		batchRepo:      batchRepo,
		txnRepo:        txnRepo,
		scope:          scope,
		idempotency:    idempotency,
		logger:         logger,
		idempotencyTTL: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockOwner serializes commits per owner. Previews never take this.
func (s *LedgerService) lockOwner(ownerID uuid.UUID) func() {
	v, _ := s.ownerLocks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// RegisterBatchRequest is the input for registering a new batch
type RegisterBatchRequest struct {
	OwnerID         uuid.UUID
	StartDate       time.Time
	InitialQuantity int64
	AcquisitionCost decimal.Decimal
}

// RegisterBatch adds a new cohort to an owner's ledger.
func (s *LedgerService) RegisterBatch(ctx context.Context, req RegisterBatchRequest) (*livestock.Batch, error) {
	batch, err := livestock.NewBatch(req.OwnerID, req.StartDate, req.InitialQuantity, req.AcquisitionCost)
	if err != nil {
		return nil, err
	}
	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.Info("batch registered",
		zap.String("batch_id", batch.ID.String()),
		zap.String("owner_id", batch.OwnerID.String()),
		zap.Int64("initial_quantity", batch.InitialQuantity),
	)
	return batch, nil
}

// ListBatches returns an owner's non-retired batches in FIFO order.
func (s *LedgerService) ListBatches(ctx context.Context, ownerID uuid.UUID) ([]*livestock.Batch, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "owner ID is required")
	}
	return s.batchRepo.FindByOwner(ctx, ownerID)
}

// GetTransaction loads a single transaction with its items.
func (s *LedgerService) GetTransaction(ctx context.Context, txnID uuid.UUID) (*livestock.Transaction, error) {
	return s.txnRepo.FindByID(ctx, txnID)
}

// ListTransactions returns transactions matching the filter.
func (s *LedgerService) ListTransactions(ctx context.Context, filter livestock.TransactionFilter) ([]*livestock.Transaction, error) {
	return s.txnRepo.FindAll(ctx, filter)
}

// CheckRestriction runs the duplicate-transaction check for an owner
// and date. The result is data; it never fails the call by itself.
func (s *LedgerService) CheckRestriction(ctx context.Context, ownerID uuid.UUID, date time.Time) (livestock.RestrictionResult, error) {
	if ownerID == uuid.Nil {
		return livestock.RestrictionResult{}, shared.NewDomainError("INVALID_OWNER", "owner ID is required")
	}
	existing, err := s.txnRepo.FindActiveByOwnerAndDate(ctx, ownerID, date)
	if err != nil {
		return livestock.RestrictionResult{}, err
	}
	return livestock.BuildRestrictionResult(ownerID, date, existing), nil
}

// PreviewRequest is the input for previewing an outbound movement
type PreviewRequest struct {
	OwnerID            uuid.UUID
	TypeLabel          string
	Quantity           int64
	Date               time.Time
	UnitPrice          decimal.Decimal
	BuyerName          string
	DestinationOwnerID *uuid.UUID
	ConfirmDuplicate   bool
}

// PreviewResult carries the normalized type and the computed plan
type PreviewResult struct {
	DepletionType livestock.DepletionType
	LegacyLabel   string
	Kind          livestock.TransactionKind
	Plan          *livestock.AllocationPlan
}

// PreviewDepletion computes a FIFO plan for a depletion without
// persisting anything. The restriction check is a hard precondition.
func (s *LedgerService) PreviewDepletion(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	depletionType, err := s.resolveType(req)
	if err != nil {
		return nil, err
	}
	if depletionType.IsMutation() {
		return nil, shared.NewDomainError("WRONG_PIPELINE", "transfers must use the mutation preview")
	}
	return s.preview(ctx, req, depletionType, false)
}

// PreviewMutation computes a FIFO plan for a transfer. The restriction
// check may be bypassed only for internal transfers with an explicit
// confirmation.
func (s *LedgerService) PreviewMutation(ctx context.Context, req PreviewRequest) (*PreviewResult, error) {
	depletionType, err := s.resolveType(req)
	if err != nil {
		return nil, err
	}
	if !depletionType.IsMutation() {
		return nil, shared.NewDomainError("WRONG_PIPELINE", "depletions must use the depletion preview")
	}
	return s.preview(ctx, req, depletionType, req.ConfirmDuplicate)
}

func (s *LedgerService) preview(ctx context.Context, req PreviewRequest, depletionType livestock.DepletionType, confirmBypass bool) (*PreviewResult, error) {
	if req.OwnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "owner ID is required")
	}

	restriction, err := s.CheckRestriction(ctx, req.OwnerID, req.Date)
	if err != nil {
		return nil, err
	}
	if restriction.HasRestriction && !restriction.AllowsBypass(depletionType, confirmBypass) {
		return nil, &livestock.RestrictionError{Result: restriction}
	}

	batches, err := s.batchRepo.FindAvailableByOwner(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	plan, err := livestock.AllocateFIFO(req.OwnerID, batches, req.Quantity, req.Date)
	if err != nil {
		return nil, err
	}

	return &PreviewResult{
		DepletionType: depletionType,
		LegacyLabel:   depletionType.LegacyLabel(),
		Kind:          kindOf(depletionType),
		Plan:          plan,
	}, nil
}

// resolveType normalizes the request label and enforces the type's
// required fields. Unknown types load fine from history but cannot be
// the basis of a new movement.
func (s *LedgerService) resolveType(req PreviewRequest) (livestock.DepletionType, error) {
	depletionType := livestock.Normalize(req.TypeLabel)
	if !depletionType.IsKnown() {
		return depletionType, shared.NewDomainError("UNKNOWN_TYPE", "unrecognized depletion type: "+req.TypeLabel)
	}
	for _, field := range depletionType.RequiredFields() {
		switch field {
		case "unit_price":
			if req.UnitPrice.LessThanOrEqual(decimal.Zero) {
				return depletionType, shared.NewDomainError("MISSING_FIELD", "unit_price is required for "+string(depletionType))
			}
		case "buyer_name":
			if req.BuyerName == "" {
				return depletionType, shared.NewDomainError("MISSING_FIELD", "buyer_name is required for "+string(depletionType))
			}
		case "destination_owner_id":
			if req.DestinationOwnerID == nil || *req.DestinationOwnerID == uuid.Nil {
				return depletionType, shared.NewDomainError("MISSING_FIELD", "destination_owner_id is required for "+string(depletionType))
			}
			if *req.DestinationOwnerID == req.OwnerID {
				return depletionType, shared.NewDomainError("INVALID_DESTINATION", "cannot transfer to the same owner")
			}
		}
	}
	return depletionType, nil
}

func kindOf(t livestock.DepletionType) livestock.TransactionKind {
	if t.IsMutation() {
		return livestock.KindMutation
	}
	return livestock.KindDepletion
}

// CommitRequest is the input for committing a previewed plan
type CommitRequest struct {
	PreviewRequest
	Plan        *livestock.AllocationPlan
	ClientToken string
	ActorID     uuid.UUID
}

// CommitResult carries the committed transaction. Replayed is true when
// the client token had already been committed and the original result
// was returned instead of writing again.
type CommitResult struct {
	Transaction *livestock.Transaction
	Replayed    bool
}

// Commit applies a previewed plan atomically: restriction and staleness
// are re-validated inside the transaction scope, batch counters are
// incremented per allocation line, and the transaction record with its
// mirrored items is persisted in the same unit.
func (s *LedgerService) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	if req.Plan == nil {
		return nil, shared.NewDomainError("MISSING_PLAN", "an allocation plan is required")
	}
	if req.ClientToken == "" {
		return nil, shared.NewDomainError("MISSING_TOKEN", "a client token is required")
	}
	if req.Plan.OwnerID != req.OwnerID {
		return nil, shared.NewDomainError("OWNER_MISMATCH", "plan owner does not match request owner")
	}
	depletionType, err := s.resolveType(req.PreviewRequest)
	if err != nil {
		return nil, err
	}

	unlock := s.lockOwner(req.OwnerID)
	defer unlock()

	// Replay: a token that already produced a transaction returns the
	// original result without touching the ledger.
	if existing, err := s.txnRepo.FindByIdempotencyKey(ctx, req.ClientToken); err == nil {
		return &CommitResult{Transaction: existing, Replayed: true}, nil
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	fresh, err := s.idempotency.MarkProcessed(ctx, req.ClientToken, s.idempotencyTTL)
	if err != nil {
		return nil, err
	}
	if !fresh {
		// Marked but no transaction on record: another commit with
		// this token is in flight or died before writing.
		return nil, shared.ErrConcurrencyConflict
	}

	var txn *livestock.Transaction
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.TransactionRepository().FindActiveByOwnerAndDate(ctx, req.OwnerID, req.Date)
		if err != nil {
			return err
		}
		restriction := livestock.BuildRestrictionResult(req.OwnerID, req.Date, existing)
		if restriction.HasRestriction && !restriction.AllowsBypass(depletionType, req.ConfirmDuplicate) {
			return &livestock.RestrictionError{Result: restriction}
		}

		if !req.Plan.CanFulfill {
			return &livestock.ShortfallError{
				OwnerID:   req.OwnerID,
				Requested: req.Plan.RequestedQuantity,
				Available: req.Plan.FulfilledQuantity,
				Shortfall: req.Plan.ShortfallQuantity,
			}
		}

		batches, err := repos.BatchRepository().FindByIDs(ctx, req.Plan.BatchIDs())
		if err != nil {
			return err
		}
		if stale := stalenessCheck(req.Plan, batches); len(stale) > 0 {
			return &livestock.StaleAllocationError{BatchIDs: stale}
		}

		byID := make(map[uuid.UUID]*livestock.Batch, len(batches))
		for _, b := range batches {
			byID[b.ID] = b
		}
		for _, line := range req.Plan.Allocations {
			if err := byID[line.BatchID].Consume(depletionType.Counter(), line.QuantityTaken); err != nil {
				return err
			}
		}

		txn, err = livestock.NewTransactionFromPlan(req.Plan, depletionType, req.Date, req.ActorID, req.ClientToken)
		if err != nil {
			return err
		}
		if depletionType == livestock.TypeSale {
			txn.WithSale(req.UnitPrice, req.BuyerName)
		}
		if req.DestinationOwnerID != nil {
			txn.WithDestination(*req.DestinationOwnerID)
		}

		if err := repos.BatchRepository().SaveAll(ctx, batches); err != nil {
			return err
		}
		return repos.TransactionRepository().Create(ctx, txn)
	})
	if err != nil {
		// Nothing was written, so the token must not stay burned: the
		// client is expected to re-preview and retry with the same one.
		if relErr := s.idempotency.Release(ctx, req.ClientToken); relErr != nil {
			s.logger.Warn("failed to release client token after failed commit",
				zap.String("owner_id", req.OwnerID.String()),
				zap.Error(relErr),
			)
		}
		return nil, err
	}

	s.logger.Info("transaction committed",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("owner_id", req.OwnerID.String()),
		zap.String("type", string(depletionType)),
		zap.Int64("quantity", txn.Quantity),
		zap.Int("batches", len(txn.Items)),
		zap.String("actor_id", req.ActorID.String()),
	)
	return &CommitResult{Transaction: txn}, nil
}

// stalenessCheck compares each planned batch's current availability
// against the plan's snapshot. Missing batches count as stale.
func stalenessCheck(plan *livestock.AllocationPlan, batches []*livestock.Batch) []uuid.UUID {
	current := make(map[uuid.UUID]int64, len(batches))
	for _, b := range batches {
		current[b.ID] = b.AvailableQuantity()
	}
	var stale []uuid.UUID
	for _, line := range plan.Allocations {
		available, ok := current[line.BatchID]
		if !ok || available != plan.AvailabilitySnapshot[line.BatchID] {
			stale = append(stale, line.BatchID)
		}
	}
	return stale
}

// ReverseTransaction releases every item of a transaction back onto its
// batch and marks the transaction reversed, all in one atomic unit.
func (s *LedgerService) ReverseTransaction(ctx context.Context, txnID, actorID uuid.UUID) (*livestock.Transaction, error) {
	if actorID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACTOR", "actor ID is required")
	}

	head, err := s.txnRepo.FindByID(ctx, txnID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockOwner(head.OwnerID)
	defer unlock()

	var reversed *livestock.Transaction
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		txn, err := repos.TransactionRepository().FindByID(ctx, txnID)
		if err != nil {
			return err
		}
		if err := txn.Reverse(); err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(txn.Items))
		for _, item := range txn.Items {
			ids = append(ids, item.BatchID)
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

		if err := repos.BatchRepository().SaveAll(ctx, batches); err != nil {
			return err
		}
		if err := repos.TransactionRepository().Save(ctx, txn); err != nil {
			return err
		}
		reversed = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction reversed",
		zap.String("transaction_id", txnID.String()),
		zap.String("actor_id", actorID.String()),
	)
	return reversed, nil
}
