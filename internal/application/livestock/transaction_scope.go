package livestock

import (
	"context"

	"github.com/agristock/backend/internal/domain/livestock"
)

// TransactionalRepositories bundles the repositories participating in
// one atomic unit of work. Implementations hand out repositories bound
// to the same database transaction.
type TransactionalRepositories interface {
	BatchRepository() livestock.BatchRepository
	TransactionRepository() livestock.TransactionRepository
}

// TransactionScope executes a function within a single atomic unit.
// If fn returns an error every write inside it is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// NoOpTransactionScope runs the function against the live repositories
// without transactional guarantees. Used in tests with in-memory
// repositories.
type NoOpTransactionScope struct {
	Batches      livestock.BatchRepository
	Transactions livestock.TransactionRepository
}

// NewNoOpTransactionScope creates a scope over the given repositories
func NewNoOpTransactionScope(batches livestock.BatchRepository, txns livestock.TransactionRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{Batches: batches, Transactions: txns}
}

// BatchRepository returns the batch repository
func (s *NoOpTransactionScope) BatchRepository() livestock.BatchRepository {
	return s.Batches
}

// TransactionRepository returns the transaction repository
func (s *NoOpTransactionScope) TransactionRepository() livestock.TransactionRepository {
	return s.Transactions
}

// Execute runs fn without a surrounding database transaction
func (s *NoOpTransactionScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
