package persistence

import (
	"context"

	applivestock "github.com/agristock/backend/internal/application/livestock"
	"github.com/agristock/backend/internal/domain/livestock"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos applivestock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// BatchRepository returns the batch repository scoped to the current transaction.
func (r *gormTransactionalRepositories) BatchRepository() livestock.BatchRepository {
	return NewGormBatchRepository(r.tx)
}

// TransactionRepository returns the transaction repository scoped to the current transaction.
func (r *gormTransactionalRepositories) TransactionRepository() livestock.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ applivestock.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ applivestock.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
