package livestock

import (
	"context"
	"time"

	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerStats aggregates an owner's outbound activity over a period.
// Reversed transactions are excluded throughout.
type LedgerStats struct {
	OwnerID          uuid.UUID                         `json:"owner_id"`
	From             time.Time                         `json:"from"`
	To               time.Time                         `json:"to"`
	TransactionCount int                               `json:"transaction_count"`
	TotalDepleted    int64                             `json:"total_depleted"`
	TotalSold        int64                             `json:"total_sold"`
	TotalMutated     int64                             `json:"total_mutated"`
	QuantityByType   map[livestock.DepletionType]int64 `json:"quantity_by_type"`
	BatchesTouched   int                               `json:"batches_touched"`
	BatchCount       int64                             `json:"batch_count"`
	SaleRevenue      decimal.Decimal                   `json:"sale_revenue"`
	FulfillmentRate  decimal.Decimal                   `json:"fulfillment_rate"`
}

// StatsService computes period aggregates from committed transactions.
type StatsService struct {
	txnRepo   livestock.TransactionRepository
	batchRepo livestock.BatchRepository
	logger    *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(txnRepo livestock.TransactionRepository, batchRepo livestock.BatchRepository, logger *zap.Logger) *StatsService {
	return &StatsService{
		txnRepo:   txnRepo,
		batchRepo: batchRepo,
		logger:    logger,
	}
}

// GetStats aggregates active transactions of an owner within [from, to].
func (s *StatsService) GetStats(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (*LedgerStats, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "owner ID is required")
	}
	if to.Before(from) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "period end is before period start")
	}

	txns, err := s.txnRepo.FindByOwnerAndPeriod(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	batchCount, err := s.batchRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	stats := &LedgerStats{
		OwnerID:         ownerID,
		From:            from,
		To:              to,
		QuantityByType:  make(map[livestock.DepletionType]int64),
		BatchCount:      batchCount,
		SaleRevenue:     decimal.Zero,
		FulfillmentRate: decimal.Zero,
	}

	touched := make(map[uuid.UUID]struct{})
	var fulfilled, requested int64
	for _, txn := range txns {
		if !txn.IsActive() {
			continue
		}
		stats.TransactionCount++
		stats.QuantityByType[txn.DepletionType] += txn.Quantity
		switch txn.Counter() {
		case livestock.CounterDepleted:
			stats.TotalDepleted += txn.Quantity
		case livestock.CounterSold:
			stats.TotalSold += txn.Quantity
		case livestock.CounterMutated:
			stats.TotalMutated += txn.Quantity
		}
		if txn.DepletionType == livestock.TypeSale {
			stats.SaleRevenue = stats.SaleRevenue.Add(txn.TotalValue)
		}
		for _, item := range txn.Items {
			touched[item.BatchID] = struct{}{}
		}
		fulfilled += txn.Quantity
		requested += txn.RequestedQuantity
	}
	stats.BatchesTouched = len(touched)
	if requested > 0 {
		stats.FulfillmentRate = decimal.NewFromInt(fulfilled).
			Div(decimal.NewFromInt(requested)).
			Round(4)
	}

	return stats, nil
}
