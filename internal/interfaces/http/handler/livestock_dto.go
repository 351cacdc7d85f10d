package handler

import (
	"time"

	applivestock "github.com/agristock/backend/internal/application/livestock"
	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/agristock/backend/internal/domain/shared"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// RegisterBatchRequest is the payload for registering a new batch
type RegisterBatchRequest struct {
	OwnerID         string  `json:"owner_id" binding:"required,uuid"`
	StartDate       string  `json:"start_date" binding:"required"`
	InitialQuantity int64   `json:"initial_quantity" binding:"required,gt=0"`
	AcquisitionCost float64 `json:"acquisition_cost" binding:"omitempty,gte=0"`
}

// PreviewMovementRequest is the payload for previewing an outbound
// movement. The same shape serves depletions and transfers; which
// fields are mandatory depends on the resolved type.
type PreviewMovementRequest struct {
	OwnerID            string  `json:"owner_id" binding:"required,uuid"`
	Type               string  `json:"type" binding:"required"`
	Quantity           int64   `json:"quantity" binding:"required,gt=0"`
	Date               string  `json:"date" binding:"required"`
	UnitPrice          float64 `json:"unit_price" binding:"omitempty,gte=0"`
	BuyerName          string  `json:"buyer_name"`
	DestinationOwnerID *string `json:"destination_owner_id" binding:"omitempty,uuid"`
	ConfirmDuplicate   bool    `json:"confirm_duplicate"`
}

// CommitMovementRequest is the payload for committing a previewed plan.
// The plan is echoed back verbatim from the preview response; the
// client token makes retries replay-safe.
type CommitMovementRequest struct {
	PreviewMovementRequest
	Plan        *livestock.AllocationPlan `json:"plan" binding:"required"`
	ClientToken string                    `json:"client_token" binding:"required,max=128"`
}

// ReviseQuantityRequest is the payload for revising an edit session's
// total quantity
type ReviseQuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required,gt=0"`
}

// ManualLineRequest is one caller-picked allocation line
type ManualLineRequest struct {
	BatchID  string `json:"batch_id" binding:"required,uuid"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

// ManualLinesRequest is the payload for setting manual lines on an
// edit session
type ManualLinesRequest struct {
	Lines []ManualLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// StatsQuery carries the aggregation period
type StatsQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

// RestrictionQuery carries the date for the duplicate check
type RestrictionQuery struct {
	Date string `form:"date" binding:"required"`
}

// ListTransactionsQuery carries transaction list filters
type ListTransactionsQuery struct {
	OwnerID  string `form:"owner_id" binding:"omitempty,uuid"`
	Kind     string `form:"kind" binding:"omitempty,oneof=depletion mutation"`
	Type     string `form:"type"`
	Status   string `form:"status" binding:"omitempty,oneof=active reversed"`
	From     string `form:"from"`
	To       string `form:"to"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID                string  `json:"id"`
	OwnerID           string  `json:"owner_id"`
	StartDate         string  `json:"start_date"`
	InitialQuantity   int64   `json:"initial_quantity"`
	DepletedQuantity  int64   `json:"depleted_quantity"`
	SoldQuantity      int64   `json:"sold_quantity"`
	MutatedQuantity   int64   `json:"mutated_quantity"`
	AvailableQuantity int64   `json:"available_quantity"`
	Status            string  `json:"status"`
	AcquisitionCost   float64 `json:"acquisition_cost"`
	AgeDays           int     `json:"age_days"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func toBatchResponse(b *livestock.Batch) BatchResponse {
	cost, _ := b.AcquisitionCost.Float64()
	return BatchResponse{
		ID:                b.ID.String(),
		OwnerID:           b.OwnerID.String(),
		StartDate:         b.StartDate.Format(dateLayout),
		InitialQuantity:   b.InitialQuantity,
		DepletedQuantity:  b.DepletedQuantity,
		SoldQuantity:      b.SoldQuantity,
		MutatedQuantity:   b.MutatedQuantity,
		AvailableQuantity: b.AvailableQuantity(),
		Status:            string(b.Status),
		AcquisitionCost:   cost,
		AgeDays:           b.AgeDays(time.Now()),
		CreatedAt:         b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         b.UpdatedAt.Format(time.RFC3339),
	}
}

func toBatchResponses(batches []*livestock.Batch) []BatchResponse {
	out := make([]BatchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchResponse(b))
	}
	return out
}

// PreviewResponse carries the normalized type alongside the plan
type PreviewResponse struct {
	DepletionType string                    `json:"depletion_type"`
	LegacyLabel   string                    `json:"legacy_label"`
	Kind          string                    `json:"kind"`
	Plan          *livestock.AllocationPlan `json:"plan"`
}

func toPreviewResponse(result *applivestock.PreviewResult) PreviewResponse {
	return PreviewResponse{
		DepletionType: string(result.DepletionType),
		LegacyLabel:   result.LegacyLabel,
		Kind:          string(result.Kind),
		Plan:          result.Plan,
	}
}

// TransactionItemResponse is one committed allocation line
type TransactionItemResponse struct {
	BatchID  string `json:"batch_id"`
	Quantity int64  `json:"quantity"`
}

// TransactionResponse represents a committed transaction
type TransactionResponse struct {
	ID                 string                    `json:"id"`
	OwnerID            string                    `json:"owner_id"`
	Kind               string                    `json:"kind"`
	DepletionType      string                    `json:"depletion_type"`
	LegacyLabel        string                    `json:"legacy_label"`
	OccurredAt         string                    `json:"occurred_at"`
	Quantity           int64                     `json:"quantity"`
	RequestedQuantity  int64                     `json:"requested_quantity"`
	UnitPrice          float64                   `json:"unit_price"`
	TotalValue         float64                   `json:"total_value"`
	BuyerName          string                    `json:"buyer_name,omitempty"`
	DestinationOwnerID *string                   `json:"destination_owner_id,omitempty"`
	ActorID            string                    `json:"actor_id"`
	Status             string                    `json:"status"`
	Items              []TransactionItemResponse `json:"items"`
	CreatedAt          string                    `json:"created_at"`
	UpdatedAt          string                    `json:"updated_at"`
}

func toTransactionResponse(t *livestock.Transaction) TransactionResponse {
	unitPrice, _ := t.UnitPrice.Float64()
	totalValue, _ := t.TotalValue.Float64()
	items := make([]TransactionItemResponse, 0, len(t.Items))
	for _, item := range t.Items {
		items = append(items, TransactionItemResponse{
			BatchID:  item.BatchID.String(),
			Quantity: item.Quantity,
		})
	}
	resp := TransactionResponse{
		ID:                t.ID.String(),
		OwnerID:           t.OwnerID.String(),
		Kind:              string(t.Kind),
		DepletionType:     string(t.DepletionType),
		LegacyLabel:       t.DepletionType.LegacyLabel(),
		OccurredAt:        t.OccurredAt.Format(dateLayout),
		Quantity:          t.Quantity,
		RequestedQuantity: t.RequestedQuantity,
		UnitPrice:         unitPrice,
		TotalValue:        totalValue,
		BuyerName:         t.BuyerName,
		ActorID:           t.ActorID.String(),
		Status:            string(t.Status),
		Items:             items,
		CreatedAt:         t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         t.UpdatedAt.Format(time.RFC3339),
	}
	if t.DestinationOwnerID != nil {
		dest := t.DestinationOwnerID.String()
		resp.DestinationOwnerID = &dest
	}
	return resp
}

func toTransactionResponses(txns []*livestock.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	return out
}

// CommitResponse wraps the committed transaction with the replay flag
type CommitResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

// EditSessionResponse represents an open edit session
type EditSessionResponse struct {
	ID            string                    `json:"id"`
	TransactionID string                    `json:"transaction_id"`
	OwnerID       string                    `json:"owner_id"`
	Original      TransactionResponse       `json:"original"`
	Restored      []BatchResponse           `json:"restored_ledger"`
	Plan          *livestock.AllocationPlan `json:"plan,omitempty"`
	CreatedAt     string                    `json:"created_at"`
}

func toEditSessionResponse(s *livestock.EditSession) EditSessionResponse {
	return EditSessionResponse{
		ID:            s.ID.String(),
		TransactionID: s.TransactionID.String(),
		OwnerID:       s.OwnerID.String(),
		Original:      toTransactionResponse(s.Original),
		Restored:      toBatchResponses(s.Restored),
		Plan:          s.Plan,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}

func (q ListTransactionsQuery) toFilter() (livestock.TransactionFilter, error) {
	filter := livestock.TransactionFilter{Filter: shared.DefaultFilter()}
	if q.Page > 0 {
		filter.Page = q.Page
	}
	if q.PageSize > 0 {
		filter.PageSize = q.PageSize
	}
	if q.OrderBy != "" {
		filter.OrderBy = q.OrderBy
	}
	if q.OrderDir != "" {
		filter.OrderDir = q.OrderDir
	}
	if q.OwnerID != "" {
		ownerID, err := uuid.Parse(q.OwnerID)
		if err != nil {
			return filter, err
		}
		filter.OwnerID = &ownerID
	}
	if q.Kind != "" {
		kind := livestock.TransactionKind(q.Kind)
		filter.Kind = &kind
	}
	if q.Type != "" {
		depletionType := livestock.Normalize(q.Type)
		filter.DepletionType = &depletionType
	}
	if q.Status != "" {
		status := livestock.TransactionStatus(q.Status)
		filter.Status = &status
	}
	if q.From != "" {
		from, err := time.Parse(dateLayout, q.From)
		if err != nil {
			return filter, err
		}
		filter.DateFrom = &from
	}
	if q.To != "" {
		to, err := time.Parse(dateLayout, q.To)
		if err != nil {
			return filter, err
		}
		end := to.Add(24*time.Hour - time.Nanosecond)
		filter.DateTo = &end
	}
	return filter, nil
}

func (r PreviewMovementRequest) toPreviewRequest() (applivestock.PreviewRequest, error) {
	ownerID, err := uuid.Parse(r.OwnerID)
	if err != nil {
		return applivestock.PreviewRequest{}, err
	}
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return applivestock.PreviewRequest{}, err
	}
	req := applivestock.PreviewRequest{
		OwnerID:          ownerID,
		TypeLabel:        r.Type,
		Quantity:         r.Quantity,
		Date:             date,
		UnitPrice:        toDecimal(r.UnitPrice),
		BuyerName:        r.BuyerName,
		ConfirmDuplicate: r.ConfirmDuplicate,
	}
	if r.DestinationOwnerID != nil {
		dest, err := uuid.Parse(*r.DestinationOwnerID)
		if err != nil {
			return applivestock.PreviewRequest{}, err
		}
		req.DestinationOwnerID = &dest
	}
	return req, nil
}
