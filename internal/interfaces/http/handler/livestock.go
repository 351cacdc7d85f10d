package handler

import (
	"context"
	"time"

	applivestock "github.com/agristock/backend/internal/application/livestock"
	"github.com/agristock/backend/internal/domain/livestock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LivestockHandler exposes the batch ledger over HTTP: batch
// registration, the preview/commit pipeline, edit sessions, the
// restriction check and period stats.
type LivestockHandler struct {
	BaseHandler
	ledger *applivestock.LedgerService
	edits  *applivestock.EditService
	stats  *applivestock.StatsService
}

// NewLivestockHandler creates a new livestock handler
func NewLivestockHandler(
	ledger *applivestock.LedgerService,
	edits *applivestock.EditService,
	stats *applivestock.StatsService,
) *LivestockHandler {
	return &LivestockHandler{
		ledger: ledger,
		edits:  edits,
		stats:  stats,
	}
}

// RegisterRoutes registers all livestock routes
func (h *LivestockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/livestock")

	g.POST("/batches", h.RegisterBatch)
	g.GET("/owners/:owner_id/batches", h.ListBatches)
	g.GET("/owners/:owner_id/restriction", h.CheckRestriction)
	g.GET("/owners/:owner_id/stats", h.GetStats)

	g.POST("/depletions/preview", h.PreviewDepletion)
	g.POST("/mutations/preview", h.PreviewMutation)

	g.GET("/transactions", h.ListTransactions)
	g.POST("/transactions", h.Commit)
	g.GET("/transactions/:id", h.GetTransaction)
	g.POST("/transactions/:id/reverse", h.ReverseTransaction)
	g.POST("/transactions/:id/edit-sessions", h.BeginEdit)

	g.POST("/edit-sessions/:id/revise", h.ReviseQuantity)
	g.POST("/edit-sessions/:id/lines", h.SetManualLines)
	g.POST("/edit-sessions/:id/commit", h.CommitEdit)
	g.DELETE("/edit-sessions/:id", h.CancelEdit)
}

// RegisterBatch adds a new cohort to an owner's ledger
func (h *LivestockHandler) RegisterBatch(c *gin.Context) {
	var req RegisterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		h.BadRequest(c, "Invalid owner ID format")
		return
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		h.BadRequest(c, "Invalid start date, expected YYYY-MM-DD")
		return
	}

	batch, err := h.ledger.RegisterBatch(c.Request.Context(), applivestock.RegisterBatchRequest{
		OwnerID:         ownerID,
		StartDate:       startDate,
		InitialQuantity: req.InitialQuantity,
		AcquisitionCost: toDecimal(req.AcquisitionCost),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toBatchResponse(batch))
}

// ListBatches returns an owner's non-retired batches oldest first
func (h *LivestockHandler) ListBatches(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		h.BadRequest(c, "Invalid owner ID format")
		return
	}
	batches, err := h.ledger.ListBatches(c.Request.Context(), ownerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toBatchResponses(batches))
}

// CheckRestriction runs the duplicate-movement check for an owner and
// date. The result is informational; a blocked commit reports the same
// condition as an error.
func (h *LivestockHandler) CheckRestriction(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		h.BadRequest(c, "Invalid owner ID format")
		return
	}
	var query RestrictionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	date, err := time.Parse(dateLayout, query.Date)
	if err != nil {
		h.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
		return
	}

	result, err := h.ledger.CheckRestriction(c.Request.Context(), ownerID, date)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// GetStats aggregates an owner's committed activity over a period
func (h *LivestockHandler) GetStats(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		h.BadRequest(c, "Invalid owner ID format")
		return
	}
	var query StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	from, err := time.Parse(dateLayout, query.From)
	if err != nil {
		h.BadRequest(c, "Invalid from date, expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, query.To)
	if err != nil {
		h.BadRequest(c, "Invalid to date, expected YYYY-MM-DD")
		return
	}
	// Include the whole end day.
	to = to.Add(24*time.Hour - time.Nanosecond)

	stats, err := h.stats.GetStats(c.Request.Context(), ownerID, from, to)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, stats)
}

// PreviewDepletion computes a FIFO plan for a depletion without
// writing anything
func (h *LivestockHandler) PreviewDepletion(c *gin.Context) {
	h.preview(c, h.ledger.PreviewDepletion)
}

// PreviewMutation computes a FIFO plan for a transfer without
// writing anything
func (h *LivestockHandler) PreviewMutation(c *gin.Context) {
	h.preview(c, h.ledger.PreviewMutation)
}

func (h *LivestockHandler) preview(c *gin.Context, fn func(ctx context.Context, req applivestock.PreviewRequest) (*applivestock.PreviewResult, error)) {
	var req PreviewMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	previewReq, err := req.toPreviewRequest()
	if err != nil {
		h.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := fn(c.Request.Context(), previewReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toPreviewResponse(result))
}

// Commit applies a previewed plan atomically and idempotently
func (h *LivestockHandler) Commit(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing "+ActorIDHeader+" header")
		return
	}
	var req CommitMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	previewReq, err := req.toPreviewRequest()
	if err != nil {
		h.BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	result, err := h.ledger.Commit(c.Request.Context(), applivestock.CommitRequest{
		PreviewRequest: previewReq,
		Plan:           req.Plan,
		ClientToken:    req.ClientToken,
		ActorID:        actorID,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	resp := CommitResponse{
		Transaction: toTransactionResponse(result.Transaction),
		Replayed:    result.Replayed,
	}
	if result.Replayed {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// GetTransaction returns a single transaction with its items
func (h *LivestockHandler) GetTransaction(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}
	txn, err := h.ledger.GetTransaction(c.Request.Context(), txnID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toTransactionResponse(txn))
}

// ListTransactions returns transactions matching the given filters
func (h *LivestockHandler) ListTransactions(c *gin.Context) {
	var query ListTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	txns, err := h.ledger.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toTransactionResponses(txns))
}

// ReverseTransaction releases a transaction's quantity back onto its
// batches and marks it reversed
func (h *LivestockHandler) ReverseTransaction(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing "+ActorIDHeader+" header")
		return
	}
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	txn, err := h.ledger.ReverseTransaction(c.Request.Context(), txnID, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toTransactionResponse(txn))
}

// BeginEdit opens an edit session over the restored ledger of a
// committed transaction
func (h *LivestockHandler) BeginEdit(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}
	session, err := h.edits.BeginEdit(c.Request.Context(), txnID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toEditSessionResponse(session))
}

// ReviseQuantity recomputes the session plan for a new total quantity
func (h *LivestockHandler) ReviseQuantity(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}
	var req ReviseQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	plan, err := h.edits.ReviseQuantity(c.Request.Context(), sessionID, req.Quantity)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, plan)
}

// SetManualLines validates caller-picked lines against the restored
// ledger and stores the resulting plan
func (h *LivestockHandler) SetManualLines(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}
	var req ManualLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	lines := make([]livestock.ManualLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		batchID, err := uuid.Parse(line.BatchID)
		if err != nil {
			h.BadRequest(c, "Invalid batch ID format")
			return
		}
		lines = append(lines, livestock.ManualLine{BatchID: batchID, Quantity: line.Quantity})
	}

	plan, err := h.edits.SetManualLines(c.Request.Context(), sessionID, lines)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, plan)
}

// CommitEdit applies the session's revised plan to the live ledger
// atomically
func (h *LivestockHandler) CommitEdit(c *gin.Context) {
	actorID, err := getActorID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing "+ActorIDHeader+" header")
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}

	txn, err := h.edits.CommitEdit(c.Request.Context(), sessionID, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toTransactionResponse(txn))
}

// CancelEdit discards an edit session without touching the ledger
func (h *LivestockHandler) CancelEdit(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return
	}
	if err := h.edits.CancelEdit(c.Request.Context(), sessionID); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.NoContent(c)
}
