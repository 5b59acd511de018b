package handler

import (
	productionapp "github.com/erp/stockcore/internal/application/production"
	"github.com/erp/stockcore/internal/domain/production"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchHandler drives production batches
type BatchHandler struct {
	BaseHandler
	engine *productionapp.Engine
}

// NewBatchHandler creates a new BatchHandler
func NewBatchHandler(engine *productionapp.Engine) *BatchHandler {
	return &BatchHandler{engine: engine}
}

// QuantityRequest overrides one ingredient quantity of a batch
type QuantityRequest struct {
	IngredientID uuid.UUID       `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"gte=0"`
}

// PlanBatchRequest plans a batch against a recipe version
type PlanBatchRequest struct {
	RecipeID        uuid.UUID       `json:"recipe_id" binding:"required"`
	RecipeVersionID uuid.UUID       `json:"recipe_version_id" binding:"required"`
	BranchID        uuid.UUID       `json:"branch_id" binding:"required"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity" binding:"required,gt=0"`
	PlannedDate     string          `json:"planned_date"`
	Notes           string          `json:"notes" binding:"max=500"`
}

// StartBatchRequest starts a batch, optionally adjusting planned quantities
type StartBatchRequest struct {
	Overrides []QuantityRequest `json:"overrides" binding:"dive"`
}

// CompleteBatchRequest posts the outcome of a batch
type CompleteBatchRequest struct {
	ActualOutput      int64             `json:"actual_output" binding:"required,gt=0"`
	ActualConsumption []QuantityRequest `json:"actual_consumption" binding:"dive"`
}

// CancelRequest carries the reason a document is abandoned
type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func toOverrides(reqs []QuantityRequest) []production.QuantityOverride {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]production.QuantityOverride, len(reqs))
	for i, r := range reqs {
		out[i] = production.QuantityOverride{IngredientID: r.IngredientID, Quantity: r.Quantity}
	}
	return out
}

// Plan godoc
// @Summary      Plan a production batch
// @Tags         batches
// @Router       /batches [post]
func (h *BatchHandler) Plan(c *gin.Context) {
	var req PlanBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	now := h.now()
	plannedDate := now
	if req.PlannedDate != "" {
		d, err := parseDate(req.PlannedDate)
		if err != nil {
			h.BadRequest(c, "Invalid planned_date")
			return
		}
		plannedDate = d
	}

	b, err := h.engine.PlanBatch(c.Request.Context(), productionapp.PlanBatchInput{
		RecipeID:        req.RecipeID,
		RecipeVersionID: req.RecipeVersionID,
		BranchID:        req.BranchID,
		PlannedQuantity: req.PlannedQuantity,
		PlannedDate:     plannedDate,
		Notes:           req.Notes,
		Actor:           h.actor(c),
		OccurredAt:      now,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toBatchResponse(b))
}

// Start godoc
// @Summary      Start a planned batch
// @Tags         batches
// @Router       /batches/{id}/start [post]
func (h *BatchHandler) Start(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req StartBatchRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	b, err := h.engine.StartBatch(c.Request.Context(), productionapp.StartBatchInput{
		BatchID:    id,
		Overrides:  toOverrides(req.Overrides),
		Actor:      h.actor(c),
		OccurredAt: h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponse(b))
}

// Complete godoc
// @Summary      Complete a batch, posting consumption and the produced lot
// @Tags         batches
// @Router       /batches/{id}/complete [post]
func (h *BatchHandler) Complete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CompleteBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}

	b, err := h.engine.CompleteBatch(c.Request.Context(), productionapp.CompleteBatchInput{
		BatchID:           id,
		ActualOutput:      req.ActualOutput,
		ActualConsumption: toOverrides(req.ActualConsumption),
		Actor:             h.actor(c),
		OccurredAt:        h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponse(b))
}

// Cancel godoc
// @Summary      Cancel a batch that has not completed
// @Tags         batches
// @Router       /batches/{id}/cancel [post]
func (h *BatchHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	b, err := h.engine.CancelBatch(c.Request.Context(), productionapp.CancelBatchInput{
		BatchID:    id,
		Reason:     req.Reason,
		Actor:      h.actor(c),
		OccurredAt: h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponse(b))
}

// GetByID godoc
// @Summary      Get a production batch
// @Tags         batches
// @Router       /batches/{id} [get]
func (h *BatchHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	b, err := h.engine.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBatchResponse(b))
}

// List godoc
// @Summary      List batches of a branch
// @Tags         batches
// @Param        branch_id query string true "Branch ID"
// @Param        status query string false "Batch status"
// @Router       /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	branchID, ok := h.uuidQuery(c, "branch_id")
	if !ok {
		return
	}
	status := production.BatchStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		h.BadRequest(c, "Invalid status")
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	rows, total, err := h.engine.ListBatches(c.Request.Context(), branchID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]BatchResponse, len(rows))
	for i := range rows {
		out[i] = toBatchResponse(&rows[i])
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}
