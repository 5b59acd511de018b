package handler

import (
	"slices"

	stocktakingapp "github.com/erp/stockcore/internal/application/stocktaking"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryHandler handles physical stock counts
type InventoryHandler struct {
	BaseHandler
	reconciler *stocktakingapp.Reconciler
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(reconciler *stocktakingapp.Reconciler) *InventoryHandler {
	return &InventoryHandler{reconciler: reconciler}
}

// CreateInventoryRequest snapshots a branch for counting
type CreateInventoryRequest struct {
	BranchID      uuid.UUID `json:"branch_id" binding:"required"`
	Type          string    `json:"type" binding:"required,oneof=RAW_MATERIALS FINISHED_PRODUCTS"`
	InventoryDate string    `json:"inventory_date"`
}

// CountRequest is the counted quantity of one inventory item
type CountRequest struct {
	ItemID   uuid.UUID       `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"gte=0"`
}

// CompleteInventoryRequest closes a count; every item must be counted
type CompleteInventoryRequest struct {
	Counted []CountRequest `json:"counted" binding:"required,min=1,dive"`
}

var inventoryStatuses = []stocktaking.Status{
	stocktaking.StatusDraft, stocktaking.StatusInProgress, stocktaking.StatusCompleted, stocktaking.StatusCancelled,
}

// Create godoc
// @Summary      Create an inventory count
// @Tags         inventories
// @Router       /inventories [post]
func (h *InventoryHandler) Create(c *gin.Context) {
	var req CreateInventoryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	now := h.now()
	date := now
	if req.InventoryDate != "" {
		d, err := parseDate(req.InventoryDate)
		if err != nil {
			h.BadRequest(c, "Invalid inventory_date")
			return
		}
		date = d
	}

	inv, err := h.reconciler.CreateInventory(c.Request.Context(), stocktakingapp.CreateInventoryInput{
		BranchID:      req.BranchID,
		Type:          stock.Category(req.Type),
		InventoryDate: date,
		Actor:         h.actor(c),
		OccurredAt:    now,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toInventoryResponse(inv))
}

// Start godoc
// @Summary      Start counting
// @Tags         inventories
// @Router       /inventories/{id}/start [post]
func (h *InventoryHandler) Start(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.reconciler.StartInventory(c.Request.Context(), id, h.actor(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInventoryResponse(inv))
}

// Complete godoc
// @Summary      Complete a count, posting discrepancies as adjustments
// @Tags         inventories
// @Router       /inventories/{id}/complete [post]
func (h *InventoryHandler) Complete(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CompleteInventoryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	counts := make([]stocktaking.Count, len(req.Counted))
	for i, ct := range req.Counted {
		counts[i] = stocktaking.Count{ItemID: ct.ItemID, Quantity: ct.Quantity}
	}

	inv, err := h.reconciler.CompleteInventory(c.Request.Context(), stocktakingapp.CompleteInventoryInput{
		InventoryID: id,
		Counted:     counts,
		Actor:       h.actor(c),
		OccurredAt:  h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInventoryResponse(inv))
}

// Cancel godoc
// @Summary      Cancel a count
// @Tags         inventories
// @Router       /inventories/{id}/cancel [post]
func (h *InventoryHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	inv, err := h.reconciler.CancelInventory(c.Request.Context(), id, req.Reason, h.actor(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInventoryResponse(inv))
}

// GetByID godoc
// @Summary      Get an inventory count
// @Tags         inventories
// @Router       /inventories/{id} [get]
func (h *InventoryHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.reconciler.GetInventory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toInventoryResponse(inv))
}

// List godoc
// @Summary      List inventory counts of a branch
// @Tags         inventories
// @Param        branch_id query string true "Branch ID"
// @Param        status query string false "Inventory status"
// @Router       /inventories [get]
func (h *InventoryHandler) List(c *gin.Context) {
	branchID, ok := h.uuidQuery(c, "branch_id")
	if !ok {
		return
	}
	status := stocktaking.Status(c.Query("status"))
	if status != "" && !slices.Contains(inventoryStatuses, status) {
		h.BadRequest(c, "Invalid status")
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	rows, total, err := h.reconciler.ListInventories(c.Request.Context(), branchID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]InventoryResponse, len(rows))
	for i := range rows {
		out[i] = toInventoryResponse(&rows[i])
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}
