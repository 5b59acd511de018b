package handler

import (
	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IngredientHandler exposes the raw-material ledger of a branch
type IngredientHandler struct {
	BaseHandler
	ledger *ledger.IngredientLedger
}

// NewIngredientHandler creates a new IngredientHandler
func NewIngredientHandler(l *ledger.IngredientLedger) *IngredientHandler {
	return &IngredientHandler{ledger: l}
}

// ApplyMovementRequest posts one signed change to an ingredient balance
type ApplyMovementRequest struct {
	MovementType  string           `json:"movement_type" binding:"required,oneof=RECEIPT WRITE_OFF PRODUCTION ADJUSTMENT TRANSFER_OUT TRANSFER_IN"`
	Quantity      decimal.Decimal  `json:"quantity" binding:"required"`
	Unit          string           `json:"unit" binding:"required,max=20"`
	UnitCostUsd   *decimal.Decimal `json:"unit_cost_usd"`
	ReferenceType string           `json:"reference_type" binding:"omitempty,max=30"`
	ReferenceID   *uuid.UUID       `json:"reference_id"`
	Notes         string           `json:"notes" binding:"max=500"`
}

// SetIngredientRequest moves an ingredient balance to an absolute quantity
type SetIngredientRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit" binding:"required,max=20"`
	Notes    string          `json:"notes" binding:"max=500"`
}

// pairParams reads the branch and ingredient path parameters
func (h *IngredientHandler) pairParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	branchID, ok := h.uuidParam(c, "branch_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	ingredientID, ok := h.uuidParam(c, "ingredient_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return branchID, ingredientID, true
}

// ApplyMovement godoc
// @Summary      Post an ingredient movement
// @Tags         ingredients
// @Router       /branches/{branch_id}/ingredients/{ingredient_id}/movements [post]
func (h *IngredientHandler) ApplyMovement(c *gin.Context) {
	branchID, ingredientID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req ApplyMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ref := stock.Reference{Type: stock.ReferenceType(req.ReferenceType)}
	if req.ReferenceID != nil {
		ref.ID = *req.ReferenceID
		if ref.Type == stock.ReferenceNone {
			ref.Type = stock.ReferenceManual
		}
	}

	m, err := h.ledger.ApplyMovement(c.Request.Context(), ledger.ApplyMovementInput{
		BranchID:     branchID,
		IngredientID: ingredientID,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		Type:         stock.MovementType(req.MovementType),
		Reference:    ref,
		Notes:        req.Notes,
		UnitCostUsd:  req.UnitCostUsd,
		Actor:        h.actor(c),
		OccurredAt:   h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toIngredientMovementResponse(m))
}

// SetAbsolute godoc
// @Summary      Set an ingredient balance to an absolute quantity
// @Tags         ingredients
// @Router       /branches/{branch_id}/ingredients/{ingredient_id} [put]
func (h *IngredientHandler) SetAbsolute(c *gin.Context) {
	branchID, ingredientID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req SetIngredientRequest
	if !h.bindJSON(c, &req) {
		return
	}

	m, err := h.ledger.SetAbsolute(c.Request.Context(), ledger.SetIngredientInput{
		BranchID:     branchID,
		IngredientID: ingredientID,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		Reference:    stock.Reference{Type: stock.ReferenceManual},
		Notes:        req.Notes,
		Actor:        h.actor(c),
		OccurredAt:   h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if m == nil {
		// Balance already matched; nothing was posted
		h.Success(c, nil)
		return
	}
	h.Success(c, toIngredientMovementResponse(m))
}

// GetStock godoc
// @Summary      Get an ingredient balance
// @Tags         ingredients
// @Router       /branches/{branch_id}/ingredients/{ingredient_id} [get]
func (h *IngredientHandler) GetStock(c *gin.Context) {
	branchID, ingredientID, ok := h.pairParams(c)
	if !ok {
		return
	}
	s, err := h.ledger.GetStock(c.Request.Context(), branchID, ingredientID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if s == nil {
		h.Success(c, IngredientStockResponse{BranchID: branchID, IngredientID: ingredientID})
		return
	}
	h.Success(c, toIngredientStockResponse(s))
}

// ListBalances godoc
// @Summary      List ingredient balances of a branch
// @Tags         ingredients
// @Router       /branches/{branch_id}/ingredients [get]
func (h *IngredientHandler) ListBalances(c *gin.Context) {
	branchID, ok := h.uuidParam(c, "branch_id")
	if !ok {
		return
	}
	rows, err := h.ledger.ListBalances(c.Request.Context(), branchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]IngredientStockResponse, len(rows))
	for i := range rows {
		out[i] = toIngredientStockResponse(&rows[i])
	}
	h.Success(c, out)
}

// ListMovements godoc
// @Summary      List ingredient movements
// @Tags         ingredients
// @Router       /branches/{branch_id}/ingredients/{ingredient_id}/movements [get]
func (h *IngredientHandler) ListMovements(c *gin.Context) {
	branchID, ingredientID, ok := h.pairParams(c)
	if !ok {
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	rows, total, err := h.ledger.ListMovements(c.Request.Context(), branchID, ingredientID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toIngredientMovementResponses(rows), total, filter.Page, filter.PageSize)
}
