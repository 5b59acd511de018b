package handler

import (
	"strconv"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductHandler exposes the finished-goods ledger of a branch
type ProductHandler struct {
	BaseHandler
	ledger *ledger.ProductLedger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(l *ledger.ProductLedger) *ProductHandler {
	return &ProductHandler{ledger: l}
}

// DocumentRef names the document a product movement belongs to
type DocumentRef struct {
	DocumentType string     `json:"document_type" binding:"omitempty,max=30"`
	DocumentID   *uuid.UUID `json:"document_id"`
}

func (d DocumentRef) reference() stock.Reference {
	ref := stock.Reference{Type: stock.ReferenceType(d.DocumentType)}
	if d.DocumentID != nil {
		ref.ID = *d.DocumentID
		if ref.Type == stock.ReferenceNone {
			ref.Type = stock.ReferenceManual
		}
	}
	return ref
}

// AddLotRequest creates a lot of finished goods
type AddLotRequest struct {
	DocumentRef
	Quantity       int64           `json:"quantity" binding:"required,gt=0"`
	ProductionDate string          `json:"production_date"`
	ExpiryDate     string          `json:"expiry_date"`
	BatchID        *uuid.UUID      `json:"batch_id"`
	UnitCostUsd    decimal.Decimal `json:"unit_cost_usd"`
	UnitCostTjs    decimal.Decimal `json:"unit_cost_tjs"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	OperationType  string          `json:"operation_type" binding:"omitempty,oneof=PRODUCTION RETURN TRANSFER_IN ADJUSTMENT"`
	Notes          string          `json:"notes" binding:"max=500"`
}

// DeductRequest removes finished goods in FIFO order
type DeductRequest struct {
	DocumentRef
	Quantity      int64  `json:"quantity" binding:"required,gt=0"`
	OperationType string `json:"operation_type" binding:"omitempty,oneof=SALE SPOILAGE TRANSFER_OUT ADJUSTMENT"`
	Notes         string `json:"notes" binding:"max=500"`
}

// RecordProductMovementRequest posts a signed change without naming lots
type RecordProductMovementRequest struct {
	DocumentRef
	Quantity      int64  `json:"quantity" binding:"required"`
	OperationType string `json:"operation_type" binding:"required,oneof=PRODUCTION SALE SPOILAGE RETURN TRANSFER_OUT TRANSFER_IN ADJUSTMENT"`
	Notes         string `json:"notes" binding:"max=500"`
}

// SetProductRequest moves a product aggregate to an absolute quantity
type SetProductRequest struct {
	Quantity int64  `json:"quantity" binding:"gte=0"`
	Notes    string `json:"notes" binding:"max=500"`
}

// TransferProductRequest moves finished goods to another branch in one step
type TransferProductRequest struct {
	DocumentRef
	ToBranchID uuid.UUID `json:"to_branch_id" binding:"required"`
	Quantity   int64     `json:"quantity" binding:"required,gt=0"`
	Notes      string    `json:"notes" binding:"max=500"`
}

func (h *ProductHandler) pairParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	branchID, ok := h.uuidParam(c, "branch_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	recipeID, ok := h.uuidParam(c, "recipe_id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return branchID, recipeID, true
}

// AddLot godoc
// @Summary      Add a lot of finished goods
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id}/lots [post]
func (h *ProductHandler) AddLot(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req AddLotRequest
	if !h.bindJSON(c, &req) {
		return
	}

	now := h.now()
	productionDate := now
	if req.ProductionDate != "" {
		d, err := parseDate(req.ProductionDate)
		if err != nil {
			h.BadRequest(c, "Invalid production_date")
			return
		}
		productionDate = d
	}
	var expiry *time.Time
	if req.ExpiryDate != "" {
		d, err := parseDate(req.ExpiryDate)
		if err != nil {
			h.BadRequest(c, "Invalid expiry_date")
			return
		}
		expiry = &d
	}

	lot, m, err := h.ledger.AddLot(c.Request.Context(), ledger.AddLotInput{
		BranchID:       branchID,
		RecipeID:       recipeID,
		BatchID:        req.BatchID,
		ProductionDate: productionDate,
		ExpiryDate:     expiry,
		Quantity:       req.Quantity,
		Cost: stock.LotCost{
			UnitCostUsd:  req.UnitCostUsd,
			UnitCostTjs:  req.UnitCostTjs,
			ExchangeRate: req.ExchangeRate,
		},
		Operation:  stock.OperationType(req.OperationType),
		Document:   req.reference(),
		Notes:      req.Notes,
		Actor:      h.actor(c),
		OccurredAt: now,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, AddLotResponse{Lot: toProductLotResponse(lot), Movement: toProductMovementResponse(m)})
}

// Deduct godoc
// @Summary      Deduct finished goods in FIFO order
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id}/deductions [post]
func (h *ProductHandler) Deduct(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req DeductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.ledger.Deduct(c.Request.Context(), ledger.DeductInput{
		BranchID:   branchID,
		RecipeID:   recipeID,
		Quantity:   req.Quantity,
		Operation:  stock.OperationType(req.OperationType),
		Document:   req.reference(),
		Notes:      req.Notes,
		Actor:      h.actor(c),
		OccurredAt: h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, DeductResponse{
		Movement:    toProductMovementResponse(res.Movement),
		Allocations: toLotAllocationResponses(res.Allocations),
	})
}

// RecordMovement godoc
// @Summary      Record a product movement without lot selection
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id}/movements [post]
func (h *ProductHandler) RecordMovement(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req RecordProductMovementRequest
	if !h.bindJSON(c, &req) {
		return
	}

	m, err := h.ledger.RecordMovement(c.Request.Context(), ledger.RecordMovementInput{
		BranchID:   branchID,
		RecipeID:   recipeID,
		Quantity:   req.Quantity,
		Operation:  stock.OperationType(req.OperationType),
		Document:   req.reference(),
		Notes:      req.Notes,
		Actor:      h.actor(c),
		OccurredAt: h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toProductMovementResponse(m))
}

// SetAbsolute godoc
// @Summary      Set a product aggregate to an absolute quantity
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id} [put]
func (h *ProductHandler) SetAbsolute(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req SetProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	m, err := h.ledger.SetAbsolute(c.Request.Context(), ledger.SetProductInput{
		BranchID:   branchID,
		RecipeID:   recipeID,
		Quantity:   req.Quantity,
		Document:   stock.Reference{Type: stock.ReferenceManual},
		Notes:      req.Notes,
		Actor:      h.actor(c),
		OccurredAt: h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if m == nil {
		h.Success(c, nil)
		return
	}
	h.Success(c, toProductMovementResponse(m))
}

// Transfer godoc
// @Summary      Move finished goods to another branch
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id}/transfer [post]
func (h *ProductHandler) Transfer(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	var req TransferProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	out, in, err := h.ledger.Transfer(c.Request.Context(), ledger.ProductTransferInput{
		FromBranchID: branchID,
		ToBranchID:   req.ToBranchID,
		RecipeID:     recipeID,
		Quantity:     req.Quantity,
		Document:     req.reference(),
		Notes:        req.Notes,
		Actor:        h.actor(c),
		OccurredAt:   h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ProductTransferResponse{Out: toProductMovementResponse(out), In: toProductMovementResponse(in)})
}

// GetBalance godoc
// @Summary      Get a product aggregate quantity
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id} [get]
func (h *ProductHandler) GetBalance(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	qty, err := h.ledger.GetBalance(c.Request.Context(), branchID, recipeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProductBalanceResponse{BranchID: branchID, RecipeID: recipeID, Quantity: qty})
}

// ListBalances godoc
// @Summary      List products in stock at a branch
// @Tags         products
// @Router       /branches/{branch_id}/products [get]
func (h *ProductHandler) ListBalances(c *gin.Context) {
	branchID, ok := h.uuidParam(c, "branch_id")
	if !ok {
		return
	}
	rows, err := h.ledger.ListPositiveBalances(c.Request.Context(), branchID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ProductBalanceResponse, len(rows))
	for i := range rows {
		out[i] = toProductBalanceResponse(&rows[i])
	}
	h.Success(c, out)
}

// ListLots godoc
// @Summary      List lots of a product in FIFO order
// @Tags         products
// @Param        include_empty query bool false "Include depleted lots"
// @Router       /branches/{branch_id}/products/{recipe_id}/lots [get]
func (h *ProductHandler) ListLots(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	includeEmpty := false
	if raw := c.Query("include_empty"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "Invalid include_empty")
			return
		}
		includeEmpty = v
	}

	rows, err := h.ledger.ListLots(c.Request.Context(), branchID, recipeID, includeEmpty)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]ProductLotResponse, len(rows))
	for i := range rows {
		out[i] = toProductLotResponse(&rows[i])
	}
	h.Success(c, out)
}

// ListMovements godoc
// @Summary      List product movements
// @Tags         products
// @Router       /branches/{branch_id}/products/{recipe_id}/movements [get]
func (h *ProductHandler) ListMovements(c *gin.Context) {
	branchID, recipeID, ok := h.pairParams(c)
	if !ok {
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}
	rows, total, err := h.ledger.ListMovements(c.Request.Context(), branchID, recipeID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, toProductMovementResponses(rows), total, filter.Page, filter.PageSize)
}
