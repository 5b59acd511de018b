package handler

import (
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentHandler handles ingredient receipts and write-offs
type DocumentHandler struct {
	BaseHandler
	documents *ledger.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents *ledger.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// DocumentLineRequest is one ingredient line of a stock document
type DocumentLineRequest struct {
	IngredientID uuid.UUID       `json:"ingredient_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Unit         string          `json:"unit" binding:"required,max=20"`
	UnitCostUsd  decimal.Decimal `json:"unit_cost_usd" binding:"gte=0"`
}

// PostDocumentRequest posts a receipt or write-off
type PostDocumentRequest struct {
	BranchID uuid.UUID             `json:"branch_id" binding:"required"`
	Number   string                `json:"number" binding:"max=50"`
	Reason   string                `json:"reason" binding:"max=500"`
	Lines    []DocumentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

func (r *PostDocumentRequest) input(actor string, at time.Time) ledger.PostDocumentInput {
	lines := make([]ledger.DocumentLineInput, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = ledger.DocumentLineInput{
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			UnitCostUsd:  l.UnitCostUsd,
		}
	}
	return ledger.PostDocumentInput{
		BranchID:   r.BranchID,
		Number:     r.Number,
		Reason:     r.Reason,
		Lines:      lines,
		Actor:      actor,
		OccurredAt: at,
	}
}

// PostReceipt godoc
// @Summary      Post an ingredient receipt
// @Tags         documents
// @Router       /documents/receipts [post]
func (h *DocumentHandler) PostReceipt(c *gin.Context) {
	var req PostDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.documents.PostReceipt(c.Request.Context(), req.input(h.actor(c), h.now()))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toStockDocumentResponse(doc))
}

// PostWriteOff godoc
// @Summary      Post an ingredient write-off
// @Tags         documents
// @Router       /documents/write-offs [post]
func (h *DocumentHandler) PostWriteOff(c *gin.Context) {
	var req PostDocumentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	doc, err := h.documents.PostWriteOff(c.Request.Context(), req.input(h.actor(c), h.now()))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toStockDocumentResponse(doc))
}

// Reverse godoc
// @Summary      Reverse a posted stock document
// @Tags         documents
// @Router       /documents/{id}/reverse [post]
func (h *DocumentHandler) Reverse(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.ReverseDocument(c.Request.Context(), id, h.actor(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toStockDocumentResponse(doc))
}

// GetByID godoc
// @Summary      Get a stock document
// @Tags         documents
// @Router       /documents/{id} [get]
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.documents.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toStockDocumentResponse(doc))
}

// List godoc
// @Summary      List stock documents of a branch
// @Tags         documents
// @Param        branch_id query string true "Branch ID"
// @Param        kind query string false "RECEIPT or WRITE_OFF"
// @Router       /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	branchID, ok := h.uuidQuery(c, "branch_id")
	if !ok {
		return
	}
	kind := stock.DocumentKind(c.Query("kind"))
	if kind != "" && !kind.IsValid() {
		h.BadRequest(c, "Invalid kind")
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	docs, total, err := h.documents.ListDocuments(c.Request.Context(), branchID, kind, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]StockDocumentResponse, len(docs))
	for i := range docs {
		out[i] = toStockDocumentResponse(&docs[i])
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}
