package handler

import (
	"slices"

	transferapp "github.com/erp/stockcore/internal/application/transfer"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferHandler handles inter-branch transfers
type TransferHandler struct {
	BaseHandler
	engine *transferapp.Engine
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(engine *transferapp.Engine) *TransferHandler {
	return &TransferHandler{engine: engine}
}

// TransferItemRequest is one item to move
type TransferItemRequest struct {
	// ItemKind defaults to the kind the transfer type holds
	ItemKind string          `json:"item_kind" binding:"omitempty,oneof=INGREDIENT PRODUCT"`
	ItemID   uuid.UUID       `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Unit     string          `json:"unit" binding:"max=20"`
}

// CreateTransferRequest creates a transfer between two branches
type CreateTransferRequest struct {
	SenderBranchID   uuid.UUID             `json:"sender_branch_id" binding:"required"`
	ReceiverBranchID uuid.UUID             `json:"receiver_branch_id" binding:"required"`
	Type             string                `json:"type" binding:"required,oneof=RAW_MATERIALS FINISHED_PRODUCTS"`
	Items            []TransferItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes            string                `json:"notes" binding:"max=500"`
}

// ReceiptRequest is the counted quantity of one transfer item
type ReceiptRequest struct {
	ItemID   uuid.UUID       `json:"item_id" binding:"required"`
	Quantity decimal.Decimal `json:"quantity" binding:"gte=0"`
}

// ReceiveTransferRequest closes a transfer; omitted items count as fully received
type ReceiveTransferRequest struct {
	Received []ReceiptRequest `json:"received" binding:"dive"`
}

var transferStatuses = []transfer.Status{
	transfer.StatusCreated, transfer.StatusInTransit, transfer.StatusReceived, transfer.StatusCancelled,
}

// Create godoc
// @Summary      Create a transfer
// @Tags         transfers
// @Router       /transfers [post]
func (h *TransferHandler) Create(c *gin.Context) {
	var req CreateTransferRequest
	if !h.bindJSON(c, &req) {
		return
	}

	category := stock.Category(req.Type)
	items := make([]transfer.ItemInput, len(req.Items))
	for i, it := range req.Items {
		kind := stock.ItemKind(it.ItemKind)
		if kind == "" {
			kind = category.ItemKind()
		}
		items[i] = transfer.ItemInput{
			Item:     stock.ItemRef{Kind: kind, ID: it.ItemID},
			Quantity: it.Quantity,
			Unit:     it.Unit,
		}
	}

	t, err := h.engine.CreateTransfer(c.Request.Context(), transferapp.CreateTransferInput{
		SenderBranchID:   req.SenderBranchID,
		ReceiverBranchID: req.ReceiverBranchID,
		Type:             category,
		Items:            items,
		Notes:            req.Notes,
		Actor:            h.actor(c),
		OccurredAt:       h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toTransferResponse(t))
}

// Send godoc
// @Summary      Send a transfer, deducting stock at the sender
// @Tags         transfers
// @Router       /transfers/{id}/send [post]
func (h *TransferHandler) Send(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := h.engine.SendTransfer(c.Request.Context(), id, h.actor(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(t))
}

// Receive godoc
// @Summary      Receive a transfer, crediting stock at the receiver
// @Tags         transfers
// @Router       /transfers/{id}/receive [post]
func (h *TransferHandler) Receive(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req ReceiveTransferRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	receipts := make([]transfer.Receipt, len(req.Received))
	for i, r := range req.Received {
		receipts[i] = transfer.Receipt{ItemID: r.ItemID, Quantity: r.Quantity}
	}

	t, err := h.engine.ReceiveTransfer(c.Request.Context(), transferapp.ReceiveTransferInput{
		TransferID: id,
		Received:   receipts,
		Actor:      h.actor(c),
		OccurredAt: h.now(),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(t))
}

// Cancel godoc
// @Summary      Cancel a transfer that was not sent
// @Tags         transfers
// @Router       /transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	t, err := h.engine.CancelTransfer(c.Request.Context(), id, req.Reason, h.actor(c), h.now())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(t))
}

// GetByID godoc
// @Summary      Get a transfer
// @Tags         transfers
// @Router       /transfers/{id} [get]
func (h *TransferHandler) GetByID(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := h.engine.GetTransfer(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toTransferResponse(t))
}

// List godoc
// @Summary      List transfers sent or received by a branch
// @Tags         transfers
// @Param        branch_id query string true "Branch ID"
// @Param        status query string false "Transfer status"
// @Router       /transfers [get]
func (h *TransferHandler) List(c *gin.Context) {
	branchID, ok := h.uuidQuery(c, "branch_id")
	if !ok {
		return
	}
	status := transfer.Status(c.Query("status"))
	if status != "" && !slices.Contains(transferStatuses, status) {
		h.BadRequest(c, "Invalid status")
		return
	}
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	rows, total, err := h.engine.ListTransfers(c.Request.Context(), branchID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]TransferResponse, len(rows))
	for i := range rows {
		out[i] = toTransferResponse(&rows[i])
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}
