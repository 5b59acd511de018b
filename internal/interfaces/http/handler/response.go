package handler

import (
	"time"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferenceResponse points at the document that caused a movement
type ReferenceResponse struct {
	Type string     `json:"type"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

// ItemRefResponse identifies an ingredient or a finished product
type ItemRefResponse struct {
	Kind string    `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// IngredientStockResponse is a branch's balance of one ingredient
type IngredientStockResponse struct {
	BranchID       uuid.UUID       `json:"branch_id"`
	IngredientID   uuid.UUID       `json:"ingredient_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	Unit           string          `json:"unit"`
	AverageCostUsd decimal.Decimal `json:"average_cost_usd"`
	LastMovementAt *time.Time      `json:"last_movement_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IngredientMovementResponse is one ingredient ledger entry
type IngredientMovementResponse struct {
	ID            uuid.UUID         `json:"id"`
	BranchID      uuid.UUID         `json:"branch_id"`
	IngredientID  uuid.UUID         `json:"ingredient_id"`
	Sequence      int64             `json:"sequence"`
	MovementType  string            `json:"movement_type"`
	Quantity      decimal.Decimal   `json:"quantity"`
	Unit          string            `json:"unit"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	Reference     ReferenceResponse `json:"reference"`
	ReversalOf    *uuid.UUID        `json:"reversal_of,omitempty"`
	UnitCostUsd   decimal.Decimal   `json:"unit_cost_usd"`
	Notes         string            `json:"notes,omitempty"`
	MovementDate  time.Time         `json:"movement_date"`
	CreatedBy     string            `json:"created_by"`
}

// ProductBalanceResponse is a branch's aggregate quantity of one product
type ProductBalanceResponse struct {
	BranchID       uuid.UUID  `json:"branch_id"`
	RecipeID       uuid.UUID  `json:"recipe_id"`
	Quantity       int64      `json:"quantity"`
	LastMovementAt *time.Time `json:"last_movement_at,omitempty"`
}

// ProductLotResponse is one dated lot of finished goods
type ProductLotResponse struct {
	ID              uuid.UUID       `json:"id"`
	BranchID        uuid.UUID       `json:"branch_id"`
	RecipeID        uuid.UUID       `json:"recipe_id"`
	BatchID         *uuid.UUID      `json:"batch_id,omitempty"`
	SourceLotID     *uuid.UUID      `json:"source_lot_id,omitempty"`
	Sequence        int64           `json:"sequence"`
	ProductionDate  time.Time       `json:"production_date"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	InitialQuantity int64           `json:"initial_quantity"`
	Quantity        int64           `json:"quantity"`
	UnitCostUsd     decimal.Decimal `json:"unit_cost_usd"`
	UnitCostTjs     decimal.Decimal `json:"unit_cost_tjs"`
	ExchangeRate    decimal.Decimal `json:"exchange_rate"`
}

// ProductMovementResponse is one product ledger entry
type ProductMovementResponse struct {
	ID            uuid.UUID         `json:"id"`
	BranchID      uuid.UUID         `json:"branch_id"`
	RecipeID      uuid.UUID         `json:"recipe_id"`
	Sequence      int64             `json:"sequence"`
	OperationType string            `json:"operation_type"`
	Quantity      int64             `json:"quantity"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	Document      ReferenceResponse `json:"document"`
	LotID         *uuid.UUID        `json:"lot_id,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	MovementDate  time.Time         `json:"movement_date"`
	CreatedBy     string            `json:"created_by"`
}

// LotAllocationResponse is the part of one lot a deduction consumed
type LotAllocationResponse struct {
	LotID          uuid.UUID       `json:"lot_id"`
	Sequence       int64           `json:"sequence"`
	Quantity       int64           `json:"quantity"`
	ProductionDate time.Time       `json:"production_date"`
	ExpiryDate     *time.Time      `json:"expiry_date,omitempty"`
	UnitCostUsd    decimal.Decimal `json:"unit_cost_usd"`
}

// DeductResponse is the movement of a deduction with its FIFO allocations
type DeductResponse struct {
	Movement    ProductMovementResponse `json:"movement"`
	Allocations []LotAllocationResponse `json:"allocations"`
}

// AddLotResponse is a created lot with its inbound movement
type AddLotResponse struct {
	Lot      ProductLotResponse      `json:"lot"`
	Movement ProductMovementResponse `json:"movement"`
}

// ProductTransferResponse is the outbound and inbound movement pair
type ProductTransferResponse struct {
	Out ProductMovementResponse `json:"out"`
	In  ProductMovementResponse `json:"in"`
}

// StockDocumentLineResponse is one line of a receipt or write-off
type StockDocumentLineResponse struct {
	ID           uuid.UUID       `json:"id"`
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	UnitCostUsd  decimal.Decimal `json:"unit_cost_usd"`
	MovementID   *uuid.UUID      `json:"movement_id,omitempty"`
	ReversalID   *uuid.UUID      `json:"reversal_id,omitempty"`
}

// StockDocumentResponse is a posted receipt or write-off
type StockDocumentResponse struct {
	ID         uuid.UUID                   `json:"id"`
	Kind       string                      `json:"kind"`
	BranchID   uuid.UUID                   `json:"branch_id"`
	Number     string                      `json:"number"`
	Reason     string                      `json:"reason,omitempty"`
	Status     string                      `json:"status"`
	PostedBy   string                      `json:"posted_by"`
	PostedAt   time.Time                   `json:"posted_at"`
	ReversedBy string                      `json:"reversed_by,omitempty"`
	ReversedAt *time.Time                  `json:"reversed_at,omitempty"`
	Lines      []StockDocumentLineResponse `json:"lines"`
	Version    int                         `json:"version"`
}

// ConsumptionResponse is one ingredient line of a batch
type ConsumptionResponse struct {
	IngredientID    uuid.UUID        `json:"ingredient_id"`
	Kind            string           `json:"kind"`
	Unit            string           `json:"unit"`
	PlannedQuantity decimal.Decimal  `json:"planned_quantity"`
	ActualQuantity  *decimal.Decimal `json:"actual_quantity,omitempty"`
	MovementID      *uuid.UUID       `json:"movement_id,omitempty"`
}

// BatchResponse is a production batch
type BatchResponse struct {
	ID              uuid.UUID             `json:"id"`
	RecipeID        uuid.UUID             `json:"recipe_id"`
	RecipeVersionID uuid.UUID             `json:"recipe_version_id"`
	BranchID        uuid.UUID             `json:"branch_id"`
	PlannedQuantity decimal.Decimal       `json:"planned_quantity"`
	ActualQuantity  *int64                `json:"actual_quantity,omitempty"`
	PlannedDate     time.Time             `json:"planned_date"`
	Status          string                `json:"status"`
	Notes           string                `json:"notes,omitempty"`
	CancelReason    string                `json:"cancel_reason,omitempty"`
	LotID           *uuid.UUID            `json:"lot_id,omitempty"`
	CreatedBy       string                `json:"created_by"`
	StartedAt       *time.Time            `json:"started_at,omitempty"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	Consumptions    []ConsumptionResponse `json:"consumptions"`
	Version         int                   `json:"version"`
}

// TransferItemResponse is one line of a transfer
type TransferItemResponse struct {
	ID               uuid.UUID        `json:"id"`
	Item             ItemRefResponse  `json:"item"`
	Unit             string           `json:"unit"`
	QuantitySent     decimal.Decimal  `json:"quantity_sent"`
	QuantityReceived *decimal.Decimal `json:"quantity_received,omitempty"`
	Discrepancy      decimal.Decimal  `json:"discrepancy"`
}

// TransferResponse is an inter-branch transfer
type TransferResponse struct {
	ID               uuid.UUID              `json:"id"`
	SenderBranchID   uuid.UUID              `json:"sender_branch_id"`
	ReceiverBranchID uuid.UUID              `json:"receiver_branch_id"`
	Type             string                 `json:"type"`
	Status           string                 `json:"status"`
	Notes            string                 `json:"notes,omitempty"`
	CancelReason     string                 `json:"cancel_reason,omitempty"`
	CreatedBy        string                 `json:"created_by"`
	SentBy           string                 `json:"sent_by,omitempty"`
	ReceivedBy       string                 `json:"received_by,omitempty"`
	SentAt           *time.Time             `json:"sent_at,omitempty"`
	ReceivedAt       *time.Time             `json:"received_at,omitempty"`
	CancelledAt      *time.Time             `json:"cancelled_at,omitempty"`
	TotalDiscrepancy decimal.Decimal        `json:"total_discrepancy"`
	Items            []TransferItemResponse `json:"items"`
	Version          int                    `json:"version"`
}

// InventoryItemResponse is one counted line of an inventory
type InventoryItemResponse struct {
	ID               uuid.UUID        `json:"id"`
	Item             ItemRefResponse  `json:"item"`
	Unit             string           `json:"unit"`
	ExpectedQuantity decimal.Decimal  `json:"expected_quantity"`
	ActualQuantity   *decimal.Decimal `json:"actual_quantity,omitempty"`
	Discrepancy      decimal.Decimal  `json:"discrepancy"`
	AdjustmentID     *uuid.UUID       `json:"adjustment_id,omitempty"`
}

// InventoryResponse is a physical stock count
type InventoryResponse struct {
	ID            uuid.UUID               `json:"id"`
	BranchID      uuid.UUID               `json:"branch_id"`
	Type          string                  `json:"type"`
	InventoryDate time.Time               `json:"inventory_date"`
	Status        string                  `json:"status"`
	CancelReason  string                  `json:"cancel_reason,omitempty"`
	CreatedBy     string                  `json:"created_by"`
	CompletedBy   string                  `json:"completed_by,omitempty"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	CompletedAt   *time.Time              `json:"completed_at,omitempty"`
	CancelledAt   *time.Time              `json:"cancelled_at,omitempty"`
	Items         []InventoryItemResponse `json:"items"`
	Version       int                     `json:"version"`
}

func toReferenceResponse(r stock.Reference) ReferenceResponse {
	return ReferenceResponse{Type: string(r.Type), ID: r.IDPtr()}
}

func toItemRefResponse(r stock.ItemRef) ItemRefResponse {
	return ItemRefResponse{Kind: string(r.Kind), ID: r.ID}
}

func toIngredientStockResponse(s *stock.IngredientStock) IngredientStockResponse {
	return IngredientStockResponse{
		BranchID:       s.BranchID,
		IngredientID:   s.IngredientID,
		Quantity:       s.Quantity,
		Unit:           s.Unit,
		AverageCostUsd: s.AverageCostUsd,
		LastMovementAt: s.LastMovementAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func toIngredientMovementResponse(m *stock.IngredientMovement) IngredientMovementResponse {
	return IngredientMovementResponse{
		ID:            m.ID,
		BranchID:      m.BranchID,
		IngredientID:  m.IngredientID,
		Sequence:      m.Sequence,
		MovementType:  string(m.MovementType),
		Quantity:      m.Quantity,
		Unit:          m.Unit,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Reference:     toReferenceResponse(m.Reference),
		ReversalOf:    m.ReversalOf,
		UnitCostUsd:   m.UnitCostUsd,
		Notes:         m.Notes,
		MovementDate:  m.MovementDate,
		CreatedBy:     m.CreatedBy,
	}
}

func toIngredientMovementResponses(ms []stock.IngredientMovement) []IngredientMovementResponse {
	out := make([]IngredientMovementResponse, len(ms))
	for i := range ms {
		out[i] = toIngredientMovementResponse(&ms[i])
	}
	return out
}

func toProductBalanceResponse(b *stock.ProductBalance) ProductBalanceResponse {
	return ProductBalanceResponse{
		BranchID:       b.BranchID,
		RecipeID:       b.RecipeID,
		Quantity:       b.Quantity,
		LastMovementAt: b.LastMovementAt,
	}
}

func toProductLotResponse(l *stock.ProductLot) ProductLotResponse {
	return ProductLotResponse{
		ID:              l.ID,
		BranchID:        l.BranchID,
		RecipeID:        l.RecipeID,
		BatchID:         l.BatchID,
		SourceLotID:     l.SourceLotID,
		Sequence:        l.Sequence,
		ProductionDate:  l.ProductionDate,
		ExpiryDate:      l.ExpiryDate,
		InitialQuantity: l.InitialQuantity,
		Quantity:        l.Quantity,
		UnitCostUsd:     l.UnitCostUsd,
		UnitCostTjs:     l.UnitCostTjs,
		ExchangeRate:    l.ExchangeRate,
	}
}

func toProductMovementResponse(m *stock.ProductMovement) ProductMovementResponse {
	return ProductMovementResponse{
		ID:            m.ID,
		BranchID:      m.BranchID,
		RecipeID:      m.RecipeID,
		Sequence:      m.Sequence,
		OperationType: string(m.OperationType),
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		Document:      toReferenceResponse(m.Document),
		LotID:         m.LotID,
		Notes:         m.Notes,
		MovementDate:  m.MovementDate,
		CreatedBy:     m.CreatedBy,
	}
}

func toProductMovementResponses(ms []stock.ProductMovement) []ProductMovementResponse {
	out := make([]ProductMovementResponse, len(ms))
	for i := range ms {
		out[i] = toProductMovementResponse(&ms[i])
	}
	return out
}

func toLotAllocationResponses(as []stock.LotAllocation) []LotAllocationResponse {
	out := make([]LotAllocationResponse, len(as))
	for i, a := range as {
		out[i] = LotAllocationResponse{
			LotID:          a.LotID,
			Sequence:       a.Sequence,
			Quantity:       a.Quantity,
			ProductionDate: a.ProductionDate,
			ExpiryDate:     a.ExpiryDate,
			UnitCostUsd:    a.Cost.UnitCostUsd,
		}
	}
	return out
}

func toStockDocumentResponse(d *stock.StockDocument) StockDocumentResponse {
	lines := make([]StockDocumentLineResponse, len(d.Lines))
	for i, l := range d.Lines {
		lines[i] = StockDocumentLineResponse{
			ID:           l.ID,
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			UnitCostUsd:  l.UnitCostUsd,
			MovementID:   l.MovementID,
			ReversalID:   l.ReversalID,
		}
	}
	return StockDocumentResponse{
		ID:         d.ID,
		Kind:       string(d.Kind),
		BranchID:   d.BranchID,
		Number:     d.Number,
		Reason:     d.Reason,
		Status:     string(d.Status),
		PostedBy:   d.PostedBy,
		PostedAt:   d.PostedAt,
		ReversedBy: d.ReversedBy,
		ReversedAt: d.ReversedAt,
		Lines:      lines,
		Version:    d.Version,
	}
}

func toBatchResponse(b *production.ProductionBatch) BatchResponse {
	lines := make([]ConsumptionResponse, len(b.Consumptions))
	for i, c := range b.Consumptions {
		lines[i] = ConsumptionResponse{
			IngredientID:    c.IngredientID,
			Kind:            string(c.Kind),
			Unit:            c.Unit,
			PlannedQuantity: c.PlannedQuantity,
			ActualQuantity:  c.ActualQuantity,
			MovementID:      c.MovementID,
		}
	}
	return BatchResponse{
		ID:              b.ID,
		RecipeID:        b.RecipeID,
		RecipeVersionID: b.RecipeVersionID,
		BranchID:        b.BranchID,
		PlannedQuantity: b.PlannedQuantity,
		ActualQuantity:  b.ActualQuantity,
		PlannedDate:     b.PlannedDate,
		Status:          string(b.Status),
		Notes:           b.Notes,
		CancelReason:    b.CancelReason,
		LotID:           b.LotID,
		CreatedBy:       b.CreatedBy,
		StartedAt:       b.StartedAt,
		CompletedAt:     b.CompletedAt,
		CancelledAt:     b.CancelledAt,
		Consumptions:    lines,
		Version:         b.Version,
	}
}

func toTransferResponse(t *transfer.Transfer) TransferResponse {
	items := make([]TransferItemResponse, len(t.Items))
	for i, it := range t.Items {
		items[i] = TransferItemResponse{
			ID:               it.ID,
			Item:             toItemRefResponse(it.Item),
			Unit:             it.Unit,
			QuantitySent:     it.QuantitySent,
			QuantityReceived: it.QuantityReceived,
			Discrepancy:      it.Discrepancy,
		}
	}
	return TransferResponse{
		ID:               t.ID,
		SenderBranchID:   t.SenderBranchID,
		ReceiverBranchID: t.ReceiverBranchID,
		Type:             string(t.Type),
		Status:           string(t.Status),
		Notes:            t.Notes,
		CancelReason:     t.CancelReason,
		CreatedBy:        t.CreatedBy,
		SentBy:           t.SentBy,
		ReceivedBy:       t.ReceivedBy,
		SentAt:           t.SentAt,
		ReceivedAt:       t.ReceivedAt,
		CancelledAt:      t.CancelledAt,
		TotalDiscrepancy: t.TotalDiscrepancy(),
		Items:            items,
		Version:          t.Version,
	}
}

func toInventoryResponse(inv *stocktaking.Inventory) InventoryResponse {
	items := make([]InventoryItemResponse, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = InventoryItemResponse{
			ID:               it.ID,
			Item:             toItemRefResponse(it.Item),
			Unit:             it.Unit,
			ExpectedQuantity: it.ExpectedQuantity,
			ActualQuantity:   it.ActualQuantity,
			Discrepancy:      it.Discrepancy,
			AdjustmentID:     it.AdjustmentID,
		}
	}
	return InventoryResponse{
		ID:            inv.ID,
		BranchID:      inv.BranchID,
		Type:          string(inv.Type),
		InventoryDate: inv.InventoryDate,
		Status:        string(inv.Status),
		CancelReason:  inv.CancelReason,
		CreatedBy:     inv.CreatedBy,
		CompletedBy:   inv.CompletedBy,
		StartedAt:     inv.StartedAt,
		CompletedAt:   inv.CompletedAt,
		CancelledAt:   inv.CancelledAt,
		Items:         items,
		Version:       inv.Version,
	}
}
