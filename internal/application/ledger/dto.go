package ledger

import (
	"time"

	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApplyMovementInput is one signed change to an ingredient balance
type ApplyMovementInput struct {
	BranchID     uuid.UUID
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
	Type         stock.MovementType
	Reference    stock.Reference
	Notes        string
	// UnitCostUsd, when set on an increase, is folded into the moving-average cost
	UnitCostUsd *decimal.Decimal
	ReversalOf  *uuid.UUID
	Actor       string
	OccurredAt  time.Time
}

// SetIngredientInput moves an ingredient balance to an absolute quantity
type SetIngredientInput struct {
	BranchID     uuid.UUID
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
	Reference    stock.Reference
	Notes        string
	Actor        string
	OccurredAt   time.Time
}

// AddLotInput creates a new finished-goods lot
type AddLotInput struct {
	BranchID       uuid.UUID
	RecipeID       uuid.UUID
	BatchID        *uuid.UUID
	ProductionDate time.Time
	ExpiryDate     *time.Time
	Quantity       int64
	Cost           stock.LotCost
	// Operation defaults to Production
	Operation  stock.OperationType
	Document   stock.Reference
	Notes      string
	Actor      string
	OccurredAt time.Time
}

// DeductInput removes finished goods in FIFO order
type DeductInput struct {
	BranchID uuid.UUID
	RecipeID uuid.UUID
	Quantity int64
	// Operation defaults to Sale
	Operation  stock.OperationType
	Document   stock.Reference
	Notes      string
	Actor      string
	OccurredAt time.Time
}

// DeductResult is the movement written by a deduction and the lots it drew from
type DeductResult struct {
	Movement    *stock.ProductMovement
	Allocations []stock.LotAllocation
}

// RecordMovementInput is a signed product change that does not name its lots
type RecordMovementInput struct {
	BranchID   uuid.UUID
	RecipeID   uuid.UUID
	Quantity   int64
	Operation  stock.OperationType
	Document   stock.Reference
	Notes      string
	Actor      string
	OccurredAt time.Time
}

// SetProductInput moves a product aggregate to an absolute quantity
type SetProductInput struct {
	BranchID   uuid.UUID
	RecipeID   uuid.UUID
	Quantity   int64
	Document   stock.Reference
	Notes      string
	Actor      string
	OccurredAt time.Time
}

// ReceiveLotsInput recreates consumed lots at another branch
type ReceiveLotsInput struct {
	BranchID    uuid.UUID
	RecipeID    uuid.UUID
	Allocations []stock.LotAllocation
	// Quantity is how much of the allocations to recreate, oldest first
	Quantity   int64
	Document   stock.Reference
	Notes      string
	Actor      string
	OccurredAt time.Time
}

// ProductTransferInput moves product between branches in one call
type ProductTransferInput struct {
	FromBranchID uuid.UUID
	ToBranchID   uuid.UUID
	RecipeID     uuid.UUID
	Quantity     int64
	Document     stock.Reference
	Notes        string
	Actor        string
	OccurredAt   time.Time
}

// DocumentLineInput is one line of a receipt or write-off
type DocumentLineInput struct {
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
	UnitCostUsd  decimal.Decimal
}

// PostDocumentInput posts a receipt or write-off
type PostDocumentInput struct {
	BranchID   uuid.UUID
	Number     string
	Reason     string
	Lines      []DocumentLineInput
	Actor      string
	OccurredAt time.Time
}
