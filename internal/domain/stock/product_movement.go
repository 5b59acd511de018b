package stock

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
)

// OperationType classifies a product movement
type OperationType string

const (
	OperationProduction  OperationType = "PRODUCTION"
	OperationSale        OperationType = "SALE"
	OperationSpoilage    OperationType = "SPOILAGE"
	OperationReturn      OperationType = "RETURN"
	OperationTransferOut OperationType = "TRANSFER_OUT"
	OperationTransferIn  OperationType = "TRANSFER_IN"
	OperationAdjustment  OperationType = "ADJUSTMENT"
)

// IsValid checks if the operation type is valid
func (t OperationType) IsValid() bool {
	switch t {
	case OperationProduction, OperationSale, OperationSpoilage, OperationReturn,
		OperationTransferOut, OperationTransferIn, OperationAdjustment:
		return true
	}
	return false
}

// IsInbound reports whether the operation adds stock
func (t OperationType) IsInbound() bool {
	return t == OperationProduction || t == OperationReturn || t == OperationTransferIn
}

// IsOutbound reports whether the operation removes stock
func (t OperationType) IsOutbound() bool {
	return t == OperationSale || t == OperationSpoilage || t == OperationTransferOut
}

// ProductMovement is an immutable record of one change to a (branch, recipe) aggregate.
// BalanceAfter is the aggregate lot quantity after this row.
type ProductMovement struct {
	ID            uuid.UUID
	BranchID      uuid.UUID
	RecipeID      uuid.UUID
	Sequence      int64
	OperationType OperationType
	Quantity      int64
	BalanceBefore int64
	BalanceAfter  int64
	Document      Reference
	LotID         *uuid.UUID
	Notes         string
	MovementDate  time.Time
	CreatedBy     string
	CreatedAt     time.Time
}

// NewProductMovement builds the movement row for a delta already applied to the balance
func NewProductMovement(
	b *ProductBalance,
	op OperationType,
	delta, balanceBefore int64,
	doc Reference,
	notes, actor string,
	occurredAt time.Time,
) (*ProductMovement, error) {
	if !op.IsValid() {
		return nil, shared.NewValidationError("invalid operation type " + string(op))
	}
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if delta == 0 {
		return nil, ErrZeroQuantity
	}
	if (op.IsInbound() && delta < 0) || (op.IsOutbound() && delta > 0) {
		return nil, shared.NewValidationError("quantity sign does not match operation " + string(op))
	}
	return &ProductMovement{
		ID:            uuid.New(),
		BranchID:      b.BranchID,
		RecipeID:      b.RecipeID,
		Sequence:      b.MovementSeq,
		OperationType: op,
		Quantity:      delta,
		BalanceBefore: balanceBefore,
		BalanceAfter:  b.Quantity,
		Document:      doc,
		Notes:         notes,
		MovementDate:  occurredAt,
		CreatedBy:     actor,
		CreatedAt:     occurredAt,
	}, nil
}
