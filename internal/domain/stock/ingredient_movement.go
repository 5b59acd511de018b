package stock

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies an ingredient movement
type MovementType string

const (
	MovementReceipt     MovementType = "RECEIPT"
	MovementWriteOff    MovementType = "WRITE_OFF"
	MovementProduction  MovementType = "PRODUCTION"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementTransferOut MovementType = "TRANSFER_OUT"
	MovementTransferIn  MovementType = "TRANSFER_IN"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementReceipt, MovementWriteOff, MovementProduction,
		MovementAdjustment, MovementTransferOut, MovementTransferIn:
		return true
	}
	return false
}

// AllowsSign reports whether a movement of this type may carry a delta of the given sign.
// Adjustments go either way; reversals are exempt and checked by the caller.
func (t MovementType) AllowsSign(positive bool) bool {
	switch t {
	case MovementReceipt, MovementTransferIn:
		return positive
	case MovementWriteOff, MovementProduction, MovementTransferOut:
		return !positive
	}
	return true
}

// IngredientMovement is an immutable record of one change to an IngredientStock.
// BalanceAfter is the stock quantity immediately after this row was applied.
type IngredientMovement struct {
	ID           uuid.UUID
	BranchID     uuid.UUID
	IngredientID uuid.UUID
	StockID      uuid.UUID
	// Sequence orders the pair's movements in posting order
	Sequence      int64
	MovementType  MovementType
	Quantity      decimal.Decimal
	Unit          string
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Reference     Reference
	ReversalOf    *uuid.UUID
	// UnitCostUsd is the receipt cost for priced increases, otherwise the stock's average cost
	UnitCostUsd  decimal.Decimal
	Notes        string
	MovementDate time.Time
	CreatedBy    string
	CreatedAt    time.Time
}

// NewIngredientMovement builds the movement row for a delta already applied to stock
func NewIngredientMovement(
	s *IngredientStock,
	movementType MovementType,
	delta, balanceBefore decimal.Decimal,
	ref Reference,
	notes, actor string,
	occurredAt time.Time,
) (*IngredientMovement, error) {
	if !movementType.IsValid() {
		return nil, shared.NewValidationError("invalid movement type " + string(movementType))
	}
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if delta.IsZero() {
		return nil, ErrZeroQuantity
	}
	return &IngredientMovement{
		ID:            uuid.New(),
		BranchID:      s.BranchID,
		IngredientID:  s.IngredientID,
		StockID:       s.ID,
		Sequence:      s.MovementSeq,
		MovementType:  movementType,
		Quantity:      delta,
		Unit:          s.Unit,
		BalanceBefore: balanceBefore,
		BalanceAfter:  s.Quantity,
		UnitCostUsd:   s.AverageCostUsd,
		Reference:     ref,
		Notes:         notes,
		MovementDate:  occurredAt,
		CreatedBy:     actor,
		CreatedAt:     occurredAt,
	}, nil
}

// IsIncrease reports whether the movement added stock
func (m *IngredientMovement) IsIncrease() bool {
	return m.Quantity.IsPositive()
}

// MarkReversalOf links this movement to the one it compensates
func (m *IngredientMovement) MarkReversalOf(original uuid.UUID) {
	m.ReversalOf = &original
}
