package stock

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places stored for ingredient quantities
const QuantityScale = 4

// CheckQuantityScale rejects quantities finer than QuantityScale
func CheckQuantityScale(q decimal.Decimal) error {
	if !q.Equal(q.Round(QuantityScale)) {
		return ErrQuantityScale
	}
	return nil
}

// IngredientStock is the running balance of one ingredient at one branch.
// It is mutated only by ledger operations, each paired with an IngredientMovement.
type IngredientStock struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	IngredientID   uuid.UUID
	Quantity       decimal.Decimal
	Unit           string
	AverageCostUsd decimal.Decimal
	// MovementSeq is the sequence of the last movement posted against this row
	MovementSeq    int64
	LastMovementAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewIngredientStock creates an empty stock row for a (branch, ingredient) pair
func NewIngredientStock(branchID, ingredientID uuid.UUID, unit string, at time.Time) (*IngredientStock, error) {
	if branchID == uuid.Nil {
		return nil, shared.NewValidationError("Branch ID cannot be empty")
	}
	if ingredientID == uuid.Nil {
		return nil, shared.NewValidationError("Ingredient ID cannot be empty")
	}
	return &IngredientStock{
		ID:             uuid.New(),
		BranchID:       branchID,
		IngredientID:   ingredientID,
		Quantity:       decimal.Zero,
		Unit:           unit,
		AverageCostUsd: decimal.Zero,
		CreatedAt:      at,
		UpdatedAt:      at,
	}, nil
}

// Item returns the stock's item reference
func (s *IngredientStock) Item() ItemRef {
	return IngredientRef(s.IngredientID)
}

// CheckUnit verifies a movement unit against the stock unit.
// An empty unit on either side is accepted; the stock adopts the first non-empty one.
func (s *IngredientStock) CheckUnit(unit string) error {
	if unit == "" || s.Unit == "" || unit == s.Unit {
		return nil
	}
	return ErrUnitMismatch
}

// Apply adds a signed delta to the balance and returns the new balance.
// A delta that would leave the balance below zero fails with InsufficientStockError
// and leaves the stock untouched.
func (s *IngredientStock) Apply(delta decimal.Decimal, unit string, at time.Time) (decimal.Decimal, error) {
	if delta.IsZero() {
		return s.Quantity, ErrZeroQuantity
	}
	if err := s.CheckUnit(unit); err != nil {
		return s.Quantity, err
	}
	next := s.Quantity.Add(delta)
	if next.IsNegative() {
		return s.Quantity, NewInsufficientStockError(s.BranchID, s.Item(), delta.Neg(), s.Quantity)
	}
	if s.Unit == "" {
		s.Unit = unit
	}
	s.Quantity = next
	s.MovementSeq++
	s.LastMovementAt = &at
	s.UpdatedAt = at
	return next, nil
}

// BlendCost folds an incoming quantity at unitCost into the moving-average cost.
// It must be called before Apply for the same receipt.
func (s *IngredientStock) BlendCost(quantity, unitCost decimal.Decimal) {
	if !quantity.IsPositive() || unitCost.IsNegative() {
		return
	}
	newTotal := s.Quantity.Add(quantity)
	if s.Quantity.LessThanOrEqual(decimal.Zero) || newTotal.IsZero() {
		s.AverageCostUsd = unitCost.Round(6)
		return
	}
	oldValue := s.Quantity.Mul(s.AverageCostUsd)
	newValue := quantity.Mul(unitCost)
	s.AverageCostUsd = oldValue.Add(newValue).Div(newTotal).Round(6)
}
