package stock

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductBalance is the aggregate on-hand quantity of one recipe's product at one branch.
// It always equals the sum of that pair's lot quantities and is the row locked
// while lots for the pair are mutated. LotSequence hands out insertion order to new lots.
type ProductBalance struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	RecipeID       uuid.UUID
	Quantity       int64
	LotSequence    int64
	MovementSeq    int64
	LastMovementAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProductBalance creates an empty balance row
func NewProductBalance(branchID, recipeID uuid.UUID, at time.Time) (*ProductBalance, error) {
	if branchID == uuid.Nil {
		return nil, shared.NewValidationError("Branch ID cannot be empty")
	}
	if recipeID == uuid.Nil {
		return nil, shared.NewValidationError("Recipe ID cannot be empty")
	}
	return &ProductBalance{
		ID:        uuid.New(),
		BranchID:  branchID,
		RecipeID:  recipeID,
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

// Item returns the balance's item reference
func (b *ProductBalance) Item() ItemRef {
	return ProductRef(b.RecipeID)
}

// NextLotSequence reserves the next insertion-order number for a new lot
func (b *ProductBalance) NextLotSequence() int64 {
	b.LotSequence++
	return b.LotSequence
}

// CanTake fails with InsufficientStockError when fewer than quantity units are on hand
func (b *ProductBalance) CanTake(quantity int64) error {
	if quantity > b.Quantity {
		return NewInsufficientStockError(b.BranchID, b.Item(), decimal.NewFromInt(quantity), decimal.NewFromInt(b.Quantity))
	}
	return nil
}

// Apply adds a signed delta and returns the new aggregate
func (b *ProductBalance) Apply(delta int64, at time.Time) (int64, error) {
	if delta == 0 {
		return b.Quantity, ErrZeroQuantity
	}
	if delta < 0 {
		if err := b.CanTake(-delta); err != nil {
			return b.Quantity, err
		}
	}
	b.Quantity += delta
	b.MovementSeq++
	b.LastMovementAt = &at
	b.UpdatedAt = at
	return b.Quantity, nil
}
