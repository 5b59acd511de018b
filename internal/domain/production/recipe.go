package production

import (
	"context"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineKind distinguishes a recipe's ingredient lines from its packaging lines
type LineKind string

const (
	LineKindIngredient LineKind = "INGREDIENT"
	LineKindPackaging  LineKind = "PACKAGING"
)

// IsValid checks if the line kind is valid
func (k LineKind) IsValid() bool {
	return k == LineKindIngredient || k == LineKindPackaging
}

// RecipeLine is one consumed item of a recipe version
type RecipeLine struct {
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
	Kind         LineKind
	Position     int
}

// RecipeVersion is an immutable snapshot of a recipe's formula.
// Line quantities are per OutputVolume units of product.
type RecipeVersion struct {
	ID            uuid.UUID
	RecipeID      uuid.UUID
	Version       int
	OutputVolume  decimal.Decimal
	OutputUnit    string
	ShelfLifeDays int
	Lines         []RecipeLine
}

// Validate checks the version can drive scaling
func (v *RecipeVersion) Validate() error {
	if !v.OutputVolume.IsPositive() {
		return ErrInvalidOutputVolume
	}
	for _, line := range v.Lines {
		if line.IngredientID == uuid.Nil {
			return shared.NewValidationError("Recipe line has no ingredient")
		}
		if line.Quantity.IsNegative() {
			return shared.NewValidationError("Recipe line quantity cannot be negative")
		}
	}
	return nil
}

// Ratio is plannedQuantity / OutputVolume
func (v *RecipeVersion) Ratio(plannedQuantity decimal.Decimal) decimal.Decimal {
	return plannedQuantity.Div(v.OutputVolume)
}

// RecipeDirectory resolves pinned recipe versions. Recipe CRUD lives outside this service.
type RecipeDirectory interface {
	// GetRecipeVersion returns the version with its ordered lines, or a NotFoundError
	GetRecipeVersion(ctx context.Context, versionID uuid.UUID) (*RecipeVersion, error)
}

// ExchangeRateProvider returns the latest TJS per USD rate
type ExchangeRateProvider interface {
	LatestRate(ctx context.Context) (decimal.Decimal, error)
}
