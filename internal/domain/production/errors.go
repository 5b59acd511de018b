package production

import "github.com/erp/stockcore/internal/domain/shared"

// Production domain errors
var (
	ErrInvalidOutputVolume   = shared.NewDomainError("INVALID_INPUT", "Recipe output volume must be positive")
	ErrVersionRecipeMismatch = shared.NewDomainError("INVALID_INPUT", "Recipe version does not belong to the recipe")
	ErrUnknownBatchLine      = shared.NewDomainError("INVALID_INPUT", "Ingredient is not a line of this batch")
	ErrRateUnavailable       = shared.NewDomainError("RATE_UNAVAILABLE", "No exchange rate is available")
)
