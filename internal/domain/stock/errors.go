package stock

import (
	"fmt"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stock-specific domain errors
var (
	ErrUnitMismatch     = shared.NewDomainError("UNIT_MISMATCH", "Movement unit does not match the stock unit")
	ErrLedgerDrift      = shared.NewDomainError("LEDGER_DRIFT", "Lot quantities do not match the recorded balance")
	ErrZeroQuantity     = shared.NewDomainError("INVALID_INPUT", "Quantity must not be zero")
	ErrQuantityScale    = shared.NewDomainError("INVALID_INPUT", "Quantity supports at most 4 decimal places")
	ErrDocumentReversed = shared.NewDomainError("INVALID_STATE", "Stock document was already reversed")
)

// InsufficientStockError reports a deduction that would drive a balance negative
type InsufficientStockError struct {
	BranchID  uuid.UUID
	Item      ItemRef
	Requested decimal.Decimal
	Available decimal.Decimal
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(branchID uuid.UUID, item ItemRef, requested, available decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		BranchID:  branchID,
		Item:      item,
		Requested: requested,
		Available: available,
	}
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %s at branch %s: requested %s, available %s",
		e.Item, e.BranchID, e.Requested.String(), e.Available.String())
}

// Unwrap returns shared.ErrInsufficientStock
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// Shortage returns how much is missing
func (e *InsufficientStockError) Shortage() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}
