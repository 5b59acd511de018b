package stock

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductLot is one dated, costed quantity of finished product at a branch.
// Quantity only shrinks through FIFO consumption and never goes negative.
type ProductLot struct {
	ID              uuid.UUID
	BranchID        uuid.UUID
	RecipeID        uuid.UUID
	BatchID         *uuid.UUID
	SourceLotID     *uuid.UUID
	Sequence        int64
	ProductionDate  time.Time
	ExpiryDate      *time.Time
	InitialQuantity int64
	Quantity        int64
	UnitCostUsd     decimal.Decimal
	UnitCostTjs     decimal.Decimal
	ExchangeRate    decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LotCost carries the costing fields a lot is created with
type LotCost struct {
	UnitCostUsd  decimal.Decimal
	UnitCostTjs  decimal.Decimal
	ExchangeRate decimal.Decimal
}

// NewProductLot creates a lot; the sequence must come from the locked ProductBalance
func NewProductLot(
	balance *ProductBalance,
	batchID *uuid.UUID,
	productionDate time.Time,
	expiryDate *time.Time,
	quantity int64,
	cost LotCost,
	at time.Time,
) (*ProductLot, error) {
	if quantity <= 0 {
		return nil, shared.NewValidationError("Lot quantity must be positive")
	}
	if productionDate.IsZero() {
		return nil, shared.NewValidationError("Production date is required")
	}
	if expiryDate != nil && expiryDate.Before(productionDate) {
		return nil, shared.NewValidationError("Expiry date cannot be before production date")
	}
	if cost.UnitCostUsd.IsNegative() || cost.UnitCostTjs.IsNegative() || cost.ExchangeRate.IsNegative() {
		return nil, shared.NewValidationError("Lot cost fields cannot be negative")
	}
	return &ProductLot{
		ID:              uuid.New(),
		BranchID:        balance.BranchID,
		RecipeID:        balance.RecipeID,
		BatchID:         batchID,
		Sequence:        balance.NextLotSequence(),
		ProductionDate:  productionDate,
		ExpiryDate:      expiryDate,
		InitialQuantity: quantity,
		Quantity:        quantity,
		UnitCostUsd:     cost.UnitCostUsd,
		UnitCostTjs:     cost.UnitCostTjs,
		ExchangeRate:    cost.ExchangeRate,
		CreatedAt:       at,
		UpdatedAt:       at,
	}, nil
}

// Cost returns the lot's costing fields
func (l *ProductLot) Cost() LotCost {
	return LotCost{
		UnitCostUsd:  l.UnitCostUsd,
		UnitCostTjs:  l.UnitCostTjs,
		ExchangeRate: l.ExchangeRate,
	}
}

// IsEmpty returns true if the lot is fully consumed
func (l *ProductLot) IsEmpty() bool {
	return l.Quantity == 0
}

// Take consumes up to want units and returns how many were taken
func (l *ProductLot) Take(want int64, at time.Time) int64 {
	if want <= 0 || l.Quantity == 0 {
		return 0
	}
	taken := want
	if taken > l.Quantity {
		taken = l.Quantity
	}
	l.Quantity -= taken
	l.UpdatedAt = at
	return taken
}

// IsExpired checks whether the lot has passed its expiry date
func (l *ProductLot) IsExpired(at time.Time) bool {
	return l.ExpiryDate != nil && at.After(*l.ExpiryDate)
}

// NewLotFromAllocation recreates part of a consumed source lot at another branch,
// keeping its production date, expiry and cost
func NewLotFromAllocation(balance *ProductBalance, alloc LotAllocation, quantity int64, at time.Time) (*ProductLot, error) {
	lot, err := NewProductLot(balance, nil, alloc.ProductionDate, alloc.ExpiryDate, quantity, alloc.Cost, at)
	if err != nil {
		return nil, err
	}
	source := alloc.LotID
	lot.SourceLotID = &source
	return lot, nil
}
