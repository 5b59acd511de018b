package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LotAllocation records how much of one lot a deduction consumed,
// along with the lot metadata needed to recreate it elsewhere.
type LotAllocation struct {
	LotID          uuid.UUID
	Sequence       int64
	Quantity       int64
	ProductionDate time.Time
	ExpiryDate     *time.Time
	Cost           LotCost
}

// FIFOBefore is the lot consumption order: oldest production date first,
// then ascending insertion sequence for lots produced on the same date.
func FIFOBefore(a, b *ProductLot) bool {
	if !a.ProductionDate.Equal(b.ProductionDate) {
		return a.ProductionDate.Before(b.ProductionDate)
	}
	return a.Sequence < b.Sequence
}

// IsFIFOOrdered reports whether lots are already in consumption order
func IsFIFOOrdered(lots []*ProductLot) bool {
	for i := 1; i < len(lots); i++ {
		if FIFOBefore(lots[i], lots[i-1]) {
			return false
		}
	}
	return true
}

// AllocateFIFO drains lots in the order given until quantity is covered.
// Lots must come from the FIFO query (quantity > 0, production date, sequence).
// Each lot is emptied before the next is touched. If the lots cannot cover the
// request the ledger is out of step with its balance row and ErrLedgerDrift is returned;
// lots are mutated in place, so callers must discard them on error.
func AllocateFIFO(lots []*ProductLot, quantity int64, at time.Time) ([]LotAllocation, error) {
	allocations := make([]LotAllocation, 0, 2)
	remaining := quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		taken := lot.Take(remaining, at)
		if taken == 0 {
			continue
		}
		remaining -= taken
		allocations = append(allocations, LotAllocation{
			LotID:          lot.ID,
			Sequence:       lot.Sequence,
			Quantity:       taken,
			ProductionDate: lot.ProductionDate,
			ExpiryDate:     lot.ExpiryDate,
			Cost:           lot.Cost(),
		})
	}
	if remaining > 0 {
		return nil, ErrLedgerDrift
	}
	return allocations, nil
}

// AllocationsTotal sums allocated quantities
func AllocationsTotal(allocations []LotAllocation) int64 {
	var total int64
	for _, a := range allocations {
		total += a.Quantity
	}
	return total
}

// WeightedUnitCostUsd returns the quantity-weighted USD unit cost of allocations
func WeightedUnitCostUsd(allocations []LotAllocation) decimal.Decimal {
	total := AllocationsTotal(allocations)
	if total == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, a := range allocations {
		sum = sum.Add(a.Cost.UnitCostUsd.Mul(decimal.NewFromInt(a.Quantity)))
	}
	return sum.Div(decimal.NewFromInt(total)).Round(6)
}

// TrimAllocations keeps allocations oldest-first until quantity is covered,
// shortening the last kept allocation. Used when less than was sent is received.
func TrimAllocations(allocations []LotAllocation, quantity int64) []LotAllocation {
	kept := make([]LotAllocation, 0, len(allocations))
	remaining := quantity
	for _, a := range allocations {
		if remaining <= 0 {
			break
		}
		if a.Quantity > remaining {
			a.Quantity = remaining
		}
		remaining -= a.Quantity
		kept = append(kept, a)
	}
	return kept
}
