package production

import (
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// CostingPolicy selects how the unit cost of a produced lot is derived
type CostingPolicy string

const (
	// CostingNone leaves produced lots at zero cost and only stamps the exchange rate.
	// Cost roll-up is not implemented under this policy.
	CostingNone CostingPolicy = "none"
	// CostingWeightedAverage divides consumed ingredient value by output quantity
	CostingWeightedAverage CostingPolicy = "weighted_average"
)

// IsValid checks if the policy is valid
func (p CostingPolicy) IsValid() bool {
	return p == CostingNone || p == CostingWeightedAverage
}

// ConsumedValue is the quantity and moving-average cost of one posted consumption
type ConsumedValue struct {
	Quantity       decimal.Decimal
	AverageCostUsd decimal.Decimal
}

// LotCost derives the produced lot's cost fields.
// TJS cost is the USD cost converted at rate.
func (p CostingPolicy) LotCost(consumed []ConsumedValue, output int64, rate decimal.Decimal) stock.LotCost {
	cost := stock.LotCost{
		UnitCostUsd:  decimal.Zero,
		UnitCostTjs:  decimal.Zero,
		ExchangeRate: rate,
	}
	if p != CostingWeightedAverage || output <= 0 {
		return cost
	}
	total := decimal.Zero
	for _, c := range consumed {
		total = total.Add(c.Quantity.Mul(c.AverageCostUsd))
	}
	cost.UnitCostUsd = total.Div(decimal.NewFromInt(output)).Round(6)
	cost.UnitCostTjs = cost.UnitCostUsd.Mul(rate).Round(6)
	return cost
}
