package stock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func mustBalance(t *testing.T) *ProductBalance {
	t.Helper()
	b, err := NewProductBalance(uuid.New(), uuid.New(), testNow)
	require.NoError(t, err)
	return b
}

func mustLot(t *testing.T, b *ProductBalance, produced time.Time, qty int64) *ProductLot {
	t.Helper()
	lot, err := NewProductLot(b, nil, produced, nil, qty, LotCost{UnitCostUsd: decimal.NewFromInt(2)}, testNow)
	require.NoError(t, err)
	return lot
}

func TestAllocateFIFO(t *testing.T) {
	t.Run("drains the oldest lot first", func(t *testing.T) {
		b := mustBalance(t)
		day := testNow.AddDate(0, 0, -2)
		l1 := mustLot(t, b, day, 5)
		l2 := mustLot(t, b, day.AddDate(0, 0, 1), 5)

		allocs, err := AllocateFIFO([]*ProductLot{l1, l2}, 7, testNow)
		require.NoError(t, err)

		assert.Equal(t, int64(0), l1.Quantity)
		assert.Equal(t, int64(3), l2.Quantity)
		require.Len(t, allocs, 2)
		assert.Equal(t, l1.ID, allocs[0].LotID)
		assert.Equal(t, int64(5), allocs[0].Quantity)
		assert.Equal(t, int64(2), allocs[1].Quantity)
		assert.Equal(t, int64(7), AllocationsTotal(allocs))
	})

	t.Run("stops at the first lot that covers the request", func(t *testing.T) {
		b := mustBalance(t)
		l1 := mustLot(t, b, testNow, 10)
		l2 := mustLot(t, b, testNow, 10)

		allocs, err := AllocateFIFO([]*ProductLot{l1, l2}, 4, testNow)
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, int64(6), l1.Quantity)
		assert.Equal(t, int64(10), l2.Quantity)
	})

	t.Run("short lots report drift", func(t *testing.T) {
		b := mustBalance(t)
		l1 := mustLot(t, b, testNow, 3)

		_, err := AllocateFIFO([]*ProductLot{l1}, 4, testNow)
		assert.ErrorIs(t, err, ErrLedgerDrift)
	})
}

func TestFIFOBefore(t *testing.T) {
	b := mustBalance(t)
	older := mustLot(t, b, testNow.AddDate(0, 0, -1), 1)
	sameDayFirst := mustLot(t, b, testNow, 1)
	sameDaySecond := mustLot(t, b, testNow, 1)

	assert.True(t, FIFOBefore(older, sameDayFirst))
	assert.True(t, FIFOBefore(sameDayFirst, sameDaySecond))
	assert.False(t, FIFOBefore(sameDaySecond, sameDayFirst))
	assert.True(t, IsFIFOOrdered([]*ProductLot{older, sameDayFirst, sameDaySecond}))
	assert.False(t, IsFIFOOrdered([]*ProductLot{sameDaySecond, older}))
}

func TestTrimAllocations(t *testing.T) {
	allocs := []LotAllocation{
		{LotID: uuid.New(), Quantity: 6},
		{LotID: uuid.New(), Quantity: 4},
	}

	kept := TrimAllocations(allocs, 9)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(6), kept[0].Quantity)
	assert.Equal(t, int64(3), kept[1].Quantity)
	assert.Equal(t, int64(4), allocs[1].Quantity, "input must not be modified")

	assert.Len(t, TrimAllocations(allocs, 5), 1)
	assert.Empty(t, TrimAllocations(allocs, 0))
}

func TestWeightedUnitCostUsd(t *testing.T) {
	allocs := []LotAllocation{
		{Quantity: 1, Cost: LotCost{UnitCostUsd: decimal.NewFromInt(1)}},
		{Quantity: 3, Cost: LotCost{UnitCostUsd: decimal.NewFromInt(3)}},
	}
	assert.True(t, decimal.RequireFromString("2.5").Equal(WeightedUnitCostUsd(allocs)))
	assert.True(t, WeightedUnitCostUsd(nil).IsZero())
}

func TestNewLotFromAllocation(t *testing.T) {
	src := mustBalance(t)
	expiry := testNow.AddDate(0, 1, 0)
	lot, err := NewProductLot(src, nil, testNow, &expiry, 8, LotCost{UnitCostUsd: decimal.NewFromInt(4)}, testNow)
	require.NoError(t, err)

	allocs, err := AllocateFIFO([]*ProductLot{lot}, 8, testNow)
	require.NoError(t, err)

	dst := mustBalance(t)
	copied, err := NewLotFromAllocation(dst, allocs[0], 5, testNow)
	require.NoError(t, err)
	assert.Equal(t, dst.BranchID, copied.BranchID)
	assert.Equal(t, lot.ProductionDate, copied.ProductionDate)
	assert.Equal(t, expiry, *copied.ExpiryDate)
	assert.True(t, decimal.NewFromInt(4).Equal(copied.UnitCostUsd))
	require.NotNil(t, copied.SourceLotID)
	assert.Equal(t, lot.ID, *copied.SourceLotID)
	assert.Equal(t, int64(1), copied.Sequence)
}
