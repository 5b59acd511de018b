package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	stocktakingapp "github.com/erp/stockcore/internal/application/stocktaking"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clerk = "clerk-1"

var t0 = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func movement(branch, ingredient uuid.UUID, typ stock.MovementType, qty string, at time.Time) ledger.ApplyMovementInput {
	return ledger.ApplyMovementInput{
		BranchID:     branch,
		IngredientID: ingredient,
		Quantity:     dec(qty),
		Unit:         "kg",
		Type:         typ,
		Actor:        clerk,
		OccurredAt:   at,
	}
}

func TestIngredientLedger_BalanceEqualsSumOfMovements(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar := uuid.New(), uuid.New()

	steps := []ledger.ApplyMovementInput{
		movement(branch, sugar, stock.MovementReceipt, "50", t0),
		movement(branch, sugar, stock.MovementWriteOff, "-2.5", t0.Add(time.Minute)),
		movement(branch, sugar, stock.MovementProduction, "-10.25", t0.Add(2*time.Minute)),
		movement(branch, sugar, stock.MovementAdjustment, "1.75", t0.Add(3*time.Minute)),
		movement(branch, sugar, stock.MovementTransferOut, "-4", t0.Add(4*time.Minute)),
	}
	for _, in := range steps {
		_, err := s.Ingredients.ApplyMovement(ctx, in)
		require.NoError(t, err)
	}

	balance, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("35").Equal(balance), "balance %s", balance)

	rows, total, err := s.Ingredients.ListMovements(ctx, branch, sugar, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(steps)), total)

	sum := decimal.Zero
	prev := decimal.Zero
	for i, m := range rows {
		assert.Equal(t, int64(i+1), m.Sequence)
		assert.True(t, prev.Equal(m.BalanceBefore), "row %d before", i)
		assert.True(t, m.BalanceBefore.Add(m.Quantity).Equal(m.BalanceAfter), "row %d after", i)
		assert.False(t, m.BalanceAfter.IsNegative())
		prev = m.BalanceAfter
		sum = sum.Add(m.Quantity)
	}
	assert.True(t, sum.Equal(balance))
}

func TestIngredientLedger_RejectsNegativeBalance(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, milk := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, milk, stock.MovementReceipt, "10", t0))
	require.NoError(t, err)
	before, err := s.Ingredients.GetStock(ctx, branch, milk)
	require.NoError(t, err)

	_, err = s.Ingredients.ApplyMovement(ctx, movement(branch, milk, stock.MovementWriteOff, "-10.001", t0.Add(time.Minute)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
	var insufficient *stock.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, dec("10").Equal(insufficient.Available))
	assert.True(t, dec("0.001").Equal(insufficient.Shortage()))

	after, err := s.Ingredients.GetStock(ctx, branch, milk)
	require.NoError(t, err)
	assert.True(t, before.Quantity.Equal(after.Quantity))
	assert.Equal(t, before.MovementSeq, after.MovementSeq)

	_, total, err := s.Ingredients.ListMovements(ctx, branch, milk, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestIngredientLedger_Validation(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	tests := []struct {
		name string
		in   ledger.ApplyMovementInput
		want error
	}{
		{"zero quantity", movement(branch, ing, stock.MovementReceipt, "0", t0), stock.ErrZeroQuantity},
		{"finer than four decimals", movement(branch, ing, stock.MovementReceipt, "1.00005", t0), stock.ErrQuantityScale},
		{"receipt must be positive", movement(branch, ing, stock.MovementReceipt, "-1", t0), shared.ErrInvalidInput},
		{"write-off must be negative", movement(branch, ing, stock.MovementWriteOff, "1", t0), shared.ErrInvalidInput},
		{"unknown type", movement(branch, ing, stock.MovementType("GIFT"), "1", t0), shared.ErrInvalidInput},
		{"missing actor", func() ledger.ApplyMovementInput {
			in := movement(branch, ing, stock.MovementReceipt, "1", t0)
			in.Actor = ""
			return in
		}(), shared.ErrInvalidInput},
		{"missing occurredAt", func() ledger.ApplyMovementInput {
			in := movement(branch, ing, stock.MovementReceipt, "1", t0)
			in.OccurredAt = time.Time{}
			return in
		}(), shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Ingredients.ApplyMovement(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	st, err := s.Ingredients.GetStock(ctx, branch, ing)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestIngredientLedger_UnitMismatch(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, ing, stock.MovementReceipt, "5", t0))
	require.NoError(t, err)

	in := movement(branch, ing, stock.MovementReceipt, "5", t0)
	in.Unit = "g"
	_, err = s.Ingredients.ApplyMovement(ctx, in)
	assert.ErrorIs(t, err, stock.ErrUnitMismatch)
}

func TestIngredientLedger_ApplyMovementsIsAtomic(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch := uuid.New()
	sugar, water := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, sugar, stock.MovementReceipt, "10", t0))
	require.NoError(t, err)
	_, err = s.Ingredients.ApplyMovement(ctx, movement(branch, water, stock.MovementReceipt, "1", t0))
	require.NoError(t, err)

	_, err = s.Ingredients.ApplyMovements(ctx, []ledger.ApplyMovementInput{
		movement(branch, sugar, stock.MovementProduction, "-4", t0.Add(time.Minute)),
		movement(branch, water, stock.MovementProduction, "-3", t0.Add(time.Minute)),
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	bal, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(bal), "sugar must be untouched, got %s", bal)

	posted, err := s.Ingredients.ApplyMovements(ctx, []ledger.ApplyMovementInput{
		movement(branch, water, stock.MovementProduction, "-1", t0.Add(2*time.Minute)),
		movement(branch, sugar, stock.MovementProduction, "-4", t0.Add(2*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, posted, 2)
	assert.Equal(t, water, posted[0].IngredientID)
	assert.Equal(t, sugar, posted[1].IngredientID)
}

func TestIngredientLedger_AverageCost(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	priced := func(qty, cost string, at time.Time) ledger.ApplyMovementInput {
		in := movement(branch, ing, stock.MovementReceipt, qty, at)
		c := dec(cost)
		in.UnitCostUsd = &c
		return in
	}
	_, err := s.Ingredients.ApplyMovement(ctx, priced("10", "1.00", t0))
	require.NoError(t, err)
	_, err = s.Ingredients.ApplyMovement(ctx, priced("30", "2.00", t0.Add(time.Minute)))
	require.NoError(t, err)

	st, err := s.Ingredients.GetStock(ctx, branch, ing)
	require.NoError(t, err)
	assert.True(t, dec("1.75").Equal(st.AverageCostUsd), "average %s", st.AverageCostUsd)

	m, err := s.Ingredients.ApplyMovement(ctx, movement(branch, ing, stock.MovementWriteOff, "-5", t0.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.True(t, dec("1.75").Equal(m.UnitCostUsd), "withdrawals carry the average cost")
}

func TestIngredientLedger_SetAbsolute(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, ing, stock.MovementReceipt, "50", t0))
	require.NoError(t, err)

	set := ledger.SetIngredientInput{
		BranchID: branch, IngredientID: ing, Quantity: dec("47"), Unit: "kg",
		Reference: stock.NewReference(stock.ReferenceManual, uuid.Nil), Actor: clerk, OccurredAt: t0.Add(time.Hour),
	}
	m, err := s.Ingredients.SetAbsolute(ctx, set)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, stock.MovementAdjustment, m.MovementType)
	assert.True(t, dec("-3").Equal(m.Quantity))

	again, err := s.Ingredients.SetAbsolute(ctx, set)
	require.NoError(t, err)
	assert.Nil(t, again, "no movement when the balance already matches")

	_, total, err := s.Ingredients.ListMovements(ctx, branch, ing, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	set.Quantity = dec("-1")
	_, err = s.Ingredients.SetAbsolute(ctx, set)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	set.Quantity = dec("46.00001")
	_, err = s.Ingredients.SetAbsolute(ctx, set)
	assert.ErrorIs(t, err, stock.ErrQuantityScale)
	balance, err := s.Ingredients.GetBalance(ctx, branch, ing)
	require.NoError(t, err)
	assert.True(t, dec("47").Equal(balance))
}

func TestIngredientLedger_SetAbsoluteZeroOnUntouchedPair(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	m, err := s.Ingredients.SetAbsolute(ctx, ledger.SetIngredientInput{
		BranchID: branch, IngredientID: ing, Quantity: decimal.Zero, Unit: "kg",
		Reference: stock.NewReference(stock.ReferenceManual, uuid.Nil), Actor: clerk, OccurredAt: t0,
	})
	require.NoError(t, err)
	assert.Nil(t, m)

	rows, err := s.Ingredients.ListBalances(ctx, branch)
	require.NoError(t, err)
	assert.Empty(t, rows, "setting an untouched pair to zero creates no row")

	inv, err := s.Inventories.CreateInventory(ctx, stocktakingapp.CreateInventoryInput{
		BranchID: branch, Type: stock.CategoryRawMaterials, InventoryDate: t0, Actor: clerk, OccurredAt: t0,
	})
	require.NoError(t, err)
	assert.Empty(t, inv.Items)
}

func TestIngredientLedger_ReadsDoNotMutate(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, ing, stock.MovementReceipt, "8", t0))
	require.NoError(t, err)

	first, err := s.Ingredients.GetStock(ctx, branch, ing)
	require.NoError(t, err)
	second, err := s.Ingredients.GetStock(ctx, branch, ing)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	untouched, err := s.Ingredients.GetBalance(ctx, branch, uuid.New())
	require.NoError(t, err)
	assert.True(t, untouched.IsZero())

	rows, err := s.Ingredients.ListBalances(ctx, branch)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "reading an untouched pair creates no row")
}

func TestIngredientLedger_ConcurrentDeductions(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, ing := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, ing, stock.MovementReceipt, "10", t0))
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ingredients.ApplyMovement(ctx, movement(branch, ing, stock.MovementWriteOff, "-1", t0.Add(time.Minute)))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	bal, err := s.Ingredients.GetBalance(ctx, branch, ing)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}
