//go:build integration

package persistence_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var opened = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestPostgres_ConcurrentIngredientDeductions(t *testing.T) {
	s := testutil.NewStackOn(t, testutil.NewPostgresDB(t))
	ctx := context.Background()
	branch, sugar := uuid.New(), uuid.New()

	_, err := s.Ingredients.ApplyMovement(ctx, ledger.ApplyMovementInput{
		BranchID: branch, IngredientID: sugar, Quantity: decimal.NewFromInt(20), Unit: "kg",
		Type: stock.MovementReceipt, Actor: "clerk", OccurredAt: opened,
	})
	require.NoError(t, err)

	var succeeded, refused atomic.Int64
	var g errgroup.Group
	for i := 0; i < 30; i++ {
		g.Go(func() error {
			_, err := s.Ingredients.ApplyMovement(ctx, ledger.ApplyMovementInput{
				BranchID: branch, IngredientID: sugar, Quantity: decimal.NewFromInt(-1), Unit: "kg",
				Type: stock.MovementWriteOff, Actor: "clerk", OccurredAt: opened.Add(time.Minute),
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case ledger.IsInsufficientStock(err):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(20), succeeded.Load())
	assert.Equal(t, int64(10), refused.Load())

	balance, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance %s", balance)

	movements, total, err := s.Ingredients.ListMovements(ctx, branch, sugar, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	sum := decimal.Zero
	for _, m := range movements {
		sum = sum.Add(m.Quantity)
	}
	assert.True(t, sum.Equal(balance))
}

func TestPostgres_ConcurrentFIFODeductions(t *testing.T) {
	s := testutil.NewStackOn(t, testutil.NewPostgresDB(t))
	ctx := context.Background()
	branch, cola := uuid.New(), uuid.New()

	rate := decimal.NewFromFloat(10.9)
	for i, qty := range []int64{4, 4, 4} {
		produced := opened.AddDate(0, 0, i)
		_, _, err := s.Products.AddLot(ctx, ledger.AddLotInput{
			BranchID: branch, RecipeID: cola, ProductionDate: produced, Quantity: qty,
			Cost:  stock.LotCost{UnitCostUsd: decimal.NewFromFloat(0.5), UnitCostTjs: rate.Div(decimal.NewFromInt(2)), ExchangeRate: rate},
			Actor: "clerk", OccurredAt: produced,
		})
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Products.Deduct(ctx, ledger.DeductInput{
				BranchID: branch, RecipeID: cola, Quantity: 2, Actor: "cashier", OccurredAt: opened.AddDate(0, 0, 5),
			})
			if err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(6), succeeded.Load())

	balance, err := s.Products.GetBalance(ctx, branch, cola)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	lots, err := s.Products.ListLots(ctx, branch, cola, true)
	require.NoError(t, err)
	require.Len(t, lots, 3)
	for _, lot := range lots {
		assert.Equal(t, int64(0), lot.Quantity)
	}
}
