package stocktaking_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	stocktakingapp "github.com/erp/stockcore/internal/application/stocktaking"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counter = "auditor-3"

var countDay = time.Date(2026, 5, 31, 18, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedIngredient(t *testing.T, s *testutil.Stack, branch, ingredient uuid.UUID, qty string) {
	t.Helper()
	_, err := s.Ingredients.ApplyMovement(context.Background(), ledger.ApplyMovementInput{
		BranchID: branch, IngredientID: ingredient, Quantity: dec(qty), Unit: "kg",
		Type: stock.MovementReceipt, Actor: counter, OccurredAt: countDay.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
}

func openCount(t *testing.T, s *testutil.Stack, branch uuid.UUID, category stock.Category) *stocktaking.Inventory {
	t.Helper()
	ctx := context.Background()
	inv, err := s.Inventories.CreateInventory(ctx, stocktakingapp.CreateInventoryInput{
		BranchID: branch, Type: category, InventoryDate: countDay, Actor: counter, OccurredAt: countDay,
	})
	require.NoError(t, err)
	assert.Equal(t, stocktaking.StatusDraft, inv.Status)
	started, err := s.Inventories.StartInventory(ctx, inv.ID, counter, countDay)
	require.NoError(t, err)
	assert.Equal(t, stocktaking.StatusInProgress, started.Status)
	return started
}

func itemFor(inv *stocktaking.Inventory, id uuid.UUID) *stocktaking.Item {
	for i := range inv.Items {
		if inv.Items[i].Item.ID == id {
			return &inv.Items[i]
		}
	}
	return nil
}

func TestReconciler_AdjustsIngredientsToCount(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar, salt := uuid.New(), uuid.New(), uuid.New()
	seedIngredient(t, s, branch, sugar, "50")
	seedIngredient(t, s, branch, salt, "4")

	inv := openCount(t, s, branch, stock.CategoryRawMaterials)
	require.Len(t, inv.Items, 2)
	sugarItem := itemFor(inv, sugar)
	require.NotNil(t, sugarItem)
	assert.True(t, dec("50").Equal(sugarItem.ExpectedQuantity))

	done, err := s.Inventories.CompleteInventory(ctx, stocktakingapp.CompleteInventoryInput{
		InventoryID: inv.ID,
		Counted: []stocktaking.Count{
			{ItemID: sugarItem.ID, Quantity: dec("47")},
			{ItemID: itemFor(inv, salt).ID, Quantity: dec("4")},
		},
		Actor:      counter,
		OccurredAt: countDay.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, stocktaking.StatusCompleted, done.Status)

	counted := itemFor(done, sugar)
	require.NotNil(t, counted.ActualQuantity)
	assert.True(t, dec("47").Equal(*counted.ActualQuantity))
	assert.True(t, dec("3").Equal(counted.Discrepancy))
	require.NotNil(t, counted.AdjustmentID)
	assert.Nil(t, itemFor(done, salt).AdjustmentID, "matching counts post nothing")

	moves, err := s.Ingredients.MovementsByReference(ctx, stock.NewReference(stock.ReferenceInventory, inv.ID))
	require.NoError(t, err)
	require.Len(t, moves, 1)
	adj := moves[0]
	assert.Equal(t, *counted.AdjustmentID, adj.ID)
	assert.Equal(t, stock.MovementAdjustment, adj.MovementType)
	assert.True(t, dec("-3").Equal(adj.Quantity))
	assert.True(t, dec("47").Equal(adj.BalanceAfter))

	bal, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("47").Equal(bal))

	assert.Contains(t, testutil.OutboxEventTypes(t, s.DB), stocktaking.EventTypeCompleted)
}

func TestReconciler_RequiresEveryItemCounted(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar, salt := uuid.New(), uuid.New(), uuid.New()
	seedIngredient(t, s, branch, sugar, "50")
	seedIngredient(t, s, branch, salt, "4")

	inv := openCount(t, s, branch, stock.CategoryRawMaterials)
	_, err := s.Inventories.CompleteInventory(ctx, stocktakingapp.CompleteInventoryInput{
		InventoryID: inv.ID,
		Counted:     []stocktaking.Count{{ItemID: itemFor(inv, sugar).ID, Quantity: dec("40")}},
		Actor:       counter,
		OccurredAt:  countDay.Add(time.Hour),
	})
	assert.ErrorIs(t, err, stocktaking.ErrIncompleteCount)

	bal, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(bal))

	stored, err := s.Inventories.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, stocktaking.StatusInProgress, stored.Status)
	assert.Nil(t, itemFor(stored, sugar).ActualQuantity)
}

func TestReconciler_AdjustsProductsAgainstFIFO(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, cola, tea := uuid.New(), uuid.New(), uuid.New()
	for _, p := range []struct {
		recipe uuid.UUID
		qty    int64
	}{{cola, 12}, {tea, 5}} {
		_, _, err := s.Products.AddLot(ctx, ledger.AddLotInput{
			BranchID: branch, RecipeID: p.recipe, ProductionDate: countDay.AddDate(0, 0, -2), Quantity: p.qty,
			Actor: counter, OccurredAt: countDay.AddDate(0, 0, -2),
		})
		require.NoError(t, err)
	}
	_, err := s.Products.Deduct(ctx, ledger.DeductInput{BranchID: branch, RecipeID: tea, Quantity: 5, Actor: counter, OccurredAt: countDay.AddDate(0, 0, -1)})
	require.NoError(t, err)

	inv := openCount(t, s, branch, stock.CategoryFinishedProducts)
	require.Len(t, inv.Items, 1, "only positive aggregates are snapshot")
	item := inv.Items[0]
	assert.Equal(t, stock.ProductRef(cola), item.Item)
	assert.Equal(t, stocktakingapp.ProductUnit, item.Unit)

	_, err = s.Inventories.CompleteInventory(ctx, stocktakingapp.CompleteInventoryInput{
		InventoryID: inv.ID,
		Counted:     []stocktaking.Count{{ItemID: item.ID, Quantity: dec("10.5")}},
		Actor:       counter,
		OccurredAt:  countDay,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	done, err := s.Inventories.CompleteInventory(ctx, stocktakingapp.CompleteInventoryInput{
		InventoryID: inv.ID,
		Counted:     []stocktaking.Count{{ItemID: item.ID, Quantity: dec("10")}},
		Actor:       counter,
		OccurredAt:  countDay,
	})
	require.NoError(t, err)
	assert.True(t, dec("2").Equal(done.Items[0].Discrepancy))

	bal, err := s.Products.GetBalance(ctx, branch, cola)
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	lots, err := s.Products.ListLots(ctx, branch, cola, false)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, int64(10), lots[0].Quantity)

	moves, err := s.Products.MovementsByDocument(ctx, stock.NewReference(stock.ReferenceInventory, inv.ID))
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, stock.OperationAdjustment, moves[0].OperationType)
	assert.Equal(t, int64(-2), moves[0].Quantity)
}

func TestReconciler_CancelAndList(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar := uuid.New(), uuid.New()
	seedIngredient(t, s, branch, sugar, "8")

	inv := openCount(t, s, branch, stock.CategoryRawMaterials)
	cancelled, err := s.Inventories.CancelInventory(ctx, inv.ID, "power cut", counter, countDay)
	require.NoError(t, err)
	assert.Equal(t, stocktaking.StatusCancelled, cancelled.Status)

	_, err = s.Inventories.CompleteInventory(ctx, stocktakingapp.CompleteInventoryInput{
		InventoryID: inv.ID,
		Counted:     []stocktaking.Count{{ItemID: inv.Items[0].ID, Quantity: dec("1")}},
		Actor:       counter,
		OccurredAt:  countDay,
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	bal, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("8").Equal(bal))

	rows, total, err := s.Inventories.ListInventories(ctx, branch, stocktaking.StatusCancelled, shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "power cut", rows[0].CancelReason)
	assert.Contains(t, testutil.OutboxEventTypes(t, s.DB), stocktaking.EventTypeCancelled)

	_, err = s.Inventories.GetInventory(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
