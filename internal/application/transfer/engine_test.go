package transfer_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	transferapp "github.com/erp/stockcore/internal/application/transfer"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/erp/stockcore/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const courier = "courier-2"

var dispatched = time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func receiveIngredient(t *testing.T, s *testutil.Stack, branch, ingredient uuid.UUID, qty, usd string) {
	t.Helper()
	cost := dec(usd)
	_, err := s.Ingredients.ApplyMovement(context.Background(), ledger.ApplyMovementInput{
		BranchID: branch, IngredientID: ingredient, Quantity: dec(qty), Unit: "kg",
		Type: stock.MovementReceipt, UnitCostUsd: &cost, Actor: courier, OccurredAt: dispatched.Add(-time.Hour),
	})
	require.NoError(t, err)
}

func createTransfer(t *testing.T, s *testutil.Stack, from, to uuid.UUID, category stock.Category, items ...transfer.ItemInput) *transfer.Transfer {
	t.Helper()
	tr, err := s.Transfers.CreateTransfer(context.Background(), transferapp.CreateTransferInput{
		SenderBranchID:   from,
		ReceiverBranchID: to,
		Type:             category,
		Items:            items,
		Notes:            "weekly restock",
		Actor:            courier,
		OccurredAt:       dispatched,
	})
	require.NoError(t, err)
	require.Equal(t, transfer.StatusCreated, tr.Status)
	return tr
}

func TestEngine_IngredientTransferWithDiscrepancy(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	from, to, flour := uuid.New(), uuid.New(), uuid.New()
	receiveIngredient(t, s, from, flour, "25", "1.20")

	tr := createTransfer(t, s, from, to, stock.CategoryRawMaterials,
		transfer.ItemInput{Item: stock.IngredientRef(flour), Quantity: dec("10"), Unit: "kg"})

	bal, err := s.Ingredients.GetBalance(ctx, from, flour)
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(bal), "creating a transfer posts nothing")

	sent, err := s.Transfers.SendTransfer(ctx, tr.ID, courier, dispatched.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusInTransit, sent.Status)

	bal, err = s.Ingredients.GetBalance(ctx, from, flour)
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(bal))
	bal, err = s.Ingredients.GetBalance(ctx, to, flour)
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "goods in transit belong to nobody's balance")

	received, err := s.Transfers.ReceiveTransfer(ctx, transferapp.ReceiveTransferInput{
		TransferID: tr.ID,
		Received:   []transfer.Receipt{{ItemID: sent.Items[0].ID, Quantity: dec("9")}},
		Actor:      "keeper",
		OccurredAt: dispatched.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusReceived, received.Status)
	item := received.Items[0]
	require.NotNil(t, item.QuantityReceived)
	assert.True(t, dec("9").Equal(*item.QuantityReceived))
	assert.True(t, dec("1").Equal(item.Discrepancy))
	assert.True(t, dec("1").Equal(received.TotalDiscrepancy()))

	dest, err := s.Ingredients.GetStock(ctx, to, flour)
	require.NoError(t, err)
	require.NotNil(t, dest)
	assert.True(t, dec("9").Equal(dest.Quantity))
	assert.True(t, dec("1.2").Equal(dest.AverageCostUsd), "receiver takes the sender's average cost")

	moves, err := s.Ingredients.MovementsByReference(ctx, stock.NewReference(stock.ReferenceTransfer, tr.ID))
	require.NoError(t, err)
	require.Len(t, moves, 2)
	types := []stock.MovementType{moves[0].MovementType, moves[1].MovementType}
	assert.ElementsMatch(t, []stock.MovementType{stock.MovementTransferOut, stock.MovementTransferIn}, types)

	stored, err := s.Transfers.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, dec("1").Equal(stored.TotalDiscrepancy()))

	events := testutil.OutboxEventTypes(t, s.DB)
	assert.Contains(t, events, transfer.EventTypeSent)
	assert.Contains(t, events, transfer.EventTypeReceived)
}

func TestEngine_ProductTransferRecreatesLots(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	from, to, cola := uuid.New(), uuid.New(), uuid.New()

	older := dispatched.AddDate(0, 0, -3)
	expiry := older.AddDate(0, 0, 20)
	rate := testutil.DefaultExchangeRate
	_, _, err := s.Products.AddLot(ctx, ledger.AddLotInput{
		BranchID: from, RecipeID: cola, ProductionDate: older, ExpiryDate: &expiry, Quantity: 6,
		Cost:  stock.LotCost{UnitCostUsd: dec("0.35"), UnitCostTjs: dec("0.35").Mul(rate), ExchangeRate: rate},
		Actor: courier, OccurredAt: older,
	})
	require.NoError(t, err)
	_, _, err = s.Products.AddLot(ctx, ledger.AddLotInput{
		BranchID: from, RecipeID: cola, ProductionDate: dispatched.AddDate(0, 0, -1), Quantity: 10,
		Cost:  stock.LotCost{UnitCostUsd: dec("0.45"), UnitCostTjs: dec("0.45").Mul(rate), ExchangeRate: rate},
		Actor: courier, OccurredAt: dispatched.AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	tr := createTransfer(t, s, from, to, stock.CategoryFinishedProducts,
		transfer.ItemInput{Item: stock.ProductRef(cola), Quantity: dec("8"), Unit: "pcs"})
	sent, err := s.Transfers.SendTransfer(ctx, tr.ID, courier, dispatched)
	require.NoError(t, err)
	require.Len(t, sent.Items[0].Allocations, 2)

	_, err = s.Transfers.ReceiveTransfer(ctx, transferapp.ReceiveTransferInput{
		TransferID: tr.ID,
		Received:   []transfer.Receipt{{ItemID: cola, Quantity: dec("7")}},
		Actor:      "keeper",
		OccurredAt: dispatched.Add(time.Hour),
	})
	require.NoError(t, err)

	lots, err := s.Products.ListLots(ctx, to, cola, false)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, int64(6), lots[0].Quantity)
	assert.True(t, older.Equal(lots[0].ProductionDate))
	require.NotNil(t, lots[0].ExpiryDate)
	assert.True(t, expiry.Equal(*lots[0].ExpiryDate))
	assert.True(t, dec("0.35").Equal(lots[0].UnitCostUsd))
	assert.Equal(t, int64(1), lots[1].Quantity)
	assert.True(t, dec("0.45").Equal(lots[1].UnitCostUsd))

	fromBal, err := s.Products.GetBalance(ctx, from, cola)
	require.NoError(t, err)
	toBal, err := s.Products.GetBalance(ctx, to, cola)
	require.NoError(t, err)
	assert.Equal(t, int64(8), fromBal)
	assert.Equal(t, int64(7), toBal)
}

func TestEngine_SendIsAllOrNothing(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	from, to, flour, yeast := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	receiveIngredient(t, s, from, flour, "10", "1")
	receiveIngredient(t, s, from, yeast, "0.5", "4")

	tr := createTransfer(t, s, from, to, stock.CategoryRawMaterials,
		transfer.ItemInput{Item: stock.IngredientRef(flour), Quantity: dec("5"), Unit: "kg"},
		transfer.ItemInput{Item: stock.IngredientRef(yeast), Quantity: dec("1"), Unit: "kg"},
	)
	_, err := s.Transfers.SendTransfer(ctx, tr.ID, courier, dispatched)
	require.Error(t, err)
	assert.True(t, ledger.IsInsufficientStock(err))

	bal, err := s.Ingredients.GetBalance(ctx, from, flour)
	require.NoError(t, err)
	assert.True(t, dec("10").Equal(bal))

	stored, err := s.Transfers.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCreated, stored.Status)
	assert.NotContains(t, testutil.OutboxEventTypes(t, s.DB), transfer.EventTypeSent)
}

func TestEngine_Lifecycle(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	from, to, flour := uuid.New(), uuid.New(), uuid.New()
	receiveIngredient(t, s, from, flour, "10", "1")
	item := transfer.ItemInput{Item: stock.IngredientRef(flour), Quantity: dec("2"), Unit: "kg"}

	t.Run("cancel before send", func(t *testing.T) {
		tr := createTransfer(t, s, from, to, stock.CategoryRawMaterials, item)
		cancelled, err := s.Transfers.CancelTransfer(ctx, tr.ID, "truck broke down", courier, dispatched)
		require.NoError(t, err)
		assert.Equal(t, transfer.StatusCancelled, cancelled.Status)

		_, err = s.Transfers.SendTransfer(ctx, tr.ID, courier, dispatched)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Contains(t, testutil.OutboxEventTypes(t, s.DB), transfer.EventTypeCancelled)
	})

	t.Run("in transit cannot be cancelled", func(t *testing.T) {
		tr := createTransfer(t, s, from, to, stock.CategoryRawMaterials, item)
		_, err := s.Transfers.SendTransfer(ctx, tr.ID, courier, dispatched)
		require.NoError(t, err)
		_, err = s.Transfers.CancelTransfer(ctx, tr.ID, "too late", courier, dispatched)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("receive before send", func(t *testing.T) {
		tr := createTransfer(t, s, from, to, stock.CategoryRawMaterials, item)
		_, err := s.Transfers.ReceiveTransfer(ctx, transferapp.ReceiveTransferInput{
			TransferID: tr.ID, Actor: "keeper", OccurredAt: dispatched,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := s.Transfers.CreateTransfer(ctx, transferapp.CreateTransferInput{
			SenderBranchID: from, ReceiverBranchID: from, Type: stock.CategoryRawMaterials,
			Items: []transfer.ItemInput{item}, Actor: courier, OccurredAt: dispatched,
		})
		assert.ErrorIs(t, err, transfer.ErrSameBranchTransfer)

		_, err = s.Transfers.CreateTransfer(ctx, transferapp.CreateTransferInput{
			SenderBranchID: from, ReceiverBranchID: to, Type: stock.CategoryFinishedProducts,
			Items: []transfer.ItemInput{item}, Actor: courier, OccurredAt: dispatched,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("list by branch", func(t *testing.T) {
		_, total, err := s.Transfers.ListTransfers(ctx, to, "", shared.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)

		rows, total, err := s.Transfers.ListTransfers(ctx, from, transfer.StatusInTransit, shared.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, rows, 1)
	})
}
