package stocktaking

import (
	"testing"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 8, 1, 18, 0, 0, 0, time.UTC)

func rawInventory(t *testing.T, expected ...int64) *Inventory {
	t.Helper()
	snap := make([]Snapshot, 0, len(expected))
	for _, q := range expected {
		snap = append(snap, Snapshot{Item: stock.IngredientRef(uuid.New()), Unit: "kg", Quantity: decimal.NewFromInt(q)})
	}
	inv, err := NewInventory(uuid.New(), stock.CategoryRawMaterials, testNow, snap, "auditor", testNow)
	require.NoError(t, err)
	return inv
}

func TestNewInventory_RejectsWrongKind(t *testing.T) {
	snap := []Snapshot{{Item: stock.ProductRef(uuid.New()), Quantity: decimal.NewFromInt(1)}}
	_, err := NewInventory(uuid.New(), stock.CategoryRawMaterials, testNow, snap, "auditor", testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestInventory_CountAndComplete(t *testing.T) {
	inv := rawInventory(t, 50, 10)
	require.NoError(t, inv.Start("auditor", testNow))

	counts := []Count{
		{ItemID: inv.Items[0].ID, Quantity: decimal.NewFromInt(47)},
		{ItemID: inv.Items[1].ID, Quantity: decimal.NewFromInt(10)},
	}
	require.NoError(t, inv.RecordCounts(counts))
	assert.True(t, decimal.NewFromInt(3).Equal(inv.Items[0].Discrepancy))
	assert.True(t, inv.Items[1].Discrepancy.IsZero())

	diff := inv.ItemsWithDiscrepancy()
	require.Len(t, diff, 1)
	assert.Equal(t, inv.Items[0].ID, diff[0].ID)

	require.NoError(t, inv.Complete("auditor", testNow))
	assert.Equal(t, StatusCompleted, inv.Status)
	completed, ok := inv.GetDomainEvents()[0].(*CompletedEvent)
	require.True(t, ok)
	assert.Equal(t, 1, completed.AdjustedCount)
}

func TestInventory_RequiresEveryItemCounted(t *testing.T) {
	inv := rawInventory(t, 5, 6)
	require.NoError(t, inv.Start("auditor", testNow))

	err := inv.RecordCounts([]Count{{ItemID: inv.Items[0].ID, Quantity: decimal.NewFromInt(5)}})
	assert.ErrorIs(t, err, ErrIncompleteCount)
	assert.False(t, inv.Items[0].Counted())
	assert.ErrorIs(t, inv.Complete("auditor", testNow), ErrIncompleteCount)
}

func TestInventory_CountValidation(t *testing.T) {
	inv := rawInventory(t, 5)
	assert.ErrorIs(t, inv.RecordCounts(nil), shared.ErrInvalidState, "draft cannot be counted")

	require.NoError(t, inv.Start("auditor", testNow))
	err := inv.RecordCounts([]Count{{ItemID: inv.Items[0].ID, Quantity: decimal.NewFromInt(-1)}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	err = inv.RecordCounts([]Count{{ItemID: uuid.New(), Quantity: decimal.NewFromInt(1)}})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestInventory_Cancel(t *testing.T) {
	t.Run("from draft and in progress", func(t *testing.T) {
		draft := rawInventory(t, 1)
		require.NoError(t, draft.Cancel("recount", "auditor", testNow))

		started := rawInventory(t, 1)
		require.NoError(t, started.Start("auditor", testNow))
		require.NoError(t, started.Cancel("recount", "auditor", testNow))
		assert.Equal(t, StatusCancelled, started.Status)
	})

	t.Run("not after completion", func(t *testing.T) {
		inv := rawInventory(t)
		require.NoError(t, inv.Start("auditor", testNow))
		require.NoError(t, inv.RecordCounts(nil))
		require.NoError(t, inv.Complete("auditor", testNow))
		assert.ErrorIs(t, inv.Cancel("late", "auditor", testNow), shared.ErrInvalidState)
	})
}
