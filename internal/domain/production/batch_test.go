package production

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func testVersion(recipeID uuid.UUID, lines ...RecipeLine) *RecipeVersion {
	return &RecipeVersion{
		ID:           uuid.New(),
		RecipeID:     recipeID,
		Version:      1,
		OutputVolume: decimal.NewFromInt(100),
		OutputUnit:   "l",
		Lines:        lines,
	}
}

func plannedBatch(t *testing.T) *ProductionBatch {
	t.Helper()
	recipeID := uuid.New()
	v := testVersion(recipeID,
		RecipeLine{IngredientID: uuid.New(), Quantity: decimal.NewFromInt(2), Unit: "kg", Kind: LineKindIngredient},
		RecipeLine{IngredientID: uuid.New(), Quantity: decimal.NewFromInt(40), Unit: "pcs", Kind: LineKindPackaging},
	)
	b, err := PlanBatch(recipeID, v, uuid.New(), decimal.NewFromInt(250), testNow, "", "planner", testNow)
	require.NoError(t, err)
	return b
}

func TestPlanBatch_Scaling(t *testing.T) {
	b := plannedBatch(t)

	assert.Equal(t, BatchStatusPlanned, b.Status)
	require.Len(t, b.Consumptions, 2)
	assert.True(t, decimal.NewFromInt(5).Equal(b.Consumptions[0].PlannedQuantity), "2 * 250/100")
	assert.True(t, decimal.NewFromInt(100).Equal(b.Consumptions[1].PlannedQuantity))
	assert.Equal(t, LineKindPackaging, b.Consumptions[1].Kind)
	assert.Equal(t, b.ID, b.Consumptions[0].BatchID)
}

func TestPlanBatch_Validation(t *testing.T) {
	recipeID := uuid.New()

	t.Run("version of another recipe", func(t *testing.T) {
		_, err := PlanBatch(recipeID, testVersion(uuid.New()), uuid.New(), decimal.NewFromInt(1), testNow, "", "p", testNow)
		assert.ErrorIs(t, err, ErrVersionRecipeMismatch)
	})

	t.Run("zero output volume", func(t *testing.T) {
		v := testVersion(recipeID)
		v.OutputVolume = decimal.Zero
		_, err := PlanBatch(recipeID, v, uuid.New(), decimal.NewFromInt(1), testNow, "", "p", testNow)
		assert.ErrorIs(t, err, ErrInvalidOutputVolume)
	})

	t.Run("non-positive planned quantity", func(t *testing.T) {
		_, err := PlanBatch(recipeID, testVersion(recipeID), uuid.New(), decimal.Zero, testNow, "", "p", testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestBatchStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to BatchStatus
		want     bool
	}{
		{BatchStatusPlanned, BatchStatusInProgress, true},
		{BatchStatusPlanned, BatchStatusCancelled, true},
		{BatchStatusPlanned, BatchStatusCompleted, false},
		{BatchStatusInProgress, BatchStatusCompleted, true},
		{BatchStatusInProgress, BatchStatusCancelled, true},
		{BatchStatusInProgress, BatchStatusPlanned, false},
		{BatchStatusCompleted, BatchStatusCancelled, false},
		{BatchStatusCancelled, BatchStatusInProgress, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestProductionBatch_Lifecycle(t *testing.T) {
	t.Run("start applies overrides", func(t *testing.T) {
		b := plannedBatch(t)
		first := b.Consumptions[0].IngredientID
		err := b.Start([]QuantityOverride{{IngredientID: first, Quantity: decimal.NewFromInt(6)}}, "op", testNow)
		require.NoError(t, err)
		assert.Equal(t, BatchStatusInProgress, b.Status)
		assert.True(t, decimal.NewFromInt(6).Equal(b.Consumptions[0].PlannedQuantity))
		require.NotNil(t, b.StartedAt)
	})

	t.Run("start rejects unknown override line", func(t *testing.T) {
		b := plannedBatch(t)
		err := b.Start([]QuantityOverride{{IngredientID: uuid.New(), Quantity: decimal.NewFromInt(1)}}, "op", testNow)
		assert.ErrorIs(t, err, ErrUnknownBatchLine)
		assert.Equal(t, BatchStatusPlanned, b.Status)
	})

	t.Run("actuals default to planned", func(t *testing.T) {
		b := plannedBatch(t)
		require.NoError(t, b.Start(nil, "op", testNow))
		second := b.Consumptions[1].IngredientID
		require.NoError(t, b.RecordActuals([]QuantityOverride{{IngredientID: second, Quantity: decimal.NewFromInt(90)}}))

		assert.True(t, decimal.NewFromInt(5).Equal(b.Consumptions[0].Effective()))
		assert.True(t, decimal.NewFromInt(90).Equal(b.Consumptions[1].Effective()))

		require.NoError(t, b.Complete(240, nil, "op", testNow))
		assert.Equal(t, BatchStatusCompleted, b.Status)
		assert.Equal(t, int64(240), *b.ActualQuantity)
		events := b.GetDomainEvents()
		require.NotEmpty(t, events)
		assert.Equal(t, EventTypeBatchCompleted, events[len(events)-1].EventType())
	})

	t.Run("completing a planned batch is an invalid transition", func(t *testing.T) {
		b := plannedBatch(t)
		err := b.Complete(1, nil, "op", testNow)
		var transition *shared.InvalidStateTransitionError
		require.True(t, errors.As(err, &transition))
		assert.Equal(t, "PLANNED", transition.From)
		assert.ErrorIs(t, b.RecordActuals(nil), shared.ErrInvalidState)
	})

	t.Run("cancel is terminal", func(t *testing.T) {
		b := plannedBatch(t)
		require.NoError(t, b.Cancel("no bottles", "op", testNow))
		assert.Equal(t, "no bottles", b.CancelReason)
		assert.ErrorIs(t, b.Start(nil, "op", testNow), shared.ErrInvalidState)
		assert.ErrorIs(t, b.Cancel("again", "op", testNow), shared.ErrInvalidState)
	})

	t.Run("completed batch cannot be cancelled", func(t *testing.T) {
		b := plannedBatch(t)
		require.NoError(t, b.Start(nil, "op", testNow))
		require.NoError(t, b.RecordActuals(nil))
		require.NoError(t, b.Complete(250, nil, "op", testNow))
		assert.ErrorIs(t, b.Cancel("late", "op", testNow), shared.ErrInvalidState)
	})
}

func TestCostingPolicy_LotCost(t *testing.T) {
	consumed := []ConsumedValue{
		{Quantity: decimal.NewFromInt(5), AverageCostUsd: decimal.NewFromInt(2)},
		{Quantity: decimal.NewFromInt(10), AverageCostUsd: decimal.RequireFromString("0.5")},
	}
	rate := decimal.RequireFromString("10.9")

	none := CostingNone.LotCost(consumed, 10, rate)
	assert.True(t, none.UnitCostUsd.IsZero())
	assert.True(t, none.UnitCostTjs.IsZero())
	assert.True(t, rate.Equal(none.ExchangeRate))

	avg := CostingWeightedAverage.LotCost(consumed, 10, rate)
	assert.True(t, decimal.NewFromInt(15).Div(decimal.NewFromInt(10)).Equal(avg.UnitCostUsd))
	assert.True(t, decimal.RequireFromString("16.35").Equal(avg.UnitCostTjs))
}
