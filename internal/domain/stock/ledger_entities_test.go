package stock

import (
	"errors"
	"testing"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngredientStock_Apply(t *testing.T) {
	newStock := func(t *testing.T) *IngredientStock {
		s, err := NewIngredientStock(uuid.New(), uuid.New(), "kg", testNow)
		require.NoError(t, err)
		return s
	}

	t.Run("increase and decrease", func(t *testing.T) {
		s := newStock(t)
		after, err := s.Apply(decimal.NewFromInt(10), "kg", testNow)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(10).Equal(after))

		after, err = s.Apply(decimal.NewFromInt(-4), "kg", testNow)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(6).Equal(after))
		require.NotNil(t, s.LastMovementAt)
	})

	t.Run("negative result leaves stock untouched", func(t *testing.T) {
		s := newStock(t)
		_, err := s.Apply(decimal.NewFromInt(3), "kg", testNow)
		require.NoError(t, err)

		_, err = s.Apply(decimal.NewFromInt(-5), "kg", testNow)
		var insufficient *InsufficientStockError
		require.True(t, errors.As(err, &insufficient))
		assert.True(t, errors.Is(err, shared.ErrInsufficientStock))
		assert.True(t, decimal.NewFromInt(5).Equal(insufficient.Requested))
		assert.True(t, decimal.NewFromInt(3).Equal(insufficient.Available))
		assert.True(t, decimal.NewFromInt(2).Equal(insufficient.Shortage()))
		assert.True(t, decimal.NewFromInt(3).Equal(s.Quantity))
	})

	t.Run("zero delta is invalid input", func(t *testing.T) {
		s := newStock(t)
		_, err := s.Apply(decimal.Zero, "kg", testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("unit mismatch", func(t *testing.T) {
		s := newStock(t)
		_, err := s.Apply(decimal.NewFromInt(1), "l", testNow)
		assert.ErrorIs(t, err, ErrUnitMismatch)
	})

	t.Run("empty unit adopts the first one", func(t *testing.T) {
		s, err := NewIngredientStock(uuid.New(), uuid.New(), "", testNow)
		require.NoError(t, err)
		_, err = s.Apply(decimal.NewFromInt(1), "pcs", testNow)
		require.NoError(t, err)
		assert.Equal(t, "pcs", s.Unit)
	})
}

func TestIngredientStock_BlendCost(t *testing.T) {
	s, err := NewIngredientStock(uuid.New(), uuid.New(), "kg", testNow)
	require.NoError(t, err)

	s.BlendCost(decimal.NewFromInt(10), decimal.NewFromInt(2))
	_, err = s.Apply(decimal.NewFromInt(10), "kg", testNow)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2).Equal(s.AverageCostUsd))

	s.BlendCost(decimal.NewFromInt(10), decimal.NewFromInt(4))
	_, err = s.Apply(decimal.NewFromInt(10), "kg", testNow)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3).Equal(s.AverageCostUsd))
}

func TestNewIngredientMovement(t *testing.T) {
	s, err := NewIngredientStock(uuid.New(), uuid.New(), "kg", testNow)
	require.NoError(t, err)
	before := s.Quantity
	_, err = s.Apply(decimal.NewFromInt(5), "kg", testNow)
	require.NoError(t, err)

	ref := NewReference(ReferenceReceipt, uuid.New())
	m, err := NewIngredientMovement(s, MovementReceipt, decimal.NewFromInt(5), before, ref, "", "alice", testNow)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(m.BalanceAfter))
	assert.True(t, m.IsIncrease())
	assert.Equal(t, ref, m.Reference)

	_, err = NewIngredientMovement(s, MovementReceipt, decimal.NewFromInt(5), before, ref, "", "", testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	_, err = NewIngredientMovement(s, MovementType("BOGUS"), decimal.NewFromInt(5), before, ref, "", "alice", testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestProductBalance_Apply(t *testing.T) {
	b := mustBalance(t)
	after, err := b.Apply(10, testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(10), after)

	_, err = b.Apply(-11, testNow)
	var insufficient *InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Item.IsProduct())
	assert.Equal(t, int64(10), b.Quantity)

	_, err = b.Apply(0, testNow)
	assert.ErrorIs(t, err, ErrZeroQuantity)
}

func TestNewProductMovement_SignMatchesOperation(t *testing.T) {
	b := mustBalance(t)
	doc := NewReference(ReferenceSalesOrder, uuid.New())

	_, err := NewProductMovement(b, OperationSale, 3, 0, doc, "", "bob", testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewProductMovement(b, OperationProduction, -3, 0, doc, "", "bob", testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	m, err := NewProductMovement(b, OperationAdjustment, -3, 3, doc, "", "bob", testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), m.Quantity)
}

func TestNewProductLot_Validation(t *testing.T) {
	b := mustBalance(t)
	_, err := NewProductLot(b, nil, testNow, nil, 0, LotCost{}, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	early := testNow.AddDate(0, 0, -1)
	_, err = NewProductLot(b, nil, testNow, &early, 1, LotCost{}, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	lot, err := NewProductLot(b, nil, testNow, nil, 1, LotCost{}, testNow)
	require.NoError(t, err)
	assert.False(t, lot.IsExpired(testNow.AddDate(1, 0, 0)))
}

func TestItemRef(t *testing.T) {
	id := uuid.New()
	assert.True(t, IngredientRef(id).IsIngredient())
	assert.True(t, ProductRef(id).IsProduct())
	assert.NoError(t, ProductRef(id).Validate())
	assert.Error(t, ProductRef(uuid.Nil).Validate())
	assert.Error(t, ItemRef{Kind: "X", ID: id}.Validate())

	assert.True(t, CategoryRawMaterials.Accepts(IngredientRef(id)))
	assert.False(t, CategoryRawMaterials.Accepts(ProductRef(id)))
	assert.True(t, CategoryFinishedProducts.Accepts(ProductRef(id)))
}

func TestStockDocument(t *testing.T) {
	lines := []StockDocumentLine{
		{IngredientID: uuid.New(), Quantity: decimal.NewFromInt(5), Unit: "kg"},
	}

	t.Run("reverse once", func(t *testing.T) {
		doc, err := NewStockDocument(DocumentWriteOff, uuid.New(), "WO-1", "spoiled", lines, "alice", testNow)
		require.NoError(t, err)
		assert.Equal(t, DocumentPosted, doc.Status)
		assert.True(t, decimal.NewFromInt(-5).Equal(doc.Lines[0].SignedQuantity(doc.Kind)))
		assert.Equal(t, ReferenceWriteOff, doc.Reference().Type)

		require.NoError(t, doc.Reverse("bob", testNow))
		assert.Equal(t, DocumentReversed, doc.Status)
		assert.ErrorIs(t, doc.Reverse("bob", testNow), ErrDocumentReversed)
	})

	t.Run("rejects duplicate ingredient lines", func(t *testing.T) {
		dup := append(lines, lines[0])
		_, err := NewStockDocument(DocumentReceipt, uuid.New(), "R-1", "", dup, "alice", testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		bad := []StockDocumentLine{{IngredientID: uuid.New(), Quantity: decimal.NewFromInt(-1)}}
		_, err := NewStockDocument(DocumentReceipt, uuid.New(), "R-2", "", bad, "alice", testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
