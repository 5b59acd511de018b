package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receipt(branch uuid.UUID, lines ...ledger.DocumentLineInput) ledger.PostDocumentInput {
	return ledger.PostDocumentInput{
		BranchID:   branch,
		Number:     "RC-0001",
		Reason:     "supplier delivery",
		Lines:      lines,
		Actor:      clerk,
		OccurredAt: t0,
	}
}

func TestDocumentService_ReceiptAndReverse(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar, lemon := uuid.New(), uuid.New(), uuid.New()

	doc, err := s.Documents.PostReceipt(ctx, receipt(branch,
		ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("25"), Unit: "kg", UnitCostUsd: dec("0.80")},
		ledger.DocumentLineInput{IngredientID: lemon, Quantity: dec("4.5"), Unit: "kg"},
	))
	require.NoError(t, err)
	assert.Equal(t, stock.DocumentPosted, doc.Status)
	require.Len(t, doc.Lines, 2)
	for _, l := range doc.Lines {
		require.NotNil(t, l.MovementID)
	}

	moves, err := s.Ingredients.MovementsByReference(ctx, doc.Reference())
	require.NoError(t, err)
	assert.Len(t, moves, 2)

	st, err := s.Ingredients.GetStock(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(st.Quantity))
	assert.True(t, dec("0.8").Equal(st.AverageCostUsd))

	reversed, err := s.Documents.ReverseDocument(ctx, doc.ID, "supervisor", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, stock.DocumentReversed, reversed.Status)
	assert.Equal(t, "supervisor", reversed.ReversedBy)

	rows, _, err := s.Ingredients.ListMovements(ctx, branch, sugar, shared.Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2, "the original movement stays")
	assert.True(t, dec("-25").Equal(rows[1].Quantity))
	require.NotNil(t, rows[1].ReversalOf)
	assert.Equal(t, rows[0].ID, *rows[1].ReversalOf)
	assert.True(t, rows[1].BalanceAfter.IsZero())

	_, err = s.Documents.ReverseDocument(ctx, doc.ID, "supervisor", t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	stored, err := s.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.DocumentReversed, stored.Status)
	require.NotNil(t, stored.Lines[0].ReversalID)
}

func TestDocumentService_ReverseReceiptAlreadyConsumed(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, syrup := uuid.New(), uuid.New()

	doc, err := s.Documents.PostReceipt(ctx, receipt(branch,
		ledger.DocumentLineInput{IngredientID: syrup, Quantity: dec("10"), Unit: "l"},
	))
	require.NoError(t, err)
	_, err = s.Ingredients.ApplyMovement(ctx, ledger.ApplyMovementInput{
		BranchID: branch, IngredientID: syrup, Quantity: dec("-8"), Unit: "l",
		Type: stock.MovementProduction, Actor: clerk, OccurredAt: t0.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = s.Documents.ReverseDocument(ctx, doc.ID, clerk, t0.Add(time.Hour))
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	stored, err := s.Documents.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, stock.DocumentPosted, stored.Status, "a failed reversal leaves the document posted")
}

func TestDocumentService_WriteOffBeyondStockPostsNothing(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar, lemon := uuid.New(), uuid.New(), uuid.New()

	_, err := s.Documents.PostReceipt(ctx, receipt(branch,
		ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("5"), Unit: "kg"},
		ledger.DocumentLineInput{IngredientID: lemon, Quantity: dec("1"), Unit: "kg"},
	))
	require.NoError(t, err)

	writeOff := receipt(branch,
		ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("2"), Unit: "kg"},
		ledger.DocumentLineInput{IngredientID: lemon, Quantity: dec("1.5"), Unit: "kg"},
	)
	writeOff.Number = "WO-0001"
	writeOff.Reason = "spoiled"
	_, err = s.Documents.PostWriteOff(ctx, writeOff)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	bal, err := s.Ingredients.GetBalance(ctx, branch, sugar)
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(bal))

	docs, total, err := s.Documents.ListDocuments(ctx, branch, stock.DocumentWriteOff, shared.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)

	docs, total, err = s.Documents.ListDocuments(ctx, branch, "", shared.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, stock.DocumentReceipt, docs[0].Kind)
}

func TestDocumentService_Validation(t *testing.T) {
	s := testutil.NewStack(t)
	ctx := context.Background()
	branch, sugar := uuid.New(), uuid.New()

	tests := []struct {
		name string
		in   ledger.PostDocumentInput
	}{
		{"no lines", receipt(branch)},
		{"zero quantity", receipt(branch, ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("0"), Unit: "kg"})},
		{"negative cost", receipt(branch, ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("1"), Unit: "kg", UnitCostUsd: dec("-1")})},
		{"duplicate ingredient", receipt(branch,
			ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("1"), Unit: "kg"},
			ledger.DocumentLineInput{IngredientID: sugar, Quantity: dec("2"), Unit: "kg"},
		)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Documents.PostReceipt(ctx, tt.in)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}

	_, err := s.Documents.GetDocument(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
