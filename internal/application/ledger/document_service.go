package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentService posts and reverses ingredient receipts and write-offs.
// Every line of a document is posted through the IngredientLedger in one transaction.
type DocumentService struct {
	scope       txn.Scope
	ingredients *IngredientLedger
	logger      *zap.Logger
}

// NewDocumentService creates a DocumentService
func NewDocumentService(scope txn.Scope, ingredients *IngredientLedger, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{scope: scope, ingredients: ingredients, logger: logger}
}

// PostReceipt adds every line to stock, blending priced lines into the average cost
func (s *DocumentService) PostReceipt(ctx context.Context, in PostDocumentInput) (*stock.StockDocument, error) {
	return s.post(ctx, stock.DocumentReceipt, in)
}

// PostWriteOff removes every line from stock
func (s *DocumentService) PostWriteOff(ctx context.Context, in PostDocumentInput) (*stock.StockDocument, error) {
	return s.post(ctx, stock.DocumentWriteOff, in)
}

func (s *DocumentService) post(ctx context.Context, kind stock.DocumentKind, in PostDocumentInput) (*stock.StockDocument, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_document", "post")
	defer span.End()

	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, err
	}
	lines := make([]stock.StockDocumentLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, stock.StockDocumentLine{
			IngredientID: l.IngredientID,
			Quantity:     l.Quantity,
			Unit:         l.Unit,
			UnitCostUsd:  l.UnitCostUsd,
		})
	}
	doc, err := stock.NewStockDocument(kind, in.BranchID, in.Number, in.Reason, lines, in.Actor, in.OccurredAt)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDocumentID, doc.ID.String(),
		telemetry.SpanAttrBranchID, doc.BranchID.String(),
	)

	movements := make([]ApplyMovementInput, len(doc.Lines))
	for i := range doc.Lines {
		line := &doc.Lines[i]
		movements[i] = ApplyMovementInput{
			BranchID:     doc.BranchID,
			IngredientID: line.IngredientID,
			Quantity:     line.SignedQuantity(kind),
			Unit:         line.Unit,
			Type:         kind.MovementType(),
			Reference:    doc.Reference(),
			Notes:        doc.Reason,
			Actor:        in.Actor,
			OccurredAt:   in.OccurredAt,
		}
		if kind == stock.DocumentReceipt && line.UnitCostUsd.IsPositive() {
			cost := line.UnitCostUsd
			movements[i].UnitCostUsd = &cost
		}
	}

	err = s.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		posted, err := s.ingredients.ApplyMovements(ctx, movements)
		if err != nil {
			return err
		}
		for i, m := range posted {
			doc.AttachMovement(i, m.ID)
		}
		if err := repos.StockDocuments().Create(ctx, doc); err != nil {
			return fmt.Errorf("create stock document: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Stock document posted",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("branch_id", doc.BranchID.String()),
		zap.Int("lines", len(doc.Lines)),
		zap.String("actor", in.Actor),
	)
	return doc, nil
}

// ReverseDocument posts the negated delta of every line, linked to the movement it
// compensates, and marks the document Reversed. Original movements are never removed.
func (s *DocumentService) ReverseDocument(ctx context.Context, id uuid.UUID, actor string, occurredAt time.Time) (*stock.StockDocument, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_document", "reverse")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDocumentID, id.String())

	if err := validateActor(actor, occurredAt); err != nil {
		return nil, err
	}

	var doc *stock.StockDocument
	err := s.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		doc, err = repos.StockDocuments().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := doc.Reverse(actor, occurredAt); err != nil {
			return err
		}

		movements := make([]ApplyMovementInput, len(doc.Lines))
		for i := range doc.Lines {
			line := &doc.Lines[i]
			movements[i] = ApplyMovementInput{
				BranchID:     doc.BranchID,
				IngredientID: line.IngredientID,
				Quantity:     line.SignedQuantity(doc.Kind).Neg(),
				Unit:         line.Unit,
				Type:         doc.Kind.MovementType(),
				Reference:    doc.Reference(),
				Notes:        "reversal of " + doc.Number,
				ReversalOf:   line.MovementID,
				Actor:        actor,
				OccurredAt:   occurredAt,
			}
		}
		posted, err := s.ingredients.ApplyMovements(ctx, movements)
		if err != nil {
			return err
		}
		for i, m := range posted {
			doc.AttachReversal(i, m.ID)
		}
		return repos.StockDocuments().Update(ctx, doc)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Stock document reversed",
		zap.String("document_id", doc.ID.String()),
		zap.String("kind", string(doc.Kind)),
		zap.String("actor", actor),
	)
	return doc, nil
}

// GetDocument returns a document with its lines
func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*stock.StockDocument, error) {
	var doc *stock.StockDocument
	err := s.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		doc, err = repos.StockDocuments().FindByID(ctx, id)
		return err
	})
	return doc, err
}

// ListDocuments lists a branch's documents, optionally filtered by kind
func (s *DocumentService) ListDocuments(ctx context.Context, branchID uuid.UUID, kind stock.DocumentKind, filter shared.Filter) ([]stock.StockDocument, int64, error) {
	var (
		docs  []stock.StockDocument
		total int64
	)
	err := s.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		docs, total, err = repos.StockDocuments().FindByBranch(ctx, branchID, kind, filter)
		return err
	})
	return docs, total, err
}
