package stock

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind distinguishes receipts from write-offs
type DocumentKind string

const (
	DocumentReceipt  DocumentKind = "RECEIPT"
	DocumentWriteOff DocumentKind = "WRITE_OFF"
)

// IsValid checks if the document kind is valid
func (k DocumentKind) IsValid() bool {
	return k == DocumentReceipt || k == DocumentWriteOff
}

// MovementType returns the ingredient movement type posted by this kind
func (k DocumentKind) MovementType() MovementType {
	if k == DocumentWriteOff {
		return MovementWriteOff
	}
	return MovementReceipt
}

// ReferenceType returns the reference type stamped on posted movements
func (k DocumentKind) ReferenceType() ReferenceType {
	if k == DocumentWriteOff {
		return ReferenceWriteOff
	}
	return ReferenceReceipt
}

// Sign returns +1 for receipts and -1 for write-offs
func (k DocumentKind) Sign() decimal.Decimal {
	if k == DocumentWriteOff {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// DocumentStatus is the lifecycle status of a stock document
type DocumentStatus string

const (
	DocumentPosted   DocumentStatus = "POSTED"
	DocumentReversed DocumentStatus = "REVERSED"
)

// StockDocumentLine is one ingredient line of a receipt or write-off.
// Quantity is always positive; the document kind decides the sign.
type StockDocumentLine struct {
	ID           uuid.UUID
	DocumentID   uuid.UUID
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
	Unit         string
	UnitCostUsd  decimal.Decimal
	MovementID   *uuid.UUID
	ReversalID   *uuid.UUID
}

// SignedQuantity returns the delta this line posts
func (l *StockDocumentLine) SignedQuantity(kind DocumentKind) decimal.Decimal {
	return l.Quantity.Mul(kind.Sign())
}

// StockDocument is a receipt or write-off of ingredients at one branch
type StockDocument struct {
	shared.BaseAggregateRoot
	Kind       DocumentKind
	BranchID   uuid.UUID
	Number     string
	Reason     string
	Status     DocumentStatus
	Lines      []StockDocumentLine
	PostedBy   string
	PostedAt   time.Time
	ReversedBy string
	ReversedAt *time.Time
}

// NewStockDocument validates and creates a posted document (movements are attached by the ledger)
func NewStockDocument(kind DocumentKind, branchID uuid.UUID, number, reason string, lines []StockDocumentLine, actor string, at time.Time) (*StockDocument, error) {
	if !kind.IsValid() {
		return nil, shared.NewValidationError("invalid document kind " + string(kind))
	}
	if branchID == uuid.Nil {
		return nil, shared.NewValidationError("Branch ID cannot be empty")
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError("Document must have at least one line")
	}
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	doc := &StockDocument{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		Kind:              kind,
		BranchID:          branchID,
		Number:            number,
		Reason:            reason,
		Status:            DocumentPosted,
		PostedBy:          actor,
		PostedAt:          at,
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if line.IngredientID == uuid.Nil {
			return nil, shared.NewValidationError("Ingredient ID cannot be empty")
		}
		if !line.Quantity.IsPositive() {
			return nil, shared.NewValidationError("Line quantity must be positive")
		}
		if line.UnitCostUsd.IsNegative() {
			return nil, shared.NewValidationError("Unit cost cannot be negative")
		}
		if _, dup := seen[line.IngredientID]; dup {
			return nil, shared.NewValidationError("Ingredient appears on more than one line")
		}
		seen[line.IngredientID] = struct{}{}
		line.ID = uuid.New()
		line.DocumentID = doc.ID
		doc.Lines = append(doc.Lines, line)
	}
	return doc, nil
}

// AttachMovement records the movement a line posted
func (d *StockDocument) AttachMovement(lineIdx int, movementID uuid.UUID) {
	d.Lines[lineIdx].MovementID = &movementID
}

// Reverse marks the document reversed; each line's negated delta must be posted by the caller
func (d *StockDocument) Reverse(actor string, at time.Time) error {
	if d.Status == DocumentReversed {
		return ErrDocumentReversed
	}
	d.Status = DocumentReversed
	d.ReversedBy = actor
	d.ReversedAt = &at
	d.Touch(at)
	d.IncrementVersion()
	return nil
}

// AttachReversal records the compensating movement for a line
func (d *StockDocument) AttachReversal(lineIdx int, movementID uuid.UUID) {
	d.Lines[lineIdx].ReversalID = &movementID
}

// Reference returns the reference stamped on movements posted by this document
func (d *StockDocument) Reference() Reference {
	return NewReference(d.Kind.ReferenceType(), d.ID)
}
