package production

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeBatch is the aggregate type for production batches
const AggregateTypeBatch = "ProductionBatch"

// BatchStatus represents the lifecycle of a production batch
type BatchStatus string

const (
	BatchStatusPlanned    BatchStatus = "PLANNED"
	BatchStatusInProgress BatchStatus = "IN_PROGRESS"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusCancelled  BatchStatus = "CANCELLED"
)

// IsValid checks if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPlanned, BatchStatusInProgress, BatchStatusCompleted, BatchStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s BatchStatus) CanTransitionTo(target BatchStatus) bool {
	switch s {
	case BatchStatusPlanned:
		return target == BatchStatusInProgress || target == BatchStatusCancelled
	case BatchStatusInProgress:
		return target == BatchStatusCompleted || target == BatchStatusCancelled
	case BatchStatusCompleted, BatchStatusCancelled:
		return false
	}
	return false
}

// Consumption is the planned and actual use of one recipe line by a batch
type Consumption struct {
	ID              uuid.UUID
	BatchID         uuid.UUID
	IngredientID    uuid.UUID
	Kind            LineKind
	Unit            string
	PlannedQuantity decimal.Decimal
	ActualQuantity  *decimal.Decimal
	MovementID      *uuid.UUID
}

// Effective returns the actual quantity once recorded, otherwise the planned one
func (c *Consumption) Effective() decimal.Decimal {
	if c.ActualQuantity != nil {
		return *c.ActualQuantity
	}
	return c.PlannedQuantity
}

// QuantityOverride replaces the quantity of one batch line
type QuantityOverride struct {
	IngredientID uuid.UUID
	Quantity     decimal.Decimal
}

// ProductionBatch is one manufacturing run pinned to a recipe version
type ProductionBatch struct {
	shared.BaseAggregateRoot
	RecipeID        uuid.UUID
	RecipeVersionID uuid.UUID
	BranchID        uuid.UUID
	PlannedQuantity decimal.Decimal
	ActualQuantity  *int64
	PlannedDate     time.Time
	Status          BatchStatus
	Notes           string
	CancelReason    string
	LotID           *uuid.UUID
	CreatedBy       string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	Consumptions    []Consumption
}

// PlanBatch scales every line of the version by plannedQuantity / outputVolume
func PlanBatch(recipeID uuid.UUID, version *RecipeVersion, branchID uuid.UUID, plannedQuantity decimal.Decimal, plannedDate time.Time, notes, actor string, at time.Time) (*ProductionBatch, error) {
	if branchID == uuid.Nil {
		return nil, shared.NewValidationError("Branch ID cannot be empty")
	}
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if version.RecipeID != recipeID {
		return nil, ErrVersionRecipeMismatch
	}
	if !plannedQuantity.IsPositive() {
		return nil, shared.NewValidationError("Planned quantity must be positive")
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}

	b := &ProductionBatch{
		BaseAggregateRoot: shared.NewBaseAggregateRootAt(at),
		RecipeID:          recipeID,
		RecipeVersionID:   version.ID,
		BranchID:          branchID,
		PlannedQuantity:   plannedQuantity,
		PlannedDate:       plannedDate,
		Status:            BatchStatusPlanned,
		Notes:             notes,
		CreatedBy:         actor,
	}
	ratio := version.Ratio(plannedQuantity)
	for _, line := range version.Lines {
		b.Consumptions = append(b.Consumptions, Consumption{
			ID:              uuid.New(),
			BatchID:         b.ID,
			IngredientID:    line.IngredientID,
			Kind:            line.Kind,
			Unit:            line.Unit,
			PlannedQuantity: line.Quantity.Mul(ratio).Round(4),
		})
	}
	return b, nil
}

func (b *ProductionBatch) transition(target BatchStatus) error {
	if !b.Status.CanTransitionTo(target) {
		return shared.NewInvalidStateTransitionError(AggregateTypeBatch, b.ID, b.Status.String(), target.String())
	}
	return nil
}

func (b *ProductionBatch) line(ingredientID uuid.UUID) *Consumption {
	for i := range b.Consumptions {
		if b.Consumptions[i].IngredientID == ingredientID {
			return &b.Consumptions[i]
		}
	}
	return nil
}

// Start moves the batch into production, replacing planned quantities by overrides
func (b *ProductionBatch) Start(overrides []QuantityOverride, actor string, at time.Time) error {
	if err := b.transition(BatchStatusInProgress); err != nil {
		return err
	}
	for _, o := range overrides {
		if o.Quantity.IsNegative() {
			return shared.NewValidationError("Override quantity cannot be negative")
		}
		if b.line(o.IngredientID) == nil {
			return ErrUnknownBatchLine
		}
	}
	for _, o := range overrides {
		b.line(o.IngredientID).PlannedQuantity = o.Quantity
	}
	b.Status = BatchStatusInProgress
	b.StartedAt = &at
	b.Touch(at)
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchStartedEvent(b, actor, at))
	return nil
}

// RecordActuals stores actual consumption; lines without one fall back to planned.
// Call before posting consumption so each line's Effective quantity is final.
func (b *ProductionBatch) RecordActuals(actuals []QuantityOverride) error {
	if b.Status != BatchStatusInProgress {
		return shared.NewInvalidStateTransitionError(AggregateTypeBatch, b.ID, b.Status.String(), BatchStatusCompleted.String())
	}
	for _, a := range actuals {
		if a.Quantity.IsNegative() {
			return shared.NewValidationError("Actual quantity cannot be negative")
		}
		if b.line(a.IngredientID) == nil {
			return ErrUnknownBatchLine
		}
	}
	for _, a := range actuals {
		q := a.Quantity
		b.line(a.IngredientID).ActualQuantity = &q
	}
	for i := range b.Consumptions {
		if b.Consumptions[i].ActualQuantity == nil {
			planned := b.Consumptions[i].PlannedQuantity
			b.Consumptions[i].ActualQuantity = &planned
		}
	}
	return nil
}

// Complete closes the batch with the produced output and its lot
func (b *ProductionBatch) Complete(actualOutput int64, lotID *uuid.UUID, actor string, at time.Time) error {
	if err := b.transition(BatchStatusCompleted); err != nil {
		return err
	}
	if actualOutput < 0 {
		return shared.NewValidationError("Actual output cannot be negative")
	}
	b.ActualQuantity = &actualOutput
	b.LotID = lotID
	b.Status = BatchStatusCompleted
	b.CompletedAt = &at
	b.Touch(at)
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchCompletedEvent(b, actor, at))
	return nil
}

// Cancel abandons the batch; nothing was posted to the ledgers
func (b *ProductionBatch) Cancel(reason, actor string, at time.Time) error {
	if err := b.transition(BatchStatusCancelled); err != nil {
		return err
	}
	b.Status = BatchStatusCancelled
	b.CancelReason = reason
	b.CancelledAt = &at
	b.Touch(at)
	b.IncrementVersion()
	b.AddDomainEvent(NewBatchCancelledEvent(b, reason, actor, at))
	return nil
}
