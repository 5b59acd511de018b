package production

import (
	"time"

	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Production event type constants
const (
	EventTypeBatchStarted   = "ProductionBatchStarted"
	EventTypeBatchCompleted = "ProductionBatchCompleted"
	EventTypeBatchCancelled = "ProductionBatchCancelled"
)

// BatchStartedEvent is raised when a batch enters production
type BatchStartedEvent struct {
	shared.BaseDomainEvent
	RecipeID        uuid.UUID       `json:"recipe_id"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity"`
}

// NewBatchStartedEvent creates a BatchStartedEvent
func NewBatchStartedEvent(b *ProductionBatch, actor string, at time.Time) *BatchStartedEvent {
	return &BatchStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchStarted, AggregateTypeBatch, b.ID, b.BranchID, actor, at),
		RecipeID:        b.RecipeID,
		PlannedQuantity: b.PlannedQuantity,
	}
}

// ConsumedLine is a posted consumption inside BatchCompletedEvent
type ConsumedLine struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
}

// BatchCompletedEvent is raised when consumption and the output lot are posted
type BatchCompletedEvent struct {
	shared.BaseDomainEvent
	RecipeID     uuid.UUID      `json:"recipe_id"`
	OutputQty    int64          `json:"output_quantity"`
	LotID        *uuid.UUID     `json:"lot_id,omitempty"`
	Consumptions []ConsumedLine `json:"consumptions"`
}

// NewBatchCompletedEvent creates a BatchCompletedEvent
func NewBatchCompletedEvent(b *ProductionBatch, actor string, at time.Time) *BatchCompletedEvent {
	lines := make([]ConsumedLine, 0, len(b.Consumptions))
	for _, c := range b.Consumptions {
		lines = append(lines, ConsumedLine{IngredientID: c.IngredientID, Quantity: c.Effective(), Unit: c.Unit})
	}
	var output int64
	if b.ActualQuantity != nil {
		output = *b.ActualQuantity
	}
	return &BatchCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchCompleted, AggregateTypeBatch, b.ID, b.BranchID, actor, at),
		RecipeID:        b.RecipeID,
		OutputQty:       output,
		LotID:           b.LotID,
		Consumptions:    lines,
	}
}

// BatchCancelledEvent is raised when a batch is abandoned
type BatchCancelledEvent struct {
	shared.BaseDomainEvent
	RecipeID uuid.UUID `json:"recipe_id"`
	Reason   string    `json:"reason"`
}

// NewBatchCancelledEvent creates a BatchCancelledEvent
func NewBatchCancelledEvent(b *ProductionBatch, reason, actor string, at time.Time) *BatchCancelledEvent {
	return &BatchCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchCancelled, AggregateTypeBatch, b.ID, b.BranchID, actor, at),
		RecipeID:        b.RecipeID,
		Reason:          reason,
	}
}
