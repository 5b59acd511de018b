package production

import (
	"time"

	"github.com/erp/stockcore/internal/domain/production"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds the production settings the engine needs
type Config struct {
	// ShelfLifeDays is used when the recipe version does not define one
	ShelfLifeDays int
	Costing       production.CostingPolicy
}

// PlanBatchInput plans a batch against a pinned recipe version
type PlanBatchInput struct {
	RecipeID        uuid.UUID
	RecipeVersionID uuid.UUID
	BranchID        uuid.UUID
	PlannedQuantity decimal.Decimal
	PlannedDate     time.Time
	Notes           string
	Actor           string
	OccurredAt      time.Time
}

// StartBatchInput moves a batch into production
type StartBatchInput struct {
	BatchID    uuid.UUID
	Overrides  []production.QuantityOverride
	Actor      string
	OccurredAt time.Time
}

// CompleteBatchInput posts consumption and the produced lot
type CompleteBatchInput struct {
	BatchID           uuid.UUID
	ActualOutput      int64
	ActualConsumption []production.QuantityOverride
	Actor             string
	OccurredAt        time.Time
}

// CancelBatchInput abandons a batch
type CancelBatchInput struct {
	BatchID    uuid.UUID
	Reason     string
	Actor      string
	OccurredAt time.Time
}
