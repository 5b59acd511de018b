package production

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Engine drives production batches and posts their effects to the ledgers
type Engine struct {
	scope       txn.Scope
	recipes     production.RecipeDirectory
	rates       production.ExchangeRateProvider
	ingredients *ledger.IngredientLedger
	products    *ledger.ProductLedger
	cfg         Config
	logger      *zap.Logger
	metrics     *telemetry.LedgerMetrics
}

// NewEngine creates a production Engine
func NewEngine(
	scope txn.Scope,
	recipes production.RecipeDirectory,
	rates production.ExchangeRateProvider,
	ingredients *ledger.IngredientLedger,
	products *ledger.ProductLedger,
	cfg Config,
	logger *zap.Logger,
	metrics *telemetry.LedgerMetrics,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Costing.IsValid() {
		cfg.Costing = production.CostingNone
	}
	return &Engine{
		scope:       scope,
		recipes:     recipes,
		rates:       rates,
		ingredients: ingredients,
		products:    products,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
}

// PlanBatch creates a Planned batch with consumption scaled from the recipe version
func (e *Engine) PlanBatch(ctx context.Context, in PlanBatchInput) (*production.ProductionBatch, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "production_engine", "plan_batch")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRecipeID, in.RecipeID.String(),
		telemetry.SpanAttrBranchID, in.BranchID.String(),
	)

	if in.OccurredAt.IsZero() {
		return nil, shared.NewValidationError("occurredAt is required")
	}
	version, err := e.recipes.GetRecipeVersion(ctx, in.RecipeVersionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	batch, err := production.PlanBatch(in.RecipeID, version, in.BranchID, in.PlannedQuantity, in.PlannedDate, in.Notes, in.Actor, in.OccurredAt)
	if err != nil {
		return nil, err
	}

	err = e.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		return repos.Batches().Create(ctx, batch)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	e.logger.Info("Production batch planned",
		zap.String("batch_id", batch.ID.String()),
		zap.String("recipe_id", batch.RecipeID.String()),
		zap.String("planned_quantity", batch.PlannedQuantity.String()),
		zap.String("actor", in.Actor),
	)
	return batch, nil
}

// StartBatch moves a Planned batch to InProgress; there is no ledger effect
func (e *Engine) StartBatch(ctx context.Context, in StartBatchInput) (*production.ProductionBatch, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "production_engine", "start_batch")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, in.BatchID.String())

	batch, err := e.mutate(ctx, in.BatchID, in.Actor, in.OccurredAt, func(ctx context.Context, repos txn.Repositories, b *production.ProductionBatch) error {
		return b.Start(in.Overrides, in.Actor, in.OccurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Production batch started", zap.String("batch_id", batch.ID.String()), zap.String("actor", in.Actor))
	return batch, nil
}

// CompleteBatch posts every consumption line and the produced lot in one transaction.
// An InsufficientStock on any line rolls back all postings and the lot.
func (e *Engine) CompleteBatch(ctx context.Context, in CompleteBatchInput) (*production.ProductionBatch, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "production_engine", "complete_batch")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBatchID, in.BatchID.String(),
		telemetry.SpanAttrQuantity, in.ActualOutput,
	)

	if in.ActualOutput < 0 {
		return nil, shared.NewValidationError("Actual output cannot be negative")
	}
	rate, err := e.rates.LatestRate(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", production.ErrRateUnavailable, err)
	}

	batch, err := e.mutate(ctx, in.BatchID, in.Actor, in.OccurredAt, func(ctx context.Context, repos txn.Repositories, b *production.ProductionBatch) error {
		if err := b.RecordActuals(in.ActualConsumption); err != nil {
			return err
		}

		ref := stock.NewReference(stock.ReferenceProductionBatch, b.ID)
		var postIdx []int
		movements := make([]ledger.ApplyMovementInput, 0, len(b.Consumptions))
		for i := range b.Consumptions {
			c := &b.Consumptions[i]
			if c.Effective().IsZero() {
				continue
			}
			movements = append(movements, ledger.ApplyMovementInput{
				BranchID:     b.BranchID,
				IngredientID: c.IngredientID,
				Quantity:     c.Effective().Neg(),
				Unit:         c.Unit,
				Type:         stock.MovementProduction,
				Reference:    ref,
				Notes:        "production batch consumption",
				Actor:        in.Actor,
				OccurredAt:   in.OccurredAt,
			})
			postIdx = append(postIdx, i)
		}
		posted, err := e.ingredients.ApplyMovements(ctx, movements)
		if err != nil {
			return err
		}
		consumed := make([]production.ConsumedValue, 0, len(posted))
		for j, m := range posted {
			id := m.ID
			b.Consumptions[postIdx[j]].MovementID = &id
			consumed = append(consumed, production.ConsumedValue{
				Quantity:       m.Quantity.Abs(),
				AverageCostUsd: m.UnitCostUsd,
			})
		}

		var lotID *uuid.UUID
		if in.ActualOutput > 0 {
			expiry := e.expiry(ctx, b, in.OccurredAt)
			lot, _, err := e.products.AddLot(ctx, ledger.AddLotInput{
				BranchID:       b.BranchID,
				RecipeID:       b.RecipeID,
				BatchID:        &b.ID,
				ProductionDate: in.OccurredAt,
				ExpiryDate:     expiry,
				Quantity:       in.ActualOutput,
				Cost:           e.cfg.Costing.LotCost(consumed, in.ActualOutput, rate),
				Operation:      stock.OperationProduction,
				Document:       ref,
				Notes:          "production batch output",
				Actor:          in.Actor,
				OccurredAt:     in.OccurredAt,
			})
			if err != nil {
				return err
			}
			lotID = &lot.ID
		}
		return b.Complete(in.ActualOutput, lotID, in.Actor, in.OccurredAt)
	})
	if err != nil {
		if ledger.IsInsufficientStock(err) {
			e.logger.Warn("Production batch completion rolled back",
				zap.String("batch_id", in.BatchID.String()),
				zap.Error(err),
			)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	e.metrics.RecordBatchCompleted(ctx, batch.BranchID)
	e.logger.Info("Production batch completed",
		zap.String("batch_id", batch.ID.String()),
		zap.Int64("output", in.ActualOutput),
		zap.Int("consumption_lines", len(batch.Consumptions)),
		zap.String("actor", in.Actor),
	)
	return batch, nil
}

// CancelBatch abandons a Planned or InProgress batch; there is no ledger effect
func (e *Engine) CancelBatch(ctx context.Context, in CancelBatchInput) (*production.ProductionBatch, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "production_engine", "cancel_batch")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBatchID, in.BatchID.String())

	batch, err := e.mutate(ctx, in.BatchID, in.Actor, in.OccurredAt, func(ctx context.Context, repos txn.Repositories, b *production.ProductionBatch) error {
		return b.Cancel(in.Reason, in.Actor, in.OccurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Production batch cancelled",
		zap.String("batch_id", batch.ID.String()),
		zap.String("reason", in.Reason),
		zap.String("actor", in.Actor),
	)
	return batch, nil
}

// GetBatch returns a batch with its consumption lines
func (e *Engine) GetBatch(ctx context.Context, id uuid.UUID) (*production.ProductionBatch, error) {
	var batch *production.ProductionBatch
	err := e.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		batch, err = repos.Batches().FindByID(ctx, id)
		return err
	})
	return batch, err
}

// ListBatches lists a branch's batches, optionally filtered by status
func (e *Engine) ListBatches(ctx context.Context, branchID uuid.UUID, status production.BatchStatus, filter shared.Filter) ([]production.ProductionBatch, int64, error) {
	var (
		batches []production.ProductionBatch
		total   int64
	)
	err := e.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		batches, total, err = repos.Batches().FindByBranch(ctx, branchID, status, filter)
		return err
	})
	return batches, total, err
}

// mutate locks the batch, applies fn, then writes the batch and its events in the same transaction
func (e *Engine) mutate(
	ctx context.Context,
	id uuid.UUID,
	actor string,
	occurredAt time.Time,
	fn func(ctx context.Context, repos txn.Repositories, b *production.ProductionBatch) error,
) (*production.ProductionBatch, error) {
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if occurredAt.IsZero() {
		return nil, shared.NewValidationError("occurredAt is required")
	}

	var batch *production.ProductionBatch
	err := e.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		b, err := repos.Batches().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, repos, b); err != nil {
			return err
		}
		if err := repos.Batches().Update(ctx, b); err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		if err := repos.Events().Record(ctx, b.GetDomainEvents()...); err != nil {
			return fmt.Errorf("record batch events: %w", err)
		}
		b.ClearDomainEvents()
		batch = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// expiry is occurredAt plus the version's shelf life, or the configured default
func (e *Engine) expiry(ctx context.Context, b *production.ProductionBatch, occurredAt time.Time) *time.Time {
	days := e.cfg.ShelfLifeDays
	if version, err := e.recipes.GetRecipeVersion(ctx, b.RecipeVersionID); err == nil && version.ShelfLifeDays > 0 {
		days = version.ShelfLifeDays
	} else if err != nil {
		e.logger.Warn("Recipe version unavailable for shelf life, using default",
			zap.String("recipe_version_id", b.RecipeVersionID.String()),
			zap.Error(err),
		)
	}
	if days <= 0 {
		return nil
	}
	exp := occurredAt.AddDate(0, 0, days)
	return &exp
}
