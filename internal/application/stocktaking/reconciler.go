package stocktaking

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductUnit is the unit finished products are counted in
const ProductUnit = "pcs"

// CreateInventoryInput snapshots a branch's book quantities for counting
type CreateInventoryInput struct {
	BranchID      uuid.UUID
	Type          stock.Category
	InventoryDate time.Time
	Actor         string
	OccurredAt    time.Time
}

// CompleteInventoryInput closes a count; every item must be counted
type CompleteInventoryInput struct {
	InventoryID uuid.UUID
	Counted     []stocktaking.Count
	Actor       string
	OccurredAt  time.Time
}

// Reconciler runs physical counts and posts the differences as Adjustments
type Reconciler struct {
	scope       txn.Scope
	ingredients *ledger.IngredientLedger
	products    *ledger.ProductLedger
	logger      *zap.Logger
	metrics     *telemetry.LedgerMetrics
}

// NewReconciler creates a Reconciler
func NewReconciler(scope txn.Scope, ingredients *ledger.IngredientLedger, products *ledger.ProductLedger, logger *zap.Logger, metrics *telemetry.LedgerMetrics) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{scope: scope, ingredients: ingredients, products: products, logger: logger, metrics: metrics}
}

// CreateInventory snapshots every ingredient row (raw materials) or every positive
// product aggregate (finished products) of the branch into a Draft inventory
func (r *Reconciler) CreateInventory(ctx context.Context, in CreateInventoryInput) (*stocktaking.Inventory, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory_reconciler", "create")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBranchID, in.BranchID.String())

	if in.OccurredAt.IsZero() {
		return nil, shared.NewValidationError("occurredAt is required")
	}
	if !in.Type.IsValid() {
		return nil, shared.NewValidationError("invalid inventory type " + string(in.Type))
	}

	var inv *stocktaking.Inventory
	err := r.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		snapshot, err := r.snapshot(ctx, repos, in.BranchID, in.Type)
		if err != nil {
			return err
		}
		inv, err = stocktaking.NewInventory(in.BranchID, in.Type, in.InventoryDate, snapshot, in.Actor, in.OccurredAt)
		if err != nil {
			return err
		}
		return repos.Inventories().Create(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	r.logger.Info("Inventory created",
		zap.String("inventory_id", inv.ID.String()),
		zap.String("branch_id", inv.BranchID.String()),
		zap.String("type", string(inv.Type)),
		zap.Int("items", len(inv.Items)),
	)
	return inv, nil
}

// StartInventory moves a Draft inventory InProgress
func (r *Reconciler) StartInventory(ctx context.Context, id uuid.UUID, actor string, occurredAt time.Time) (*stocktaking.Inventory, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory_reconciler", "start")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInventoryID, id.String())

	inv, err := r.mutate(ctx, id, actor, occurredAt, func(ctx context.Context, repos txn.Repositories, inv *stocktaking.Inventory) error {
		return inv.Start(actor, occurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	r.logger.Info("Inventory started", zap.String("inventory_id", inv.ID.String()), zap.String("actor", actor))
	return inv, nil
}

// CompleteInventory records counts and sets every differing ledger balance to the counted actual
func (r *Reconciler) CompleteInventory(ctx context.Context, in CompleteInventoryInput) (*stocktaking.Inventory, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory_reconciler", "complete")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInventoryID, in.InventoryID.String())

	var adjusted int
	inv, err := r.mutate(ctx, in.InventoryID, in.Actor, in.OccurredAt, func(ctx context.Context, repos txn.Repositories, inv *stocktaking.Inventory) error {
		if err := inv.RecordCounts(in.Counted); err != nil {
			return err
		}
		ref := stock.NewReference(stock.ReferenceInventory, inv.ID)

		items := inv.ItemsWithDiscrepancy()
		sort.Slice(items, func(a, b int) bool {
			return bytes.Compare(items[a].Item.ID[:], items[b].Item.ID[:]) < 0
		})
		for _, item := range items {
			id, err := r.adjust(ctx, inv, item, ref, in.Actor, in.OccurredAt)
			if err != nil {
				return err
			}
			item.AdjustmentID = id
			adjusted++
		}
		return inv.Complete(in.Actor, in.OccurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	r.metrics.RecordAdjustments(ctx, string(inv.Type), inv.BranchID, adjusted)
	r.logger.Info("Inventory completed",
		zap.String("inventory_id", inv.ID.String()),
		zap.Int("adjusted_items", adjusted),
		zap.String("actor", in.Actor),
	)
	return inv, nil
}

// CancelInventory abandons an inventory that is not Completed
func (r *Reconciler) CancelInventory(ctx context.Context, id uuid.UUID, reason, actor string, occurredAt time.Time) (*stocktaking.Inventory, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "inventory_reconciler", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInventoryID, id.String())

	inv, err := r.mutate(ctx, id, actor, occurredAt, func(ctx context.Context, repos txn.Repositories, inv *stocktaking.Inventory) error {
		return inv.Cancel(reason, actor, occurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	r.logger.Info("Inventory cancelled", zap.String("inventory_id", inv.ID.String()), zap.String("reason", reason))
	return inv, nil
}

// GetInventory returns an inventory with its items
func (r *Reconciler) GetInventory(ctx context.Context, id uuid.UUID) (*stocktaking.Inventory, error) {
	var inv *stocktaking.Inventory
	err := r.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		inv, err = repos.Inventories().FindByID(ctx, id)
		return err
	})
	return inv, err
}

// ListInventories lists a branch's inventories, optionally filtered by status
func (r *Reconciler) ListInventories(ctx context.Context, branchID uuid.UUID, status stocktaking.Status, filter shared.Filter) ([]stocktaking.Inventory, int64, error) {
	var (
		invs  []stocktaking.Inventory
		total int64
	)
	err := r.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		invs, total, err = repos.Inventories().FindByBranch(ctx, branchID, status, filter)
		return err
	})
	return invs, total, err
}

func (r *Reconciler) snapshot(ctx context.Context, repos txn.Repositories, branchID uuid.UUID, category stock.Category) ([]stocktaking.Snapshot, error) {
	if category == stock.CategoryRawMaterials {
		stocks, err := repos.IngredientStocks().FindByBranch(ctx, branchID)
		if err != nil {
			return nil, fmt.Errorf("snapshot ingredient stock: %w", err)
		}
		snapshot := make([]stocktaking.Snapshot, 0, len(stocks))
		for _, s := range stocks {
			snapshot = append(snapshot, stocktaking.Snapshot{
				Item:     stock.IngredientRef(s.IngredientID),
				Unit:     s.Unit,
				Quantity: s.Quantity,
			})
		}
		return snapshot, nil
	}

	balances, err := repos.ProductBalances().FindPositiveByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("snapshot product balances: %w", err)
	}
	snapshot := make([]stocktaking.Snapshot, 0, len(balances))
	for _, b := range balances {
		snapshot = append(snapshot, stocktaking.Snapshot{
			Item:     stock.ProductRef(b.RecipeID),
			Unit:     ProductUnit,
			Quantity: decimal.NewFromInt(b.Quantity),
		})
	}
	return snapshot, nil
}

// adjust sets the item's ledger balance to the counted actual and returns the Adjustment movement ID
func (r *Reconciler) adjust(ctx context.Context, inv *stocktaking.Inventory, item *stocktaking.Item, ref stock.Reference, actor string, at time.Time) (*uuid.UUID, error) {
	notes := "inventory count adjustment"
	if item.Item.IsIngredient() {
		m, err := r.ingredients.SetAbsolute(ctx, ledger.SetIngredientInput{
			BranchID:     inv.BranchID,
			IngredientID: item.Item.ID,
			Quantity:     *item.ActualQuantity,
			Unit:         item.Unit,
			Reference:    ref,
			Notes:        notes,
			Actor:        actor,
			OccurredAt:   at,
		})
		if err != nil || m == nil {
			return nil, err
		}
		return &m.ID, nil
	}
	m, err := r.products.SetAbsolute(ctx, ledger.SetProductInput{
		BranchID:   inv.BranchID,
		RecipeID:   item.Item.ID,
		Quantity:   item.ActualQuantity.IntPart(),
		Document:   ref,
		Notes:      notes,
		Actor:      actor,
		OccurredAt: at,
	})
	if err != nil || m == nil {
		return nil, err
	}
	return &m.ID, nil
}

func (r *Reconciler) mutate(
	ctx context.Context,
	id uuid.UUID,
	actor string,
	occurredAt time.Time,
	fn func(ctx context.Context, repos txn.Repositories, inv *stocktaking.Inventory) error,
) (*stocktaking.Inventory, error) {
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if occurredAt.IsZero() {
		return nil, shared.NewValidationError("occurredAt is required")
	}

	var result *stocktaking.Inventory
	err := r.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		inv, err := repos.Inventories().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, repos, inv); err != nil {
			return err
		}
		if err := repos.Inventories().Update(ctx, inv); err != nil {
			return fmt.Errorf("update inventory: %w", err)
		}
		if err := repos.Events().Record(ctx, inv.GetDomainEvents()...); err != nil {
			return fmt.Errorf("record inventory events: %w", err)
		}
		inv.ClearDomainEvents()
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
