package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ledgerIngredient = "ingredient"

// IngredientLedger owns every write to ingredient balances.
// Each posting locks the (branch, ingredient) row, applies the delta and
// appends the movement in one transaction.
type IngredientLedger struct {
	scope   txn.Scope
	logger  *zap.Logger
	metrics *telemetry.LedgerMetrics
}

// NewIngredientLedger creates an IngredientLedger
func NewIngredientLedger(scope txn.Scope, logger *zap.Logger, metrics *telemetry.LedgerMetrics) *IngredientLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngredientLedger{scope: scope, logger: logger, metrics: metrics}
}

// ApplyMovement posts one signed change
func (l *IngredientLedger) ApplyMovement(ctx context.Context, in ApplyMovementInput) (*stock.IngredientMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingredient_ledger", "apply_movement")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBranchID, in.BranchID.String(),
		telemetry.SpanAttrIngredientID, in.IngredientID.String(),
		telemetry.SpanAttrQuantity, in.Quantity.String(),
		telemetry.SpanAttrMovementType, string(in.Type),
	)

	var movement *stock.IngredientMovement
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		movement, err = l.apply(ctx, repos, in)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return movement, nil
}

// ApplyMovements posts several changes atomically, locking keys in (branch, ingredient) order.
// Results are returned in input order.
func (l *IngredientLedger) ApplyMovements(ctx context.Context, inputs []ApplyMovementInput) ([]*stock.IngredientMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingredient_ledger", "apply_movements")
	defer span.End()

	movements := make([]*stock.IngredientMovement, len(inputs))
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		for _, idx := range lockOrder(inputs) {
			m, err := l.apply(ctx, repos, inputs[idx])
			if err != nil {
				return err
			}
			movements[idx] = m
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return movements, nil
}

func (l *IngredientLedger) apply(ctx context.Context, repos txn.Repositories, in ApplyMovementInput) (*stock.IngredientMovement, error) {
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, err
	}
	if in.BranchID == uuid.Nil || in.IngredientID == uuid.Nil {
		return nil, shared.NewValidationError("Branch and ingredient are required")
	}
	if !in.Type.IsValid() {
		return nil, shared.NewValidationError("invalid movement type " + string(in.Type))
	}
	if in.Quantity.IsZero() {
		return nil, stock.ErrZeroQuantity
	}
	if err := stock.CheckQuantityScale(in.Quantity); err != nil {
		return nil, err
	}
	if in.ReversalOf == nil && !in.Type.AllowsSign(in.Quantity.IsPositive()) {
		return nil, shared.NewValidationError("quantity sign does not match movement type " + string(in.Type))
	}

	s, err := repos.IngredientStocks().GetForUpdate(ctx, in.BranchID, in.IngredientID, in.Unit, in.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("lock ingredient stock: %w", err)
	}
	if err := s.CheckUnit(in.Unit); err != nil {
		return nil, err
	}

	before := s.Quantity
	priced := in.UnitCostUsd != nil && in.Quantity.IsPositive()
	if priced {
		s.BlendCost(in.Quantity, *in.UnitCostUsd)
	}
	if _, err := s.Apply(in.Quantity, in.Unit, in.OccurredAt); err != nil {
		var insufficient *stock.InsufficientStockError
		if errors.As(err, &insufficient) {
			l.metrics.RecordInsufficientStock(ctx, ledgerIngredient, in.BranchID)
			l.logger.Warn("Ingredient deduction rejected",
				zap.String("branch_id", in.BranchID.String()),
				zap.String("ingredient_id", in.IngredientID.String()),
				zap.String("requested", insufficient.Requested.String()),
				zap.String("available", insufficient.Available.String()),
				zap.String("movement_type", string(in.Type)),
			)
		}
		return nil, err
	}
	if err := repos.IngredientStocks().Update(ctx, s); err != nil {
		return nil, fmt.Errorf("update ingredient stock: %w", err)
	}

	m, err := stock.NewIngredientMovement(s, in.Type, in.Quantity, before, in.Reference, in.Notes, in.Actor, in.OccurredAt)
	if err != nil {
		return nil, err
	}
	if priced {
		m.UnitCostUsd = *in.UnitCostUsd
	}
	if in.ReversalOf != nil {
		m.MarkReversalOf(*in.ReversalOf)
	}
	if err := repos.IngredientMovements().Create(ctx, m); err != nil {
		return nil, fmt.Errorf("append ingredient movement: %w", err)
	}

	l.metrics.RecordMovement(ctx, ledgerIngredient, string(in.Type), in.BranchID)
	l.logger.Debug("Ingredient movement posted",
		zap.String("movement_id", m.ID.String()),
		zap.String("branch_id", in.BranchID.String()),
		zap.String("ingredient_id", in.IngredientID.String()),
		zap.String("quantity", in.Quantity.String()),
		zap.String("balance_after", m.BalanceAfter.String()),
	)
	return m, nil
}

// SetAbsolute moves the balance to quantity with an Adjustment.
// It returns nil without writing when the balance already equals quantity.
func (l *IngredientLedger) SetAbsolute(ctx context.Context, in SetIngredientInput) (*stock.IngredientMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingredient_ledger", "set_absolute")
	defer span.End()

	var movement *stock.IngredientMovement
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		movement, err = l.setAbsolute(ctx, repos, in)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return movement, nil
}

func (l *IngredientLedger) setAbsolute(ctx context.Context, repos txn.Repositories, in SetIngredientInput) (*stock.IngredientMovement, error) {
	if in.Quantity.IsNegative() {
		return nil, shared.NewValidationError("Quantity cannot be negative")
	}
	if err := stock.CheckQuantityScale(in.Quantity); err != nil {
		return nil, err
	}
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, err
	}
	if in.Quantity.IsZero() {
		existing, err := repos.IngredientStocks().Find(ctx, in.BranchID, in.IngredientID)
		if err != nil {
			return nil, fmt.Errorf("find ingredient stock: %w", err)
		}
		if existing == nil {
			return nil, nil
		}
	}
	s, err := repos.IngredientStocks().GetForUpdate(ctx, in.BranchID, in.IngredientID, in.Unit, in.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("lock ingredient stock: %w", err)
	}
	delta := in.Quantity.Sub(s.Quantity)
	if delta.IsZero() {
		return nil, nil
	}
	return l.apply(ctx, repos, ApplyMovementInput{
		BranchID:     in.BranchID,
		IngredientID: in.IngredientID,
		Quantity:     delta,
		Unit:         in.Unit,
		Type:         stock.MovementAdjustment,
		Reference:    in.Reference,
		Notes:        in.Notes,
		Actor:        in.Actor,
		OccurredAt:   in.OccurredAt,
	})
}

// GetBalance returns the on-hand quantity, zero for a pair never touched
func (l *IngredientLedger) GetBalance(ctx context.Context, branchID, ingredientID uuid.UUID) (decimal.Decimal, error) {
	s, err := l.GetStock(ctx, branchID, ingredientID)
	if err != nil {
		return decimal.Zero, err
	}
	if s == nil {
		return decimal.Zero, nil
	}
	return s.Quantity, nil
}

// GetStock returns the stock row, or nil for a pair never touched
func (l *IngredientLedger) GetStock(ctx context.Context, branchID, ingredientID uuid.UUID) (*stock.IngredientStock, error) {
	var s *stock.IngredientStock
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		s, err = repos.IngredientStocks().Find(ctx, branchID, ingredientID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find ingredient stock: %w", err)
	}
	return s, nil
}

// ListBalances returns every ingredient stock row of a branch
func (l *IngredientLedger) ListBalances(ctx context.Context, branchID uuid.UUID) ([]stock.IngredientStock, error) {
	var rows []stock.IngredientStock
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, err = repos.IngredientStocks().FindByBranch(ctx, branchID)
		return err
	})
	return rows, err
}

// ListMovements returns the movement history of a pair in posting order
func (l *IngredientLedger) ListMovements(ctx context.Context, branchID, ingredientID uuid.UUID, filter shared.Filter) ([]stock.IngredientMovement, int64, error) {
	var (
		rows  []stock.IngredientMovement
		total int64
	)
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, total, err = repos.IngredientMovements().FindByPair(ctx, branchID, ingredientID, filter.Normalize())
		return err
	})
	return rows, total, err
}

// MovementsByReference lists movements posted for a document
func (l *IngredientLedger) MovementsByReference(ctx context.Context, ref stock.Reference) ([]stock.IngredientMovement, error) {
	var rows []stock.IngredientMovement
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, err = repos.IngredientMovements().FindByReference(ctx, ref)
		return err
	})
	return rows, err
}

// lockOrder returns input indices sorted by (branch, ingredient)
func lockOrder(inputs []ApplyMovementInput) []int {
	idx := make([]int, len(inputs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keyLess(inputs[idx[a]].BranchID, inputs[idx[a]].IngredientID, inputs[idx[b]].BranchID, inputs[idx[b]].IngredientID)
	})
	return idx
}

func keyLess(branchA, itemA, branchB, itemB uuid.UUID) bool {
	if c := bytes.Compare(branchA[:], branchB[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(itemA[:], itemB[:]) < 0
}
