package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ledgerProduct = "product"

// ErrSameBranch is returned by Transfer when source and destination are equal
var ErrSameBranch = shared.NewDomainError("SAME_BRANCH_TRANSFER", "Source and destination branch must differ")

// ProductLedger owns every write to finished-goods lots.
// The (branch, recipe) ProductBalance row is locked for every mutation and
// always equals the sum of that pair's lots.
type ProductLedger struct {
	scope   txn.Scope
	logger  *zap.Logger
	metrics *telemetry.LedgerMetrics
}

// NewProductLedger creates a ProductLedger
func NewProductLedger(scope txn.Scope, logger *zap.Logger, metrics *telemetry.LedgerMetrics) *ProductLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductLedger{scope: scope, logger: logger, metrics: metrics}
}

// AddLot inserts a lot with the next sequence and posts +quantity
func (l *ProductLedger) AddLot(ctx context.Context, in AddLotInput) (*stock.ProductLot, *stock.ProductMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_ledger", "add_lot")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBranchID, in.BranchID.String(),
		telemetry.SpanAttrRecipeID, in.RecipeID.String(),
		telemetry.SpanAttrQuantity, in.Quantity,
	)

	op := in.Operation
	if op == "" {
		op = stock.OperationProduction
	}
	if !op.IsInbound() && op != stock.OperationAdjustment {
		return nil, nil, shared.NewValidationError("operation " + string(op) + " cannot add a lot")
	}
	if in.Quantity <= 0 {
		return nil, nil, shared.NewValidationError("Lot quantity must be positive")
	}
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, nil, err
	}

	var (
		lot      *stock.ProductLot
		movement *stock.ProductMovement
	)
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		bal, err := l.lockBalance(ctx, repos, in.BranchID, in.RecipeID, in.OccurredAt)
		if err != nil {
			return err
		}
		lot, err = stock.NewProductLot(bal, in.BatchID, in.ProductionDate, in.ExpiryDate, in.Quantity, in.Cost, in.OccurredAt)
		if err != nil {
			return err
		}
		movement, err = l.credit(ctx, repos, bal, []*stock.ProductLot{lot}, op, in.Document, in.Notes, in.Actor, in.OccurredAt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}
	return lot, movement, nil
}

// Deduct consumes quantity from the pair's lots in FIFO order with one movement
func (l *ProductLedger) Deduct(ctx context.Context, in DeductInput) (*DeductResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_ledger", "deduct")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBranchID, in.BranchID.String(),
		telemetry.SpanAttrRecipeID, in.RecipeID.String(),
		telemetry.SpanAttrQuantity, in.Quantity,
	)

	op := in.Operation
	if op == "" {
		op = stock.OperationSale
	}
	if !op.IsOutbound() && op != stock.OperationAdjustment {
		return nil, shared.NewValidationError("operation " + string(op) + " cannot deduct")
	}
	if in.Quantity <= 0 {
		return nil, shared.NewValidationError("Deduct quantity must be positive")
	}
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, err
	}

	result := &DeductResult{}
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		bal, err := l.lockBalance(ctx, repos, in.BranchID, in.RecipeID, in.OccurredAt)
		if err != nil {
			return err
		}
		result.Movement, result.Allocations, err = l.debit(ctx, repos, bal, in.Quantity, op, in.Document, in.Notes, in.Actor, in.OccurredAt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return result, nil
}

// RecordMovement applies a signed change without naming lots.
// A positive delta creates one lot dated occurredAt, costed like the pair's newest lot;
// a negative delta consumes lots in FIFO order.
func (l *ProductLedger) RecordMovement(ctx context.Context, in RecordMovementInput) (*stock.ProductMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_ledger", "record_movement")
	defer span.End()

	if !in.Operation.IsValid() {
		return nil, shared.NewValidationError("invalid operation type " + string(in.Operation))
	}
	if in.Quantity == 0 {
		return nil, stock.ErrZeroQuantity
	}
	if (in.Operation.IsInbound() && in.Quantity < 0) || (in.Operation.IsOutbound() && in.Quantity > 0) {
		return nil, shared.NewValidationError("quantity sign does not match operation " + string(in.Operation))
	}
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, err
	}

	var movement *stock.ProductMovement
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		bal, err := l.lockBalance(ctx, repos, in.BranchID, in.RecipeID, in.OccurredAt)
		if err != nil {
			return err
		}
		movement, err = l.recordDelta(ctx, repos, bal, in.Quantity, in.Operation, in.Document, in.Notes, in.Actor, in.OccurredAt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return movement, nil
}

// SetAbsolute moves the aggregate to quantity with an Adjustment.
// It returns nil without writing when the aggregate already equals quantity.
func (l *ProductLedger) SetAbsolute(ctx context.Context, in SetProductInput) (*stock.ProductMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_ledger", "set_absolute")
	defer span.End()

	if in.Quantity < 0 {
		return nil, shared.NewValidationError("Quantity cannot be negative")
	}
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, err
	}

	var movement *stock.ProductMovement
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		if in.Quantity == 0 {
			existing, err := repos.ProductBalances().Find(ctx, in.BranchID, in.RecipeID)
			if err != nil {
				return fmt.Errorf("find product balance: %w", err)
			}
			if existing == nil {
				return nil
			}
		}
		bal, err := l.lockBalance(ctx, repos, in.BranchID, in.RecipeID, in.OccurredAt)
		if err != nil {
			return err
		}
		delta := in.Quantity - bal.Quantity
		if delta == 0 {
			return nil
		}
		movement, err = l.recordDelta(ctx, repos, bal, delta, stock.OperationAdjustment, in.Document, in.Notes, in.Actor, in.OccurredAt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return movement, nil
}

// ReceiveLots recreates allocated source lots at in.BranchID, oldest first,
// until in.Quantity is used up, with one TransferIn movement
func (l *ProductLedger) ReceiveLots(ctx context.Context, in ReceiveLotsInput) (*stock.ProductMovement, []*stock.ProductLot, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_ledger", "receive_lots")
	defer span.End()

	if in.Quantity <= 0 {
		return nil, nil, shared.NewValidationError("Received quantity must be positive")
	}
	if in.Quantity > stock.AllocationsTotal(in.Allocations) {
		return nil, nil, shared.NewValidationError("Received quantity exceeds the allocated lots")
	}
	if err := validateActor(in.Actor, in.OccurredAt); err != nil {
		return nil, nil, err
	}

	var (
		movement *stock.ProductMovement
		lots     []*stock.ProductLot
	)
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		bal, err := l.lockBalance(ctx, repos, in.BranchID, in.RecipeID, in.OccurredAt)
		if err != nil {
			return err
		}
		for _, alloc := range stock.TrimAllocations(in.Allocations, in.Quantity) {
			lot, err := stock.NewLotFromAllocation(bal, alloc, alloc.Quantity, in.OccurredAt)
			if err != nil {
				return err
			}
			lots = append(lots, lot)
		}
		movement, err = l.credit(ctx, repos, bal, lots, stock.OperationTransferIn, in.Document, in.Notes, in.Actor, in.OccurredAt)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}
	return movement, lots, nil
}

// Transfer moves product from one branch to another atomically.
// Destination lots keep the consumed source lots' dates and cost.
func (l *ProductLedger) Transfer(ctx context.Context, in ProductTransferInput) (*stock.ProductMovement, *stock.ProductMovement, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_ledger", "transfer")
	defer span.End()

	if in.FromBranchID == in.ToBranchID {
		return nil, nil, ErrSameBranch
	}
	if in.Quantity <= 0 {
		return nil, nil, shared.NewValidationError("Transfer quantity must be positive")
	}

	var out, inbound *stock.ProductMovement
	err := l.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		if err := l.LockBalances(ctx, repos, in.OccurredAt,
			BalanceKey{BranchID: in.FromBranchID, RecipeID: in.RecipeID},
			BalanceKey{BranchID: in.ToBranchID, RecipeID: in.RecipeID},
		); err != nil {
			return err
		}
		deducted, err := l.Deduct(ctx, DeductInput{
			BranchID:   in.FromBranchID,
			RecipeID:   in.RecipeID,
			Quantity:   in.Quantity,
			Operation:  stock.OperationTransferOut,
			Document:   in.Document,
			Notes:      in.Notes,
			Actor:      in.Actor,
			OccurredAt: in.OccurredAt,
		})
		if err != nil {
			return err
		}
		out = deducted.Movement
		inbound, _, err = l.ReceiveLots(ctx, ReceiveLotsInput{
			BranchID:    in.ToBranchID,
			RecipeID:    in.RecipeID,
			Allocations: deducted.Allocations,
			Quantity:    in.Quantity,
			Document:    in.Document,
			Notes:       in.Notes,
			Actor:       in.Actor,
			OccurredAt:  in.OccurredAt,
		})
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}
	return out, inbound, nil
}

// BalanceKey names one (branch, recipe) aggregate
type BalanceKey struct {
	BranchID uuid.UUID
	RecipeID uuid.UUID
}

// LockBalances locks several aggregates in (branch, recipe) order inside the caller's transaction.
// Later mutations of the same keys in that transaction reuse the held locks.
func (l *ProductLedger) LockBalances(ctx context.Context, repos txn.Repositories, at time.Time, keys ...BalanceKey) error {
	sorted := append([]BalanceKey(nil), keys...)
	sort.Slice(sorted, func(a, b int) bool {
		return keyLess(sorted[a].BranchID, sorted[a].RecipeID, sorted[b].BranchID, sorted[b].RecipeID)
	})
	for _, k := range sorted {
		if _, err := l.lockBalance(ctx, repos, k.BranchID, k.RecipeID, at); err != nil {
			return err
		}
	}
	return nil
}

func (l *ProductLedger) lockBalance(ctx context.Context, repos txn.Repositories, branchID, recipeID uuid.UUID, at time.Time) (*stock.ProductBalance, error) {
	if branchID == uuid.Nil || recipeID == uuid.Nil {
		return nil, shared.NewValidationError("Branch and recipe are required")
	}
	bal, err := repos.ProductBalances().GetForUpdate(ctx, branchID, recipeID, at)
	if err != nil {
		return nil, fmt.Errorf("lock product balance: %w", err)
	}
	return bal, nil
}

// credit inserts new lots and posts their total as one inbound movement.
// Lots must have been built from bal so their sequences come from it.
func (l *ProductLedger) credit(
	ctx context.Context,
	repos txn.Repositories,
	bal *stock.ProductBalance,
	lots []*stock.ProductLot,
	op stock.OperationType,
	doc stock.Reference,
	notes, actor string,
	at time.Time,
) (*stock.ProductMovement, error) {
	var qty int64
	for _, lot := range lots {
		if err := repos.ProductLots().Create(ctx, lot); err != nil {
			return nil, fmt.Errorf("insert product lot: %w", err)
		}
		qty += lot.Quantity
	}
	before := bal.Quantity
	if _, err := bal.Apply(qty, at); err != nil {
		return nil, err
	}
	if err := repos.ProductBalances().Update(ctx, bal); err != nil {
		return nil, fmt.Errorf("update product balance: %w", err)
	}
	m, err := stock.NewProductMovement(bal, op, qty, before, doc, notes, actor, at)
	if err != nil {
		return nil, err
	}
	if len(lots) == 1 {
		m.LotID = &lots[0].ID
	}
	if err := repos.ProductMovements().Create(ctx, m); err != nil {
		return nil, fmt.Errorf("append product movement: %w", err)
	}
	l.posted(ctx, m)
	return m, nil
}

// debit drains qty from the pair's lots in FIFO order and posts one outbound movement
func (l *ProductLedger) debit(
	ctx context.Context,
	repos txn.Repositories,
	bal *stock.ProductBalance,
	qty int64,
	op stock.OperationType,
	doc stock.Reference,
	notes, actor string,
	at time.Time,
) (*stock.ProductMovement, []stock.LotAllocation, error) {
	if err := bal.CanTake(qty); err != nil {
		l.metrics.RecordInsufficientStock(ctx, ledgerProduct, bal.BranchID)
		l.logger.Warn("Product deduction rejected",
			zap.String("branch_id", bal.BranchID.String()),
			zap.String("recipe_id", bal.RecipeID.String()),
			zap.Int64("requested", qty),
			zap.Int64("available", bal.Quantity),
			zap.String("operation", string(op)),
		)
		return nil, nil, err
	}

	lots, err := repos.ProductLots().FindAvailableFIFO(ctx, bal.BranchID, bal.RecipeID)
	if err != nil {
		return nil, nil, fmt.Errorf("load FIFO lots: %w", err)
	}
	allocations, err := stock.AllocateFIFO(lots, qty, at)
	if err != nil {
		l.logger.Error("Lot quantities out of step with balance",
			zap.String("branch_id", bal.BranchID.String()),
			zap.String("recipe_id", bal.RecipeID.String()),
			zap.Int64("balance", bal.Quantity),
		)
		return nil, nil, err
	}
	for _, lot := range lots[:len(allocations)] {
		if err := repos.ProductLots().UpdateQuantity(ctx, lot); err != nil {
			return nil, nil, fmt.Errorf("update product lot: %w", err)
		}
	}

	before := bal.Quantity
	if _, err := bal.Apply(-qty, at); err != nil {
		return nil, nil, err
	}
	if err := repos.ProductBalances().Update(ctx, bal); err != nil {
		return nil, nil, fmt.Errorf("update product balance: %w", err)
	}
	m, err := stock.NewProductMovement(bal, op, -qty, before, doc, notes, actor, at)
	if err != nil {
		return nil, nil, err
	}
	if len(allocations) == 1 {
		m.LotID = &allocations[0].LotID
	}
	if err := repos.ProductMovements().Create(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("append product movement: %w", err)
	}
	l.posted(ctx, m)
	return m, allocations, nil
}

// recordDelta applies a signed change that names no lots
func (l *ProductLedger) recordDelta(
	ctx context.Context,
	repos txn.Repositories,
	bal *stock.ProductBalance,
	delta int64,
	op stock.OperationType,
	doc stock.Reference,
	notes, actor string,
	at time.Time,
) (*stock.ProductMovement, error) {
	if delta < 0 {
		m, _, err := l.debit(ctx, repos, bal, -delta, op, doc, notes, actor, at)
		return m, err
	}
	cost := stock.LotCost{UnitCostUsd: decimal.Zero, UnitCostTjs: decimal.Zero, ExchangeRate: decimal.Zero}
	latest, err := repos.ProductLots().FindLatest(ctx, bal.BranchID, bal.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("find latest lot: %w", err)
	}
	var expiry *time.Time
	if latest != nil {
		cost = latest.Cost()
		if latest.ExpiryDate != nil {
			e := at.Add(latest.ExpiryDate.Sub(latest.ProductionDate))
			expiry = &e
		}
	}
	lot, err := stock.NewProductLot(bal, nil, at, expiry, delta, cost, at)
	if err != nil {
		return nil, err
	}
	return l.credit(ctx, repos, bal, []*stock.ProductLot{lot}, op, doc, notes, actor, at)
}

func (l *ProductLedger) posted(ctx context.Context, m *stock.ProductMovement) {
	l.metrics.RecordMovement(ctx, ledgerProduct, string(m.OperationType), m.BranchID)
	l.logger.Debug("Product movement posted",
		zap.String("movement_id", m.ID.String()),
		zap.String("branch_id", m.BranchID.String()),
		zap.String("recipe_id", m.RecipeID.String()),
		zap.Int64("quantity", m.Quantity),
		zap.Int64("balance_after", m.BalanceAfter),
	)
}

// GetBalance returns the aggregate on-hand quantity, zero for a pair never touched
func (l *ProductLedger) GetBalance(ctx context.Context, branchID, recipeID uuid.UUID) (int64, error) {
	var qty int64
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		bal, err := repos.ProductBalances().Find(ctx, branchID, recipeID)
		if err != nil {
			return err
		}
		if bal != nil {
			qty = bal.Quantity
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("find product balance: %w", err)
	}
	return qty, nil
}

// ListPositiveBalances returns the branch's aggregates with stock on hand
func (l *ProductLedger) ListPositiveBalances(ctx context.Context, branchID uuid.UUID) ([]stock.ProductBalance, error) {
	var rows []stock.ProductBalance
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, err = repos.ProductBalances().FindPositiveByBranch(ctx, branchID)
		return err
	})
	return rows, err
}

// ListLots returns the pair's lots in FIFO order
func (l *ProductLedger) ListLots(ctx context.Context, branchID, recipeID uuid.UUID, includeEmpty bool) ([]stock.ProductLot, error) {
	var rows []stock.ProductLot
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, err = repos.ProductLots().FindByPair(ctx, branchID, recipeID, includeEmpty)
		return err
	})
	return rows, err
}

// ListMovements returns the pair's movement history in posting order
func (l *ProductLedger) ListMovements(ctx context.Context, branchID, recipeID uuid.UUID, filter shared.Filter) ([]stock.ProductMovement, int64, error) {
	var (
		rows  []stock.ProductMovement
		total int64
	)
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, total, err = repos.ProductMovements().FindByPair(ctx, branchID, recipeID, filter.Normalize())
		return err
	})
	return rows, total, err
}

// MovementsByDocument lists movements posted for a document
func (l *ProductLedger) MovementsByDocument(ctx context.Context, doc stock.Reference) ([]stock.ProductMovement, error) {
	var rows []stock.ProductMovement
	err := l.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		rows, err = repos.ProductMovements().FindByDocument(ctx, doc)
		return err
	})
	return rows, err
}

// IsInsufficientStock reports whether err is an InsufficientStockError
func IsInsufficientStock(err error) bool {
	var insufficient *stock.InsufficientStockError
	return errors.As(err, &insufficient)
}
