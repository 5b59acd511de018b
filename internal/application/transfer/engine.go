package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/stockcore/internal/application/ledger"
	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine moves stock between branches in two phases: send deducts the sender,
// receive credits the receiver with what actually arrived.
type Engine struct {
	scope       txn.Scope
	ingredients *ledger.IngredientLedger
	products    *ledger.ProductLedger
	logger      *zap.Logger
	metrics     *telemetry.LedgerMetrics
}

// NewEngine creates a transfer Engine
func NewEngine(scope txn.Scope, ingredients *ledger.IngredientLedger, products *ledger.ProductLedger, logger *zap.Logger, metrics *telemetry.LedgerMetrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{scope: scope, ingredients: ingredients, products: products, logger: logger, metrics: metrics}
}

// CreateTransfer records a transfer in Created status; there is no ledger effect
func (e *Engine) CreateTransfer(ctx context.Context, in CreateTransferInput) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_engine", "create")
	defer span.End()

	if in.OccurredAt.IsZero() {
		return nil, shared.NewValidationError("occurredAt is required")
	}
	t, err := transfer.NewTransfer(in.SenderBranchID, in.ReceiverBranchID, in.Type, in.Items, in.Notes, in.Actor, in.OccurredAt)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrTransferID, t.ID.String())

	err = e.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		return repos.Transfers().Create(ctx, t)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Transfer created",
		zap.String("transfer_id", t.ID.String()),
		zap.String("sender_branch_id", t.SenderBranchID.String()),
		zap.String("receiver_branch_id", t.ReceiverBranchID.String()),
		zap.String("type", string(t.Type)),
		zap.Int("items", len(t.Items)),
	)
	return t, nil
}

// SendTransfer deducts every item from the sender, all or nothing, and moves the transfer InTransit.
// Product items keep the lots they consumed so the receiver can recreate them.
func (e *Engine) SendTransfer(ctx context.Context, id uuid.UUID, actor string, occurredAt time.Time) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_engine", "send")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTransferID, id.String())

	t, err := e.mutate(ctx, id, actor, occurredAt, func(ctx context.Context, repos txn.Repositories, t *transfer.Transfer) error {
		if err := t.CheckCanSend(); err != nil {
			return err
		}
		ref := stock.NewReference(stock.ReferenceTransfer, t.ID)

		var ingredients []ledger.ApplyMovementInput
		var productKeys []ledger.BalanceKey
		for _, item := range t.Items {
			if item.Item.IsIngredient() {
				ingredients = append(ingredients, ledger.ApplyMovementInput{
					BranchID:     t.SenderBranchID,
					IngredientID: item.Item.ID,
					Quantity:     item.QuantitySent.Neg(),
					Unit:         item.Unit,
					Type:         stock.MovementTransferOut,
					Reference:    ref,
					Notes:        t.Notes,
					Actor:        actor,
					OccurredAt:   occurredAt,
				})
				continue
			}
			productKeys = append(productKeys, ledger.BalanceKey{BranchID: t.SenderBranchID, RecipeID: item.Item.ID})
		}

		if len(ingredients) > 0 {
			if _, err := e.ingredients.ApplyMovements(ctx, ingredients); err != nil {
				return err
			}
		}
		if len(productKeys) > 0 {
			if err := e.products.LockBalances(ctx, repos, occurredAt, productKeys...); err != nil {
				return err
			}
			for i := range t.Items {
				item := &t.Items[i]
				if !item.Item.IsProduct() {
					continue
				}
				res, err := e.products.Deduct(ctx, ledger.DeductInput{
					BranchID:   t.SenderBranchID,
					RecipeID:   item.Item.ID,
					Quantity:   item.WholeUnits(),
					Operation:  stock.OperationTransferOut,
					Document:   ref,
					Notes:      t.Notes,
					Actor:      actor,
					OccurredAt: occurredAt,
				})
				if err != nil {
					return err
				}
				item.Allocations = res.Allocations
			}
		}
		return t.MarkSent(actor, occurredAt)
	})
	if err != nil {
		if ledger.IsInsufficientStock(err) {
			e.logger.Warn("Transfer send rolled back", zap.String("transfer_id", id.String()), zap.Error(err))
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Transfer sent", zap.String("transfer_id", t.ID.String()), zap.String("actor", actor))
	return t, nil
}

// ReceiveTransfer records received quantities and credits the receiver with what arrived
func (e *Engine) ReceiveTransfer(ctx context.Context, in ReceiveTransferInput) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_engine", "receive")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTransferID, in.TransferID.String())

	t, err := e.mutate(ctx, in.TransferID, in.Actor, in.OccurredAt, func(ctx context.Context, repos txn.Repositories, t *transfer.Transfer) error {
		if err := t.RecordReceipts(in.Received); err != nil {
			return err
		}
		ref := stock.NewReference(stock.ReferenceTransfer, t.ID)

		costs, err := e.sentCosts(ctx, repos, t, ref)
		if err != nil {
			return err
		}

		var ingredients []ledger.ApplyMovementInput
		var productKeys []ledger.BalanceKey
		for _, item := range t.Items {
			received := *item.QuantityReceived
			if received.IsZero() {
				continue
			}
			if item.Item.IsIngredient() {
				mv := ledger.ApplyMovementInput{
					BranchID:     t.ReceiverBranchID,
					IngredientID: item.Item.ID,
					Quantity:     received,
					Unit:         item.Unit,
					Type:         stock.MovementTransferIn,
					Reference:    ref,
					Notes:        t.Notes,
					Actor:        in.Actor,
					OccurredAt:   in.OccurredAt,
				}
				if cost, ok := costs[item.Item.ID]; ok && cost.IsPositive() {
					mv.UnitCostUsd = &cost
				}
				ingredients = append(ingredients, mv)
				continue
			}
			productKeys = append(productKeys, ledger.BalanceKey{BranchID: t.ReceiverBranchID, RecipeID: item.Item.ID})
		}

		if len(ingredients) > 0 {
			if _, err := e.ingredients.ApplyMovements(ctx, ingredients); err != nil {
				return err
			}
		}
		if len(productKeys) > 0 {
			if err := e.products.LockBalances(ctx, repos, in.OccurredAt, productKeys...); err != nil {
				return err
			}
			for _, item := range t.Items {
				received := item.QuantityReceived.IntPart()
				if !item.Item.IsProduct() || received == 0 {
					continue
				}
				if _, _, err := e.products.ReceiveLots(ctx, ledger.ReceiveLotsInput{
					BranchID:    t.ReceiverBranchID,
					RecipeID:    item.Item.ID,
					Allocations: item.Allocations,
					Quantity:    received,
					Document:    ref,
					Notes:       t.Notes,
					Actor:       in.Actor,
					OccurredAt:  in.OccurredAt,
				}); err != nil {
					return err
				}
			}
		}
		return t.MarkReceived(in.Actor, in.OccurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	e.metrics.RecordTransferReceived(ctx, string(t.Type), t.ReceiverBranchID)
	e.logger.Info("Transfer received",
		zap.String("transfer_id", t.ID.String()),
		zap.String("total_discrepancy", t.TotalDiscrepancy().String()),
		zap.String("actor", in.Actor),
	)
	return t, nil
}

// CancelTransfer abandons a transfer that was never sent
func (e *Engine) CancelTransfer(ctx context.Context, id uuid.UUID, reason, actor string, occurredAt time.Time) (*transfer.Transfer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "transfer_engine", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTransferID, id.String())

	t, err := e.mutate(ctx, id, actor, occurredAt, func(ctx context.Context, repos txn.Repositories, t *transfer.Transfer) error {
		return t.Cancel(reason, actor, occurredAt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Transfer cancelled", zap.String("transfer_id", t.ID.String()), zap.String("reason", reason))
	return t, nil
}

// GetTransfer returns a transfer with its items
func (e *Engine) GetTransfer(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	var t *transfer.Transfer
	err := e.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		t, err = repos.Transfers().FindByID(ctx, id)
		return err
	})
	return t, err
}

// ListTransfers lists transfers sent or received by a branch
func (e *Engine) ListTransfers(ctx context.Context, branchID uuid.UUID, status transfer.Status, filter shared.Filter) ([]transfer.Transfer, int64, error) {
	var (
		transfers []transfer.Transfer
		total     int64
	)
	err := e.scope.Query(ctx, func(ctx context.Context, repos txn.Repositories) error {
		var err error
		transfers, total, err = repos.Transfers().FindByBranch(ctx, branchID, status, filter)
		return err
	})
	return transfers, total, err
}

// sentCosts returns the sender's average cost per ingredient as recorded on the TransferOut movements
func (e *Engine) sentCosts(ctx context.Context, repos txn.Repositories, t *transfer.Transfer, ref stock.Reference) (map[uuid.UUID]decimal.Decimal, error) {
	if t.Type != stock.CategoryRawMaterials {
		return nil, nil
	}
	movements, err := repos.IngredientMovements().FindByReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load transfer movements: %w", err)
	}
	costs := make(map[uuid.UUID]decimal.Decimal, len(movements))
	for _, m := range movements {
		if m.MovementType == stock.MovementTransferOut && m.BranchID == t.SenderBranchID {
			costs[m.IngredientID] = m.UnitCostUsd
		}
	}
	return costs, nil
}

func (e *Engine) mutate(
	ctx context.Context,
	id uuid.UUID,
	actor string,
	occurredAt time.Time,
	fn func(ctx context.Context, repos txn.Repositories, t *transfer.Transfer) error,
) (*transfer.Transfer, error) {
	if actor == "" {
		return nil, shared.NewValidationError("actor is required")
	}
	if occurredAt.IsZero() {
		return nil, shared.NewValidationError("occurredAt is required")
	}

	var result *transfer.Transfer
	err := e.scope.Execute(ctx, func(ctx context.Context, repos txn.Repositories) error {
		t, err := repos.Transfers().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, repos, t); err != nil {
			return err
		}
		if err := repos.Transfers().Update(ctx, t); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		if err := repos.Events().Record(ctx, t.GetDomainEvents()...); err != nil {
			return fmt.Errorf("record transfer events: %w", err)
		}
		t.ClearDomainEvents()
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
