package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics records stock ledger activity.
// A nil *LedgerMetrics is valid and records nothing, so services can run without metrics wired.
type LedgerMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	movementsTotal         *Counter
	insufficientStockTotal *Counter
	txRetriesTotal         *Counter
	batchesCompletedTotal  *Counter
	transfersReceivedTotal *Counter
	adjustmentsTotal       *Counter

	outboxBacklog *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	outboxProvider OutboxMetricsProvider
}

// OutboxMetricsProvider reports outbox entry counts for the backlog gauge
type OutboxMetricsProvider interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// LedgerMetricsConfig holds configuration for ledger metrics.
type LedgerMetricsConfig struct {
	Meter          metric.Meter
	Logger         *zap.Logger
	OutboxProvider OutboxMetricsProvider
}

// NewLedgerMetrics creates a new LedgerMetrics instance.
func NewLedgerMetrics(cfg LedgerMetricsConfig) (*LedgerMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	lm := &LedgerMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		outboxProvider: cfg.OutboxProvider,
	}

	counters := []struct {
		target **Counter
		name   string
		desc   string
		unit   string
	}{
		{&lm.movementsTotal, "stock_ledger_movements_total", "Total number of ledger movements posted", "{movements}"},
		{&lm.insufficientStockTotal, "stock_ledger_insufficient_stock_total", "Deductions rejected for insufficient stock", "{rejections}"},
		{&lm.txRetriesTotal, "stock_ledger_tx_retries_total", "Transactions retried after a retryable storage failure", "{retries}"},
		{&lm.batchesCompletedTotal, "stock_production_batches_completed_total", "Production batches completed", "{batches}"},
		{&lm.transfersReceivedTotal, "stock_transfers_received_total", "Transfers received", "{transfers}"},
		{&lm.adjustmentsTotal, "stock_inventory_adjustments_total", "Adjustments posted by inventory counts", "{adjustments}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	lm.outboxBacklog, err = NewGauge(cfg.Meter, "stock_outbox_entries", "Outbox entries by status", "{entries}")
	if err != nil {
		return nil, err
	}

	return lm, nil
}

// RecordMovement counts one posted ledger movement
func (lm *LedgerMetrics) RecordMovement(ctx context.Context, ledger, movementType string, branchID uuid.UUID) {
	if lm == nil {
		return
	}
	lm.movementsTotal.Inc(ctx,
		AttrLedger.String(ledger),
		AttrMovementType.String(movementType),
		AttrBranchID.String(branchID.String()),
	)
}

// RecordInsufficientStock counts a rejected deduction
func (lm *LedgerMetrics) RecordInsufficientStock(ctx context.Context, ledger string, branchID uuid.UUID) {
	if lm == nil {
		return
	}
	lm.insufficientStockTotal.Inc(ctx,
		AttrLedger.String(ledger),
		AttrBranchID.String(branchID.String()),
	)
}

// RecordTxRetry counts a transaction retry
func (lm *LedgerMetrics) RecordTxRetry(ctx context.Context) {
	if lm == nil {
		return
	}
	lm.txRetriesTotal.Inc(ctx)
}

// RecordBatchCompleted counts a completed production batch
func (lm *LedgerMetrics) RecordBatchCompleted(ctx context.Context, branchID uuid.UUID) {
	if lm == nil {
		return
	}
	lm.batchesCompletedTotal.Inc(ctx, AttrBranchID.String(branchID.String()))
}

// RecordTransferReceived counts a received transfer
func (lm *LedgerMetrics) RecordTransferReceived(ctx context.Context, transferType string, branchID uuid.UUID) {
	if lm == nil {
		return
	}
	lm.transfersReceivedTotal.Inc(ctx,
		AttrTransferType.String(transferType),
		AttrBranchID.String(branchID.String()),
	)
}

// RecordAdjustments counts adjustments posted by one inventory completion
func (lm *LedgerMetrics) RecordAdjustments(ctx context.Context, inventoryType string, branchID uuid.UUID, n int) {
	if lm == nil || n == 0 {
		return
	}
	lm.adjustmentsTotal.Add(ctx, int64(n),
		AttrInventoryType.String(inventoryType),
		AttrBranchID.String(branchID.String()),
	)
}

// StartPeriodicCollection samples the outbox backlog every interval (default: 1 minute).
// It is non-blocking; use Stop to end collection.
func (lm *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if lm == nil {
		return
	}
	lm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go lm.runPeriodicCollection(ctx, interval)
	})
}

func (lm *LedgerMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lm.collectOutboxMetrics(ctx)

	for {
		select {
		case <-lm.stopChan:
			lm.logger.Info("Stopping periodic ledger metrics collection")
			return
		case <-ctx.Done():
			lm.logger.Info("Context cancelled, stopping periodic ledger metrics collection")
			return
		case <-ticker.C:
			lm.collectOutboxMetrics(ctx)
		}
	}
}

func (lm *LedgerMetrics) collectOutboxMetrics(ctx context.Context) {
	if lm.outboxProvider == nil {
		lm.logger.Debug("No outbox provider configured, skipping outbox metrics collection")
		return
	}
	counts, err := lm.outboxProvider.CountByStatus(ctx)
	if err != nil {
		lm.logger.Warn("Failed to count outbox entries", zap.Error(err))
		return
	}
	for status, n := range counts {
		lm.outboxBacklog.Record(ctx, n, AttrOutboxStatus.String(status))
	}
}

// Stop stops the periodic collection.
func (lm *LedgerMetrics) Stop() {
	if lm == nil {
		return
	}
	lm.stopOnce.Do(func() {
		close(lm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
