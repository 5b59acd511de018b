package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/stockcore/internal/application/txn"
	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/domain/shared"
	"github.com/erp/stockcore/internal/domain/stock"
	"github.com/erp/stockcore/internal/domain/stocktaking"
	"github.com/erp/stockcore/internal/domain/transfer"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgreSQL error codes the scope retries
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// RetryConfig bounds how the outermost transaction is retried
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryConfig returns the retry settings used when none are configured
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Backoff: 50 * time.Millisecond}
}

// OutboxWriter stores domain events through an open transaction
type OutboxWriter interface {
	PublishWithTx(ctx context.Context, tx *gorm.DB, events ...shared.DomainEvent) error
}

type txKey struct{}

// txFromContext returns the transaction carried by ctx, if any
func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// conn returns the transaction in ctx or falls back to db
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// IsRetryable reports whether err is a transient PostgreSQL concurrency failure
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}

// GormTransactionScope implements txn.Scope using GORM transactions.
// The transaction travels in the context so nested scopes join it.
type GormTransactionScope struct {
	db      *gorm.DB
	outbox  OutboxWriter
	retry   RetryConfig
	logger  *zap.Logger
	metrics *telemetry.LedgerMetrics
}

// ScopeOption configures a GormTransactionScope
type ScopeOption func(*GormTransactionScope)

// WithOutbox routes Repositories.Events() into the outbox writer
func WithOutbox(w OutboxWriter) ScopeOption {
	return func(s *GormTransactionScope) { s.outbox = w }
}

// WithRetry overrides the retry settings
func WithRetry(cfg RetryConfig) ScopeOption {
	return func(s *GormTransactionScope) {
		if cfg.MaxAttempts > 0 {
			s.retry = cfg
		}
	}
}

// WithScopeLogger sets the logger used for retry warnings
func WithScopeLogger(l *zap.Logger) ScopeOption {
	return func(s *GormTransactionScope) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithScopeMetrics records retries on the ledger metrics
func WithScopeMetrics(m *telemetry.LedgerMetrics) ScopeOption {
	return func(s *GormTransactionScope) { s.metrics = m }
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...ScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{
		db:     db,
		retry:  DefaultRetryConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction.
// When ctx already carries a transaction fn joins it and no retry happens here;
// the outermost Execute owns commit, rollback and retry.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, repos txn.Repositories) error) error {
	if tx, ok := txFromContext(ctx); ok {
		return fn(ctx, s.repositories(tx))
	}

	var err error
	for attempt := 1; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(ctx, txKey{}, tx), s.repositories(tx))
		})
		if err == nil || !IsRetryable(err) || attempt >= s.retry.MaxAttempts {
			return err
		}

		s.metrics.RecordTxRetry(ctx)
		s.logger.Warn("retrying transaction",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(s.retry.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Query runs fn with repositories bound to the ambient transaction, or to the
// plain connection pool when there is none.
func (s *GormTransactionScope) Query(ctx context.Context, fn func(ctx context.Context, repos txn.Repositories) error) error {
	return fn(ctx, s.repositories(conn(ctx, s.db.WithContext(ctx))))
}

func (s *GormTransactionScope) repositories(db *gorm.DB) *gormRepositories {
	return &gormRepositories{db: db, outbox: s.outbox}
}

// gormRepositories provides access to all repositories bound to one connection.
type gormRepositories struct {
	db     *gorm.DB
	outbox OutboxWriter
}

func (r *gormRepositories) IngredientStocks() stock.IngredientStockRepository {
	return NewGormIngredientStockRepository(r.db)
}

func (r *gormRepositories) IngredientMovements() stock.IngredientMovementRepository {
	return NewGormIngredientMovementRepository(r.db)
}

func (r *gormRepositories) ProductBalances() stock.ProductBalanceRepository {
	return NewGormProductBalanceRepository(r.db)
}

func (r *gormRepositories) ProductLots() stock.ProductLotRepository {
	return NewGormProductLotRepository(r.db)
}

func (r *gormRepositories) ProductMovements() stock.ProductMovementRepository {
	return NewGormProductMovementRepository(r.db)
}

func (r *gormRepositories) StockDocuments() stock.StockDocumentRepository {
	return NewGormStockDocumentRepository(r.db)
}

func (r *gormRepositories) Batches() production.BatchRepository {
	return NewGormBatchRepository(r.db)
}

func (r *gormRepositories) Transfers() transfer.Repository {
	return NewGormTransferRepository(r.db)
}

func (r *gormRepositories) Inventories() stocktaking.Repository {
	return NewGormInventoryRepository(r.db)
}

func (r *gormRepositories) Events() shared.EventRecorder {
	return &outboxRecorder{db: r.db, outbox: r.outbox}
}

// outboxRecorder hands events to the outbox writer on the bound connection.
// Without a writer events are dropped.
type outboxRecorder struct {
	db     *gorm.DB
	outbox OutboxWriter
}

func (r *outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if r.outbox == nil || len(events) == 0 {
		return nil
	}
	return r.outbox.PublishWithTx(ctx, r.db, events...)
}

var (
	_ txn.Scope        = (*GormTransactionScope)(nil)
	_ txn.Repositories = (*gormRepositories)(nil)
)
