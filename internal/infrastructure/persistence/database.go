package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/stockcore/internal/infrastructure/config"
	"github.com/erp/stockcore/internal/infrastructure/persistence/models"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database is the ledger's PostgreSQL handle. DB is used by the repositories
// and the transaction scope; the pool is kept for health checks and stats.
type Database struct {
	DB   *gorm.DB
	pool *sql.DB
}

type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger  logger.Interface
	tracing *telemetry.DBTracingPlugin
}

// WithGormLogger replaces the silent default logger
func WithGormLogger(l logger.Interface) DatabaseOption {
	return func(o *databaseOptions) { o.logger = l }
}

// WithTracing registers the otelgorm plugin once the connection is open
func WithTracing(p *telemetry.DBTracingPlugin) DatabaseOption {
	return func(o *databaseOptions) { o.tracing = p }
}

// NewDatabase opens the pool described by cfg and pings it. Default
// transactions are skipped because every ledger write runs inside an explicit
// transaction scope.
func NewDatabase(cfg *config.DatabaseConfig, opts ...DatabaseOption) (*Database, error) {
	o := databaseOptions{logger: logger.Default.LogMode(logger.Silent)}
	for _, opt := range opts {
		opt(&o)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if o.tracing != nil {
		if err := o.tracing.RegisterOtelGorm(gdb); err != nil {
			return nil, fmt.Errorf("register tracing plugin: %w", err)
		}
	}

	db, err := wrapDatabase(gdb)
	if err != nil {
		return nil, err
	}
	db.pool.SetMaxOpenConns(cfg.MaxOpenConns)
	db.pool.SetMaxIdleConns(cfg.MaxIdleConns)
	db.pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	db.pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := db.pool.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func wrapDatabase(gdb *gorm.DB) (*Database, error) {
	pool, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("underlying sql.DB: %w", err)
	}
	return &Database{DB: gdb, pool: pool}, nil
}

// AutoMigrate creates or updates every ledger table on db. Deployments run
// the SQL migrations instead; tests and local runs use this.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error { return d.pool.PingContext(ctx) }

func (d *Database) Stats() sql.DBStats { return d.pool.Stats() }

func (d *Database) Close() error { return d.pool.Close() }
