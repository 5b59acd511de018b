package telemetry

import (
	"errors"
	"time"

	"github.com/erp/stockcore/internal/infrastructure/config"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool          // Enable database tracing
	LogFullSQL      bool          // Include query variables in spans (dev only)
	SlowQueryThresh time.Duration // Threshold for marking queries as slow
	DBSystem        string        // Database system name
	// TracerProvider overrides the global provider, mainly for tests
	TracerProvider trace.TracerProvider
}

// DBTracingConfigFrom maps the telemetry section of the application config
func DBTracingConfigFrom(cfg config.TelemetryConfig) DBTracingConfig {
	thresh := cfg.DBSlowQueryThresh
	if thresh == 0 {
		thresh = 200 * time.Millisecond
	}
	return DBTracingConfig{
		Enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		LogFullSQL:      cfg.DBLogFullSQL,
		SlowQueryThresh: thresh,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin wraps otelgorm with ledger specific span annotations:
// slow query events, row lock detection and lock conflict marking.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

const queryStartKey = "ledger_trace:start"

// RegisterOtelGorm installs otelgorm and the annotation callbacks on db.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	cb := db.Callback()
	registrations := []func() error{
		func() error {
			return cb.Create().Before("gorm:create").Register("ledger_trace:before_create", p.before)
		},
		func() error { return cb.Query().Before("gorm:query").Register("ledger_trace:before_query", p.before) },
		func() error {
			return cb.Update().Before("gorm:update").Register("ledger_trace:before_update", p.before)
		},
		func() error {
			return cb.Delete().Before("gorm:delete").Register("ledger_trace:before_delete", p.before)
		},
		func() error { return cb.Row().Before("gorm:row").Register("ledger_trace:before_row", p.before) },
		func() error { return cb.Raw().Before("gorm:raw").Register("ledger_trace:before_raw", p.before) },
		func() error {
			return cb.Create().After("gorm:create").Before("otel:after_create").Register("ledger_trace:after_create", p.after)
		},
		func() error {
			return cb.Query().After("gorm:query").Before("otel:after_query").Register("ledger_trace:after_query", p.after)
		},
		func() error {
			return cb.Update().After("gorm:update").Before("otel:after_update").Register("ledger_trace:after_update", p.after)
		},
		func() error {
			return cb.Delete().After("gorm:delete").Before("otel:after_delete").Register("ledger_trace:after_delete", p.after)
		},
		func() error {
			return cb.Row().After("gorm:row").Before("otel:after_row").Register("ledger_trace:after_row", p.after)
		},
		func() error {
			return cb.Raw().After("gorm:raw").Before("otel:after_raw").Register("ledger_trace:after_raw", p.after)
		},
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

// after runs between the statement and otelgorm closing its span
func (p *DBTracingPlugin) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if _, locked := db.Statement.Clauses["FOR"]; locked {
		span.SetAttributes(attribute.Bool("db.row_lock", true))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		var pgErr *pgconn.PgError
		if errors.As(db.Error, &pgErr) {
			span.SetAttributes(attribute.String("db.sqlstate", pgErr.Code))
			switch pgErr.Code {
			case "40001", "40P01", "55P03":
				span.SetAttributes(attribute.Bool("db.lock_conflict", true))
			}
		}
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if v, ok := db.InstanceGet(queryStartKey); ok {
		elapsed := time.Since(v.(time.Time))
		if p.config.SlowQueryThresh > 0 && elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}
