package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the whole server configuration. Keys are read from config.toml
// and LEDGER_-prefixed environment variables, e.g. LEDGER_DATABASE_PASSWORD
// for database.password; the environment wins.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Production ProductionConfig `mapstructure:"production"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or a file path
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// RedisConfig locates the shared Redis. An empty Host disables it; the
// idempotency store then stays in memory and the outbox relays without a lease.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

// TelemetryConfig drives the OTLP exporters, the log bridge and profiling
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // host:port of the OTLP gRPC collector
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	ProfilingEnabled  bool          `mapstructure:"profiling_enabled"`
	ProfilingServer   string        `mapstructure:"profiling_server"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // statements with bound values; never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// LedgerConfig bounds the retry of serialization failures and deadlocks
type LedgerConfig struct {
	TxRetryAttempts int           `mapstructure:"tx_retry_attempts"`
	TxRetryBackoff  time.Duration `mapstructure:"tx_retry_backoff"`
}

type ProductionConfig struct {
	ShelfLifeDays int    `mapstructure:"shelf_life_days"`
	Costing       string `mapstructure:"costing"` // none, weighted_average
	// DefaultExchangeRate is TJS per USD, used while no rate is published
	DefaultExchangeRate decimal.Decimal `mapstructure:"-"`
	RateSource          string          `mapstructure:"rate_source"` // static, redis
	RateKey             string          `mapstructure:"rate_key"`
}

type OutboxConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	MaxRetries       int           `mapstructure:"max_retries"`
	LeaseTTL         time.Duration `mapstructure:"lease_ttl"`
	LeaseKey         string        `mapstructure:"lease_key"`
	CleanupRetention time.Duration `mapstructure:"cleanup_retention"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl"`
}

// defaults registers every key, including the empty ones, so that
// AutomaticEnv can override each of them during Unmarshal
var defaults = map[string]any{
	"app.name": "stockcore",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "stockcore",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.shutdown_timeout": 10 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.trusted_proxies":  []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "stockcore",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        30 * time.Second,
	"telemetry.logs_enabled":            false,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiling_server":        "",
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"ledger.tx_retry_attempts": 3,
	"ledger.tx_retry_backoff":  50 * time.Millisecond,

	"production.shelf_life_days":       0,
	"production.costing":               "none",
	"production.default_exchange_rate": "",
	"production.rate_source":           "static",
	"production.rate_key":              "",

	"outbox.enabled":           true,
	"outbox.poll_interval":     2 * time.Second,
	"outbox.batch_size":        100,
	"outbox.max_retries":       5,
	"outbox.lease_ttl":         30 * time.Second,
	"outbox.lease_key":         "ledger:outbox:relay",
	"outbox.cleanup_retention": 7 * 24 * time.Hour,
	"outbox.idempotency_ttl":   24 * time.Hour,
}

// Load reads config.toml from the working directory or /app, if present,
// applies the environment on top and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if raw := v.GetString("production.default_exchange_rate"); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("production.default_exchange_rate: %w", err)
		}
		cfg.Production.DefaultExchangeRate = rate
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	check(c.Ledger.TxRetryAttempts >= 1, "ledger.tx_retry_attempts must be at least 1")
	check(c.Outbox.BatchSize > 0, "outbox.batch_size must be positive")

	p := c.Production
	check(p.ShelfLifeDays >= 0, "production.shelf_life_days cannot be negative")
	check(p.Costing == "none" || p.Costing == "weighted_average",
		"production.costing must be none or weighted_average, got %q", p.Costing)
	check(p.RateSource == "static" || p.RateSource == "redis",
		"production.rate_source must be static or redis, got %q", p.RateSource)
	check(p.RateSource != "redis" || c.Redis.Enabled(), "production.rate_source=redis requires redis.host")
	check(!p.DefaultExchangeRate.IsNegative(), "production.default_exchange_rate cannot be negative")

	t := c.Telemetry
	check(t.SamplingRatio >= 0 && t.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0 and 1, got %g", t.SamplingRatio)
	check(!t.ProfilingEnabled || t.ProfilingServer != "",
		"telemetry.profiling_server is required when profiling is enabled")

	if c.App.Env == "production" {
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be disable in production")
		check(!t.DBLogFullSQL, "telemetry.db_log_full_sql must be off in production, statements carry bound values")
	}

	return errors.Join(problems...)
}

// DSN renders a postgres URL, escaping the credentials
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}
