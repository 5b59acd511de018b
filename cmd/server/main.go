package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/stockcore/internal/application/ledger"
	productionapp "github.com/erp/stockcore/internal/application/production"
	stocktakingapp "github.com/erp/stockcore/internal/application/stocktaking"
	transferapp "github.com/erp/stockcore/internal/application/transfer"
	"github.com/erp/stockcore/internal/domain/production"
	"github.com/erp/stockcore/internal/infrastructure/cache"
	"github.com/erp/stockcore/internal/infrastructure/config"
	"github.com/erp/stockcore/internal/infrastructure/event"
	"github.com/erp/stockcore/internal/infrastructure/logger"
	"github.com/erp/stockcore/internal/infrastructure/persistence"
	"github.com/erp/stockcore/internal/infrastructure/telemetry"
	"github.com/erp/stockcore/internal/interfaces/http/handler"
	"github.com/erp/stockcore/internal/interfaces/http/middleware"
	"github.com/erp/stockcore/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewFromConfig(cfg.App.Env, cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Telemetry first so the remaining components pick up the global providers
	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	log = providers.WrapLogger(log)

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry), log)

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithTracing(dbTracing),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		stats := db.Stats()
		log.Info("Closing database",
			zap.Int("open_connections", stats.OpenConnections),
			zap.Int64("wait_count", stats.WaitCount),
			zap.Duration("wait_duration", stats.WaitDuration),
		)
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis is optional; without it the relay runs unleased and rates stay static
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("host", cfg.Redis.Host), zap.Int("db", cfg.Redis.DB))
	}

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	serializer := event.NewLedgerEventSerializer()

	metrics, err := telemetry.NewLedgerMetrics(telemetry.LedgerMetricsConfig{
		Meter:          providers.MeterFor("stockcore/ledger"),
		Logger:         log,
		OutboxProvider: outboxCounts{repo: outboxRepo},
	})
	if err != nil {
		log.Fatal("Failed to initialize ledger metrics", zap.Error(err))
	}
	if cfg.Telemetry.MetricsEnabled {
		metrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer metrics.Stop()
	}

	scope := persistence.NewGormTransactionScope(db.DB,
		persistence.WithOutbox(event.NewOutboxPublisher(serializer)),
		persistence.WithRetry(persistence.RetryConfig{
			MaxAttempts: cfg.Ledger.TxRetryAttempts,
			Backoff:     cfg.Ledger.TxRetryBackoff,
		}),
		persistence.WithScopeLogger(log),
		persistence.WithScopeMetrics(metrics),
	)

	// Event bus fed by the outbox relay
	eventBus := event.NewInMemoryEventBus(log)
	audit := event.NewAuditLogHandler(log)
	eventBus.Subscribe(event.NewIdempotentHandler(audit, cache.NewIdempotencyStore(redisClient, log), log,
		event.WithHandlerName("audit"),
		event.WithIdempotencyConfig(event.IdempotencyConfig{Enabled: true, TTL: cfg.Outbox.IdempotencyTTL}),
	), audit.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Outbox.Enabled {
		var opts []event.OutboxProcessorOption
		if redisClient != nil {
			opts = append(opts, event.WithLease(event.NewRedisLease(redisClient, cfg.Outbox.LeaseKey, cfg.Outbox.LeaseTTL)))
		}
		processorConfig := event.DefaultOutboxProcessorConfig()
		processorConfig.BatchSize = cfg.Outbox.BatchSize
		processorConfig.PollInterval = cfg.Outbox.PollInterval
		processorConfig.CleanupRetention = cfg.Outbox.CleanupRetention

		processor := event.NewOutboxProcessor(outboxRepo, eventBus, serializer, processorConfig, log, opts...)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := processor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", processorConfig.BatchSize),
			zap.Duration("poll_interval", processorConfig.PollInterval),
			zap.Bool("leased", redisClient != nil),
		)
	}

	// Application services
	recipes := persistence.NewGormRecipeDirectory(db.DB)
	ingredients := ledger.NewIngredientLedger(scope, log, metrics)
	products := ledger.NewProductLedger(scope, log, metrics)
	documents := ledger.NewDocumentService(scope, ingredients, log)
	engine := productionapp.NewEngine(scope, recipes, exchangeRates(cfg.Production, redisClient), ingredients, products,
		productionapp.Config{
			ShelfLifeDays: cfg.Production.ShelfLifeDays,
			Costing:       production.CostingPolicy(cfg.Production.Costing),
		}, log, metrics)
	transfers := transferapp.NewEngine(scope, ingredients, products, log, metrics)
	reconciler := stocktakingapp.NewReconciler(scope, ingredients, products, log, metrics)

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	httpEngine := gin.New()
	if err := httpEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	httpMetrics, err := middleware.HTTPMetrics(providers.MeterFor("stockcore/http"))
	if err != nil {
		log.Fatal("Failed to initialize HTTP metrics", zap.Error(err))
	}

	httpEngine.Use(middleware.RequestID())
	httpEngine.Use(logger.Recovery(log))
	httpEngine.Use(logger.GinMiddleware(log))
	httpEngine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Enabled:        providers.Tracer != nil,
		TracerProvider: providers.Tracer,
	}))
	httpEngine.Use(middleware.Actor(true))
	httpEngine.Use(middleware.SpanEnricher())
	httpEngine.Use(httpMetrics)
	httpEngine.Use(middleware.Profiling(cfg.Telemetry.ProfilingEnabled))
	httpEngine.Use(middleware.BodyLimit(middleware.DefaultBodyLimit))

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router.Mount(router.NewRouter(httpEngine), router.Handlers{
		Documents:   handler.NewDocumentHandler(documents),
		Ingredients: handler.NewIngredientHandler(ingredients),
		Products:    handler.NewProductHandler(products),
		Recipes:     handler.NewRecipeHandler(recipes),
		Batches:     handler.NewBatchHandler(engine),
		Transfers:   handler.NewTransferHandler(transfers),
		Inventories: handler.NewInventoryHandler(reconciler),
		System:      handler.NewSystemHandler(cfg.App.Name, version, checks),
	}).Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

// exchangeRates picks the rate source production batches stamp on completion
func exchangeRates(cfg config.ProductionConfig, client *redis.Client) production.ExchangeRateProvider {
	if cfg.RateSource == "redis" && client != nil {
		return cache.NewRedisExchangeRateProvider(client, cfg.RateKey, cfg.DefaultExchangeRate)
	}
	return cache.NewStaticExchangeRateProvider(cfg.DefaultExchangeRate)
}

// outboxCounts adapts the outbox repository to the backlog gauge
type outboxCounts struct {
	repo *event.GormOutboxRepository
}

func (o outboxCounts) CountByStatus(ctx context.Context) (map[string]int64, error) {
	counts, err := o.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(counts))
	for status, n := range counts {
		out[string(status)] = n
	}
	return out, nil
}
