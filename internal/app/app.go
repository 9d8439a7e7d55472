// Package app wires the checkout BFF together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/032-extremist/redcart-checkout/internal/commerce"
	"github.com/032-extremist/redcart-checkout/internal/config"
	"github.com/032-extremist/redcart-checkout/internal/event"
	handler "github.com/032-extremist/redcart-checkout/internal/handler/http"
	"github.com/032-extremist/redcart-checkout/internal/orchestrator"
	"github.com/032-extremist/redcart-checkout/internal/repository"
	"github.com/032-extremist/redcart-checkout/internal/repository/memory"
	"github.com/032-extremist/redcart-checkout/internal/repository/postgres"
	"github.com/032-extremist/redcart-checkout/internal/repository/postgres/migrations"
	"github.com/032-extremist/redcart-checkout/internal/repository/redis"
	"github.com/032-extremist/redcart-checkout/internal/service"
	"github.com/032-extremist/redcart-checkout/pkg/database"
	"github.com/032-extremist/redcart-checkout/pkg/health"
	"github.com/032-extremist/redcart-checkout/pkg/httpclient"
	pkgkafka "github.com/032-extremist/redcart-checkout/pkg/kafka"
	"github.com/032-extremist/redcart-checkout/pkg/middleware"
	"github.com/032-extremist/redcart-checkout/pkg/tracing"
)

// ServiceName tags logs, traces and metrics.
const ServiceName = "checkout-bff"

// purgeInterval is how often expired PostgreSQL rows are removed. Redis and
// the memory store expire entries on their own.
const purgeInterval = 10 * time.Minute

// App wires together all dependencies and runs the checkout BFF.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	deps           *Deps
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// Deps are the long-lived resources shared by the BFF and the CLI.
type Deps struct {
	Store    repository.StateRepository
	Commerce *commerce.Client
	Events   orchestrator.EventPublisher
	Service  *service.CheckoutService

	pool     *pgxpool.Pool
	redis    *goredis.Client
	producer *pkgkafka.Producer
	purger   *postgres.StateRepository
}

// NewDeps opens the state store, the commerce client and the event producer
// configured by cfg.
func NewDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{}

	store, err := d.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	d.Store = store

	// Commerce API client with retries for reads and a circuit breaker.
	baseClient := httpclient.New(cfg.HTTPClient())
	cbCfg := cfg.CircuitBreaker()
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger).
		WithFallback(commerce.CircuitOpenFallback)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.Uint64("max_requests", uint64(cbCfg.MaxRequests)),
		slog.Int("timeout_seconds", cfg.CBTimeout),
		slog.Uint64("min_requests", uint64(cbCfg.MinRequests)),
	)
	d.Commerce = commerce.NewClient(cfg.CommerceAPIURL, cbClient, cfg.CommerceTimeout(), logger)

	if cfg.KafkaEnabled {
		d.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		d.Events = event.NewProducer(d.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		d.Events = event.Noop{}
	}

	d.Service = service.NewCheckoutService(
		d.Store,
		d.Commerce.Orders(),
		d.Commerce.Payments(),
		d.Commerce.Cart(),
		d.Events,
		logger,
		cfg.ActionLockTTL(),
	)
	return d, nil
}

func (d *Deps) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.StateRepository, error) {
	switch cfg.StateStore {
	case config.StoreRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		d.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
		return redis.NewStateRepository(client, cfg.StateTTL()), nil

	case config.StorePostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, ServiceName); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}
		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
		if cfg.SlowQueryThresholdMs > 0 {
			database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
		}
		d.pool = pool
		d.purger = postgres.NewStateRepository(pool, cfg.StateTTL())
		return d.purger, nil

	default:
		logger.Warn("using in-memory checkout state; state is lost on restart and not shared between replicas")
		return memory.NewStateRepository(cfg.StateTTL()), nil
	}
}

// RegisterHealth adds the store and broker checks to h.
func (d *Deps) RegisterHealth(h *health.Handler) {
	h.RegisterCritical("state_store", d.Store.Ping)
	if d.producer != nil {
		h.RegisterNonCritical("kafka", d.producer.Ping)
	}
}

// ErrPurgeUnsupported is returned by PurgeExpired for stores that expire
// entries on their own.
var ErrPurgeUnsupported = errors.New("state store expires entries itself")

// PurgeExpired deletes expired checkout states from PostgreSQL.
func (d *Deps) PurgeExpired(ctx context.Context) (int64, error) {
	if d.purger == nil {
		return 0, ErrPurgeUnsupported
	}
	return d.purger.PurgeExpired(ctx)
}

// Close releases the producer and store connections.
func (d *Deps) Close() error {
	var errs []error
	if d.producer != nil {
		if err := d.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka producer: %w", err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	return errors.Join(errs...)
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	deps, err := NewDeps(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Health checks.
	healthHandler := health.NewHandler()
	deps.RegisterHealth(healthHandler)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	// HTTP router.
	router := handler.NewRouter(deps.Service, healthHandler, logger, corsCfg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
			slog.String("commerce_api", a.cfg.CommerceAPIURL),
			slog.String("state_store", a.cfg.StateStore),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if a.deps.purger != nil {
		go a.purgeLoop(ctx)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// purgeLoop deletes expired checkout states until ctx is canceled.
func (a *App) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.deps.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("purge expired checkout states failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("purged expired checkout states", slog.Int64("rows", n))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer and state store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests. Actions may be waiting on the commerce API.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.CommerceTimeout()+5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer and the state store.
	if err := a.deps.Close(); err != nil {
		a.logger.Error("dependency close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
