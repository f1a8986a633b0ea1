package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/adapters/messagebus"
	"github.com/akriventsev/stockflow/framework/adapters/rest"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/observability"
	"github.com/akriventsev/stockflow/internal/config"
	"github.com/akriventsev/stockflow/internal/inventory/application"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/eventlog"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/httpapi"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/memory"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/postgres"
)

type stores interface {
	application.AllocationStore
	application.StockStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := observability.NewTracingManager(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	if err := tracing.Start(ctx); err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer shutdown(logger, "tracing", tracing.Stop)

	m, meterProvider, err := setupMetrics(cfg)
	if err != nil {
		return err
	}
	if meterProvider != nil {
		defer shutdown(logger, "metrics", func(ctx context.Context) error {
			return metrics.ShutdownMetrics(ctx, meterProvider)
		})
	}

	health := observability.NewHealthRegistry()

	var pool *pgxpool.Pool
	if cfg.StorageDriver == config.StoragePostgres || cfg.EventStoreDriver == config.StoragePostgres {
		pool, err = postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	var store stores
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgStore := postgres.NewStore(pool, logger)
		health.RegisterComponent("postgres", pgStore)
		store = pgStore
	default:
		store = memory.NewStore()
	}

	events, closeEvents, err := newEventStore(ctx, cfg, pool, health)
	if err != nil {
		return err
	}
	defer shutdown(logger, "event store", closeEvents)
	appender := eventlog.NewAppender(events, logger, m)

	bus, err := messagebus.NewBus(cfg.Bus, logger, m)
	if err != nil {
		return fmt.Errorf("failed to create message bus: %w", err)
	}
	health.RegisterComponent("message_bus", bus)
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("failed to close message bus", zap.Error(err))
		}
	}()

	worker := application.NewAllocateOrderStockWorker(store, appender, logger, m, tracing.Tracer())
	controller, err := application.NewOrderCreatedBatchController(worker, cfg.Batch, logger, m)
	if err != nil {
		return err
	}
	if err := bus.SubscribeBatch(ctx, cfg.OrderCreatedSubject, controller.Handler()); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.OrderCreatedSubject, err)
	}

	service := application.NewInventoryService(store, store, appender, bus, cfg.OrderCreatedSubject, logger)

	gin.SetMode(gin.ReleaseMode)
	routerOpts := httpapi.RouterOptions{
		ServiceName: cfg.ServiceName,
		Health:      health,
		Metrics:     m,
	}
	if cfg.Metrics.Enabled {
		routerOpts.MetricsHandler = metrics.Handler()
	}
	router, err := httpapi.NewRouter(ctx, httpapi.NewHandler(service, logger), routerOpts)
	if err != nil {
		return err
	}

	server, err := rest.NewServer(cfg.HTTP, router, logger)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("service started",
		zap.String("storage", cfg.StorageDriver),
		zap.String("event_store", cfg.EventStoreDriver),
		zap.String("bus", cfg.Bus.Driver),
		zap.String("subject", cfg.OrderCreatedSubject))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdown(logger, "http server", server.Stop)
	return nil
}

func setupMetrics(cfg *config.Config) (*metrics.Metrics, *sdkmetric.MeterProvider, error) {
	if !cfg.Metrics.Enabled {
		m, err := metrics.NewMetrics()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		return m, nil, nil
	}

	provider, err := metrics.SetupMetrics(&metrics.MetricsConfig{
		ExporterType:  "prometheus",
		ResourceAttrs: map[string]string{"service.name": cfg.ServiceName},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup metrics: %w", err)
	}
	m, err := metrics.NewMetricsWithProvider(provider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	return m, provider, nil
}

func newEventStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, health *observability.HealthRegistry) (eventstore.EventStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.EventStoreDriver {
	case config.StoragePostgres:
		store, err := eventstore.NewPostgresEventStore(pool, eventstore.DefaultPostgresEventStoreConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create postgres event store: %w", err)
		}
		health.RegisterComponent("postgres_event_store", store)
		return store, noop, nil
	case config.StorageMongoDB:
		store, err := eventstore.NewMongoDBEventStore(ctx, cfg.MongoDB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create mongodb event store: %w", err)
		}
		health.RegisterComponent("mongodb", store)
		return store, store.Stop, nil
	case config.StorageMemory:
		return eventstore.NewInMemoryEventStore(), noop, nil
	default:
		return nil, nil, errors.New("unknown event store driver: " + cfg.EventStoreDriver)
	}
}

func shutdown(logger *zap.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("failed to stop component", zap.String("component", name), zap.Error(err))
	}
}
