// Package config загружает конфигурацию сервиса из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akriventsev/stockflow/framework/adapters/messagebus"
	"github.com/akriventsev/stockflow/framework/adapters/rest"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/framework/observability"
	"github.com/akriventsev/stockflow/internal/inventory/application"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/postgres"
)

// Драйверы хранилищ
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongoDB  = "mongodb"
)

// Config конфигурация сервиса
type Config struct {
	ServiceName string
	HTTP        rest.ServerConfig
	Logging     observability.LoggingConfig
	Tracing     observability.TracingConfig
	Metrics     MetricsConfig

	StorageDriver    string
	EventStoreDriver string
	Postgres         postgres.Config
	MongoDB          eventstore.MongoDBEventStoreConfig

	Bus                 messagebus.BusConfig
	OrderCreatedSubject string
	Batch               application.BatchControllerConfig
}

// MetricsConfig включение экспорта метрик
type MetricsConfig struct {
	Enabled bool
}

// Load читает конфигурацию из окружения и проверяет ее
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "stockflow"),
		HTTP:        rest.DefaultServerConfig(),
		Logging:     observability.DefaultLoggingConfig(),
		Postgres:    postgres.DefaultConfig(),
		MongoDB:     eventstore.DefaultMongoDBEventStoreConfig(),
		Bus:         messagebus.DefaultBusConfig(),
		Batch:       application.DefaultBatchControllerConfig(),
	}

	var err error
	if cfg.HTTP.Port, err = getEnvInt("HTTP_PORT", cfg.HTTP.Port); err != nil {
		return nil, err
	}

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.ServiceName = cfg.ServiceName

	exporter := getEnv("TRACING_EXPORTER", "none")
	cfg.Tracing = observability.TracingConfig{
		Enabled:          exporter != "none",
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   getEnv("SERVICE_VERSION", "dev"),
		Exporter:         exporter,
		ExporterEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		SamplingRate:     1.0,
		Environment:      getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Metrics.Enabled, err = getEnvBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}

	cfg.StorageDriver = getEnv("STORAGE_DRIVER", StorageMemory)
	cfg.EventStoreDriver = getEnv("EVENT_STORE_DRIVER", cfg.StorageDriver)
	cfg.Postgres.DSN = getEnv("DATABASE_URL", "")
	cfg.MongoDB.URI = getEnv("MONGODB_URI", cfg.MongoDB.URI)
	cfg.MongoDB.Database = getEnv("MONGODB_DATABASE", cfg.MongoDB.Database)

	cfg.OrderCreatedSubject = getEnv("ORDER_CREATED_SUBJECT", "orders.created")
	if err := loadBus(cfg); err != nil {
		return nil, err
	}

	if cfg.Batch.Concurrency, err = getEnvInt("BATCH_CONCURRENCY", cfg.Batch.Concurrency); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadBus(cfg *Config) error {
	cfg.Bus.Driver = getEnv("BUS_DRIVER", cfg.Bus.Driver)

	batchSize, err := getEnvInt("BATCH_SIZE", cfg.Bus.InMemory.BatchSize)
	if err != nil {
		return err
	}
	maxAttempts, err := getEnvInt("MAX_DELIVERY_ATTEMPTS", cfg.Bus.InMemory.MaxAttempts)
	if err != nil {
		return err
	}
	visibility, err := getEnvDuration("VISIBILITY_TIMEOUT", cfg.Bus.Redis.VisibilityTimeout)
	if err != nil {
		return err
	}

	cfg.Bus.InMemory.BatchSize = batchSize
	cfg.Bus.InMemory.MaxAttempts = maxAttempts

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Bus.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Bus.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Bus.Kafka.GroupID)
	cfg.Bus.Kafka.BatchSize = batchSize
	cfg.Bus.Kafka.MaxAttempts = maxAttempts

	cfg.Bus.Redis.Addr = getEnv("REDIS_ADDR", cfg.Bus.Redis.Addr)
	cfg.Bus.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Bus.Redis.BatchSize = batchSize
	cfg.Bus.Redis.MaxAttempts = maxAttempts
	cfg.Bus.Redis.VisibilityTimeout = visibility

	cfg.Bus.NATS.URL = getEnv("NATS_URL", cfg.Bus.NATS.URL)
	cfg.Bus.NATS.BatchSize = batchSize
	cfg.Bus.NATS.MaxAttempts = maxAttempts
	cfg.Bus.NATS.AckWait = visibility
	return nil
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	switch c.StorageDriver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver: %s", c.StorageDriver)
	}
	switch c.EventStoreDriver {
	case StorageMemory, StoragePostgres:
	case StorageMongoDB:
		if err := c.MongoDB.Validate(); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
	default:
		return fmt.Errorf("unknown event store driver: %s", c.EventStoreDriver)
	}
	if c.StorageDriver == StoragePostgres || c.EventStoreDriver == StoragePostgres {
		if err := c.Postgres.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if c.OrderCreatedSubject == "" {
		return fmt.Errorf("order created subject cannot be empty")
	}
	if err := c.Bus.Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
