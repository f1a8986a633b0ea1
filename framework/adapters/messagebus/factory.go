package messagebus

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
)

// Поддерживаемые драйверы шины
const (
	DriverInMemory = "inmemory"
	DriverKafka    = "kafka"
	DriverRedis    = "redis"
	DriverNATS     = "nats"
)

// BusConfig конфигурация шины: драйвер и настройки каждого адаптера
type BusConfig struct {
	Driver   string
	InMemory InMemoryConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	NATS     NATSConfig
}

// DefaultBusConfig возвращает конфигурацию шины по умолчанию (в памяти)
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Driver:   DriverInMemory,
		InMemory: DefaultInMemoryConfig(),
		Kafka:    DefaultKafkaConfig(),
		Redis:    DefaultRedisConfig(),
		NATS:     DefaultNATSConfig(),
	}
}

// Validate валидирует конфигурацию выбранного драйвера
func (c BusConfig) Validate() error {
	switch c.Driver {
	case DriverInMemory:
		return c.InMemory.Validate()
	case DriverKafka:
		return c.Kafka.Validate()
	case DriverRedis:
		return c.Redis.Validate()
	case DriverNATS:
		return c.NATS.Validate()
	default:
		return fmt.Errorf("unknown message bus type: %s", c.Driver)
	}
}

// NewBus создает MessageBus адаптер по имени драйвера
func NewBus(config BusConfig, logger *zap.Logger, m *metrics.Metrics) (transport.MessageBus, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s bus config: %w", config.Driver, err)
	}

	var (
		bus transport.MessageBus
		err error
	)
	switch config.Driver {
	case DriverInMemory:
		bus, err = NewInMemoryAdapter(config.InMemory, logger, m)
	case DriverKafka:
		bus, err = NewKafkaAdapter(config.Kafka, logger, m)
	case DriverRedis:
		bus, err = NewRedisAdapter(config.Redis, logger, m)
	case DriverNATS:
		bus, err = NewNATSAdapter(config.NATS, logger, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter: %w", config.Driver, err)
	}
	return bus, nil
}
