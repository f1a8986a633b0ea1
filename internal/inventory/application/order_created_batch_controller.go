package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

// Результаты обработки записи пакета
const (
	RecordProcessed = "processed"
	RecordDropped   = "dropped"
	RecordRetry     = "retry"
)

// BatchControllerConfig конфигурация контроллера
type BatchControllerConfig struct {
	// Concurrency число записей пакета, обрабатываемых одновременно
	Concurrency int
}

// Validate проверяет конфигурацию
func (c BatchControllerConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	return nil
}

// DefaultBatchControllerConfig возвращает конфигурацию по умолчанию
func DefaultBatchControllerConfig() BatchControllerConfig {
	return BatchControllerConfig{Concurrency: 4}
}

// OrderCreatedBatchController обрабатывает пакет уведомлений ORDER_CREATED
// и возвращает на повтор только записи с повторяемой ошибкой
type OrderCreatedBatchController struct {
	allocator Allocator
	config    BatchControllerConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewOrderCreatedBatchController создает контроллер
func NewOrderCreatedBatchController(allocator Allocator, config BatchControllerConfig, logger *zap.Logger, m *metrics.Metrics) (*OrderCreatedBatchController, error) {
	if allocator == nil {
		return nil, errors.New("allocator is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch controller config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderCreatedBatchController{
		allocator: allocator,
		config:    config,
		logger:    logger.Named("order-created-batch"),
		metrics:   m,
	}, nil
}

// Handler возвращает обработчик для подписки на шину
func (c *OrderCreatedBatchController) Handler() transport.BatchHandler {
	return c.ProcessBatch
}

// ProcessBatch обрабатывает каждую запись независимо. Все записи пакета
// обрабатываются; результат одной записи не влияет на другие.
func (c *OrderCreatedBatchController) ProcessBatch(ctx context.Context, records []*transport.Message) transport.BatchResult {
	results := make([]string, len(records))

	var g errgroup.Group
	g.SetLimit(c.config.Concurrency)
	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			results[i] = c.processRecord(ctx, record)
			return nil
		})
	}
	_ = g.Wait()

	var retryIDs []string
	for i, result := range results {
		if c.metrics != nil {
			c.metrics.RecordBatchRecord(ctx, result)
		}
		if result == RecordRetry {
			retryIDs = append(retryIDs, records[i].ID)
		}
	}

	c.logger.Debug("batch processed",
		zap.Int("records", len(records)),
		zap.Int("retry", len(retryIDs)))
	return transport.BatchResult{RetryIDs: retryIDs}
}

func (c *OrderCreatedBatchController) processRecord(ctx context.Context, record *transport.Message) (result string) {
	if record == nil {
		return RecordDropped
	}
	logger := c.logger.With(zap.String("message_id", record.ID), zap.Int("attempt", record.Attempt))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("record processing panicked", zap.Any("panic", r))
			result = RecordRetry
		}
	}()

	parsed := domain.ParseOrderCreatedEnvelope(record.Data)
	if parsed.IsErr() {
		logger.Info("record dropped", zap.Error(parsed.Err()))
		return RecordDropped
	}

	allocated := c.allocator.Allocate(ctx, parsed.Value())
	return classifyRecord(logger, allocated)
}

func classifyRecord(logger *zap.Logger, r core.Result[struct{}]) string {
	switch {
	case r.IsOk():
		return RecordProcessed
	case r.IsFailureTransient():
		logger.Warn("record will be redelivered", zap.Error(r.Err()))
		return RecordRetry
	default:
		logger.Info("record failed permanently",
			zap.String("kind", string(r.Failure().Kind)),
			zap.Error(r.Err()))
		return RecordDropped
	}
}
