package messagebus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
)

// RedisConfig конфигурация для Redis адаптера
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	PoolSize      int
	MaxRetries    int
	StreamMaxLen  int64 // Максимальная длина stream (0 = без ограничений)
	ConsumerGroup string
	BlockTimeout  time.Duration
	BatchSize     int
	MaxAttempts   int
	// VisibilityTimeout время, после которого неподтвержденное сообщение забирается повторно
	VisibilityTimeout time.Duration
}

// Validate проверяет корректность конфигурации
func (c RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("consumer group cannot be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.VisibilityTimeout <= 0 {
		return fmt.Errorf("visibility timeout must be positive")
	}
	return nil
}

// DefaultRedisConfig возвращает конфигурацию Redis по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:              "localhost:6379",
		PoolSize:          10,
		MaxRetries:        3,
		StreamMaxLen:      10000,
		ConsumerGroup:     "stockflow-allocator",
		BlockTimeout:      2 * time.Second,
		BatchSize:         10,
		MaxAttempts:       5,
		VisibilityTimeout: 30 * time.Second,
	}
}

// redisStreamClient команды Redis, используемые адаптером
type redisStreamClient interface {
	redis.StreamCmdable
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisAdapter реализация MessageBus через Redis Streams.
// Повторяемые сообщения остаются в PEL и забираются XAUTOCLAIM после VisibilityTimeout.
type RedisAdapter struct {
	config  RedisConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	client  redisStreamClient
	mu      sync.RWMutex
	running bool
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// NewRedisAdapter создает новый Redis адаптер
func NewRedisAdapter(config RedisConfig, logger *zap.Logger, m *metrics.Metrics) (*RedisAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		PoolSize:   config.PoolSize,
		MaxRetries: config.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisAdapter{
		config:  config,
		logger:  logger.Named("redis-bus"),
		metrics: m,
		client:  client,
		running: true,
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) Stop(ctx context.Context) error {
	return r.Close()
}

// Close останавливает подписки и закрывает клиента
func (r *RedisAdapter) Close() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	r.wg.Wait()
	return r.client.Close()
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (r *RedisAdapter) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Name возвращает имя компонента (реализация core.Component)
func (r *RedisAdapter) Name() string {
	return "redis-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (r *RedisAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// HealthCheck проверяет доступность Redis
func (r *RedisAdapter) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Publish публикует сообщение в stream (XADD)
func (r *RedisAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	err := r.xadd(ctx, subject, data, headers)
	if r.metrics != nil {
		r.metrics.RecordTransport(ctx, "redis", "publish", err == nil)
	}
	return err
}

func (r *RedisAdapter) xadd(ctx context.Context, stream string, data []byte, headers map[string]string) error {
	values := map[string]interface{}{"data": string(data)}
	if len(headers) > 0 {
		headersJSON, err := json.Marshal(headers)
		if err != nil {
			return fmt.Errorf("failed to marshal headers: %w", err)
		}
		values["headers"] = string(headersJSON)
	}

	args := redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if r.config.StreamMaxLen > 0 {
		args.MaxLen = r.config.StreamMaxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, &args).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// SubscribeBatch читает stream пакетами через consumer group
func (r *RedisAdapter) SubscribeBatch(ctx context.Context, subject string, handler transport.BatchHandler) error {
	err := r.client.XGroupCreateMkStream(ctx, subject, r.config.ConsumerGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("adapter is stopped")
	}
	subCtx, cancel := context.WithCancel(ctx)
	r.cancels = append(r.cancels, cancel)
	r.wg.Add(1)
	r.mu.Unlock()

	consumer := "consumer-" + uuid.NewString()

	go func() {
		defer r.wg.Done()
		for subCtx.Err() == nil {
			msgs, err := r.nextBatch(subCtx, subject, consumer)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				r.logger.Error("failed to read stream", zap.String("stream", subject), zap.Error(err))
				if !sleepContext(subCtx, time.Second) {
					return
				}
				continue
			}
			if len(msgs) == 0 {
				continue
			}
			r.handleBatch(subCtx, subject, msgs, handler)
		}
	}()

	return nil
}

// nextBatch сначала забирает просроченные pending сообщения, затем читает новые
func (r *RedisAdapter) nextBatch(ctx context.Context, stream, consumer string) ([]*transport.Message, error) {
	claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    r.config.ConsumerGroup,
		Consumer: consumer,
		MinIdle:  r.config.VisibilityTimeout,
		Start:    "0-0",
		Count:    int64(r.config.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to autoclaim: %w", err)
	}
	if len(claimed) > 0 {
		return r.withDeliveryCounts(ctx, stream, claimed)
	}

	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    r.config.ConsumerGroup,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    int64(r.config.BatchSize),
		Block:    r.config.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var msgs []*transport.Message
	for _, s := range streams {
		for _, m := range s.Messages {
			msgs = append(msgs, fromStreamMessage(stream, m, 1))
		}
	}
	return msgs, nil
}

// withDeliveryCounts получает число доставок каждого забранного сообщения из PEL.
// Запрос идет по одному id: в диапазоне могут быть чужие pending записи.
func (r *RedisAdapter) withDeliveryCounts(ctx context.Context, stream string, claimed []redis.XMessage) ([]*transport.Message, error) {
	msgs := make([]*transport.Message, 0, len(claimed))
	for _, m := range claimed {
		pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: stream,
			Group:  r.config.ConsumerGroup,
			Start:  m.ID,
			End:    m.ID,
			Count:  1,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read pending entry %s: %w", m.ID, err)
		}

		attempt := 1
		if len(pending) == 1 && pending[0].ID == m.ID && pending[0].RetryCount > 1 {
			attempt = int(pending[0].RetryCount)
		}
		msgs = append(msgs, fromStreamMessage(stream, m, attempt))
	}
	return msgs, nil
}

func fromStreamMessage(stream string, m redis.XMessage, attempt int) *transport.Message {
	msg := &transport.Message{
		ID:      m.ID,
		Subject: stream,
		Headers: make(map[string]string),
		Attempt: attempt,
	}
	if data, ok := m.Values["data"].(string); ok {
		msg.Data = []byte(data)
	}
	if headersStr, ok := m.Values["headers"].(string); ok {
		_ = json.Unmarshal([]byte(headersStr), &msg.Headers)
	}
	return msg
}

func (r *RedisAdapter) handleBatch(ctx context.Context, stream string, msgs []*transport.Message, handler transport.BatchHandler) {
	result := handler(ctx, msgs)
	acked, retried, dead := splitBatch(msgs, result, r.config.MaxAttempts)

	ackIDs := make([]string, 0, len(acked)+len(dead))
	for _, msg := range acked {
		ackIDs = append(ackIDs, msg.ID)
	}
	for _, msg := range dead {
		headers := copyHeaders(msg.Headers, msg.Attempt)
		headers[HeaderDeadLetterReason] = "max delivery attempts exceeded"
		if err := r.xadd(ctx, stream+DeadLetterSuffix, msg.Data, headers); err != nil {
			// остается в PEL и будет забрано повторно
			r.logger.Error("failed to dead-letter message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		r.logger.Warn("message dead-lettered",
			zap.String("stream", stream),
			zap.String("message_id", msg.ID),
			zap.Int("attempt", msg.Attempt),
		)
		ackIDs = append(ackIDs, msg.ID)
	}

	if len(ackIDs) > 0 {
		if err := r.client.XAck(ctx, stream, r.config.ConsumerGroup, ackIDs...).Err(); err != nil {
			r.logger.Error("failed to ack messages", zap.String("stream", stream), zap.Error(err))
		}
	}

	recordOutcome(ctx, r.metrics, "redis", len(acked), len(retried), len(dead))
}
