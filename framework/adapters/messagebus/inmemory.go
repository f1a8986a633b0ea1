package messagebus

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
)

// InMemoryConfig конфигурация для InMemory адаптера
type InMemoryConfig struct {
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
}

// Validate проверяет корректность конфигурации
func (c InMemoryConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}

// DefaultInMemoryConfig возвращает конфигурацию InMemory по умолчанию
func DefaultInMemoryConfig() InMemoryConfig {
	return InMemoryConfig{
		BatchSize:    10,
		MaxAttempts:  5,
		PollInterval: 50 * time.Millisecond,
	}
}

// InMemoryAdapter реализация MessageBus в памяти.
// Повторяемые сообщения возвращаются в конец очереди с увеличенным номером попытки.
type InMemoryAdapter struct {
	config      InMemoryConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
	mu          sync.Mutex
	queues      map[string][]*transport.Message
	deadLetters map[string][]*transport.Message
	seq         int64
	running     bool
	cancels     []context.CancelFunc
	wg          sync.WaitGroup
}

// NewInMemoryAdapter создает новый InMemory адаптер
func NewInMemoryAdapter(config InMemoryConfig, logger *zap.Logger, m *metrics.Metrics) (*InMemoryAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inmemory config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryAdapter{
		config:      config,
		logger:      logger.Named("inmemory-bus"),
		metrics:     m,
		queues:      make(map[string][]*transport.Message),
		deadLetters: make(map[string][]*transport.Message),
		running:     true,
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) Start(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) Stop(ctx context.Context) error {
	return i.Close()
}

// Close останавливает все подписки
func (i *InMemoryAdapter) Close() error {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return nil
	}
	i.running = false
	cancels := i.cancels
	i.cancels = nil
	i.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	i.wg.Wait()
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (i *InMemoryAdapter) IsRunning() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.running
}

// Name возвращает имя компонента (реализация core.Component)
func (i *InMemoryAdapter) Name() string {
	return "inmemory-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (i *InMemoryAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Publish ставит сообщение в очередь subject
func (i *InMemoryAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.running {
		return fmt.Errorf("adapter is stopped")
	}

	i.seq++
	attempt := attemptFromHeaders(headers)
	i.queues[subject] = append(i.queues[subject], &transport.Message{
		ID:      strconv.FormatInt(i.seq, 10),
		Subject: subject,
		Data:    data,
		Headers: copyHeaders(headers, attempt),
		Attempt: attempt,
	})

	if i.metrics != nil {
		i.metrics.RecordTransport(ctx, "inmemory", "publish", true)
	}
	return nil
}

// SubscribeBatch запускает фоновую доставку пакетов из очереди subject
func (i *InMemoryAdapter) SubscribeBatch(ctx context.Context, subject string, handler transport.BatchHandler) error {
	i.mu.Lock()
	if !i.running {
		i.mu.Unlock()
		return fmt.Errorf("adapter is stopped")
	}
	subCtx, cancel := context.WithCancel(ctx)
	i.cancels = append(i.cancels, cancel)
	i.wg.Add(1)
	i.mu.Unlock()

	go func() {
		defer i.wg.Done()
		ticker := time.NewTicker(i.config.PollInterval)
		defer ticker.Stop()

		for {
			for i.DeliverBatch(subCtx, subject, handler) > 0 {
				if subCtx.Err() != nil {
					return
				}
			}
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return nil
}

// DeliverBatch синхронно доставляет один пакет обработчику и возвращает его размер
func (i *InMemoryAdapter) DeliverBatch(ctx context.Context, subject string, handler transport.BatchHandler) int {
	i.mu.Lock()
	queue := i.queues[subject]
	n := len(queue)
	if n > i.config.BatchSize {
		n = i.config.BatchSize
	}
	batch := make([]*transport.Message, n)
	copy(batch, queue[:n])
	i.queues[subject] = queue[n:]
	i.mu.Unlock()

	if n == 0 {
		return 0
	}

	result := handler(ctx, batch)
	acked, retried, dead := splitBatch(batch, result, i.config.MaxAttempts)

	i.mu.Lock()
	for _, msg := range retried {
		next := *msg
		next.Attempt = msg.Attempt + 1
		next.Headers = copyHeaders(msg.Headers, next.Attempt)
		i.queues[subject] = append(i.queues[subject], &next)
	}
	if len(dead) > 0 {
		i.deadLetters[subject] = append(i.deadLetters[subject], dead...)
	}
	i.mu.Unlock()

	for _, msg := range dead {
		i.logger.Warn("message dead-lettered",
			zap.String("subject", subject),
			zap.String("message_id", msg.ID),
			zap.Int("attempt", msg.Attempt),
		)
	}

	recordOutcome(ctx, i.metrics, "inmemory", len(acked), len(retried), len(dead))
	return n
}

// Pending возвращает количество сообщений в очереди subject
func (i *InMemoryAdapter) Pending(subject string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queues[subject])
}

// DeadLetters возвращает сообщения, исчерпавшие попытки доставки
func (i *InMemoryAdapter) DeadLetters(subject string) []*transport.Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	result := make([]*transport.Message, len(i.deadLetters[subject]))
	copy(result, i.deadLetters[subject])
	return result
}
