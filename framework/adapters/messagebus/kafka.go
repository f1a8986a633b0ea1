package messagebus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
)

// KafkaConfig конфигурация для Kafka адаптера
type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	Compression    string // none, gzip, snappy, lz4, zstd
	BatchSize      int
	BatchWait      time.Duration // сколько ждать заполнения пакета после первого сообщения
	MaxAttempts    int
	ConsumerConfig KafkaConsumerConfig
	ProducerConfig KafkaProducerConfig
	// RetryPolicy задержки между попытками переопубликовать повторы и зафиксировать смещения
	RetryPolicy *transport.ExponentialBackoffRetryPolicy
}

// Validate проверяет корректность конфигурации
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	for i, broker := range c.Brokers {
		if broker == "" {
			return fmt.Errorf("broker[%d] cannot be empty", i)
		}
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("broker[%d] must be in format host:port", i)
		}
	}
	if c.GroupID == "" {
		return fmt.Errorf("group id cannot be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	return nil
}

// KafkaConsumerConfig конфигурация для Kafka consumer
type KafkaConsumerConfig struct {
	MinBytes    int
	MaxBytes    int
	MaxWait     time.Duration
	StartOffset int64 // -2 (earliest), -1 (latest)
}

// KafkaProducerConfig конфигурация для Kafka producer
type KafkaProducerConfig struct {
	RequiredAcks int // 0, 1, -1 (all)
	MaxAttempts  int
}

// DefaultKafkaConfig возвращает конфигурацию Kafka по умолчанию
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:     []string{"localhost:9092"},
		GroupID:     "stockflow-allocator",
		Compression: "snappy",
		BatchSize:   10,
		BatchWait:   200 * time.Millisecond,
		MaxAttempts: 5,
		ConsumerConfig: KafkaConsumerConfig{
			MinBytes:    1,
			MaxBytes:    10e6, // 10MB
			MaxWait:     1 * time.Second,
			StartOffset: kafka.FirstOffset,
		},
		ProducerConfig: KafkaProducerConfig{
			RequiredAcks: -1, // all
			MaxAttempts:  3,
		},
		RetryPolicy: transport.DefaultRetryPolicy(),
	}
}

// kafkaReader часть kafka.Reader, используемая подпиской
type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaWriter часть kafka.Writer, используемая адаптером
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAdapter реализация MessageBus через Kafka.
// Kafka не умеет подтверждать отдельные сообщения, поэтому повторы
// публикуются заново с увеличенным x-attempt, после чего смещение фиксируется.
type KafkaAdapter struct {
	config  KafkaConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	writer  kafkaWriter
	readers map[string]kafkaReader
	mu      sync.RWMutex
	running bool
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafkaAdapter создает новый Kafka адаптер
func NewKafkaAdapter(config KafkaConfig, logger *zap.Logger, m *metrics.Metrics) (*KafkaAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RetryPolicy == nil {
		config.RetryPolicy = transport.DefaultRetryPolicy()
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequiredAcks(config.ProducerConfig.RequiredAcks),
		MaxAttempts:            config.ProducerConfig.MaxAttempts,
		Compression:            getCompression(config.Compression),
		AllowAutoTopicCreation: true,
	}

	return &KafkaAdapter{
		config:  config,
		logger:  logger.Named("kafka-bus"),
		metrics: m,
		writer:  writer,
		readers: make(map[string]kafkaReader),
		running: true,
	}, nil
}

// getCompression преобразует строку в kafka.Compression
func getCompression(compression string) kafka.Compression {
	switch compression {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

// Start запускает адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) Stop(ctx context.Context) error {
	return k.Close()
}

// Close закрывает readers и writer
func (k *KafkaAdapter) Close() error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	k.running = false
	for _, cancel := range k.cancels {
		cancel()
	}
	k.cancels = nil
	for topic, reader := range k.readers {
		_ = reader.Close()
		delete(k.readers, topic)
	}
	k.mu.Unlock()

	k.wg.Wait()
	return k.writer.Close()
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (k *KafkaAdapter) IsRunning() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.running
}

// Name возвращает имя компонента (реализация core.Component)
func (k *KafkaAdapter) Name() string {
	return "kafka-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (k *KafkaAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Publish публикует сообщение в топик
func (k *KafkaAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	err := k.writer.WriteMessages(ctx, toKafkaMessage(subject, data, headers))
	if k.metrics != nil {
		k.metrics.RecordTransport(ctx, "kafka", "publish", err == nil)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func toKafkaMessage(topic string, data []byte, headers map[string]string) kafka.Message {
	msg := kafka.Message{
		Topic: topic,
		Value: data,
	}
	if key, ok := headers[transport.HeaderPartitionKey]; ok {
		msg.Key = []byte(key)
	}
	if len(headers) > 0 {
		msg.Headers = make([]kafka.Header, 0, len(headers))
		for k, v := range headers {
			msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
	}
	return msg
}

func fromKafkaMessage(msg kafka.Message) *transport.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &transport.Message{
		ID:      fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
		Subject: msg.Topic,
		Data:    msg.Value,
		Headers: headers,
		Attempt: attemptFromHeaders(headers),
	}
}

// SubscribeBatch читает топик пакетами в рамках consumer group
func (k *KafkaAdapter) SubscribeBatch(ctx context.Context, subject string, handler transport.BatchHandler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.config.Brokers,
		Topic:       subject,
		GroupID:     k.config.GroupID,
		MinBytes:    k.config.ConsumerConfig.MinBytes,
		MaxBytes:    k.config.ConsumerConfig.MaxBytes,
		MaxWait:     k.config.ConsumerConfig.MaxWait,
		StartOffset: k.config.ConsumerConfig.StartOffset,
	})

	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		_ = reader.Close()
		return fmt.Errorf("adapter is stopped")
	}
	subCtx, cancel := context.WithCancel(ctx)
	k.cancels = append(k.cancels, cancel)
	k.readers[subject] = reader
	k.wg.Add(1)
	k.mu.Unlock()

	go func() {
		defer k.wg.Done()
		k.consume(subCtx, reader, subject, handler)
	}()

	return nil
}

// consume читает пакеты до отмены контекста или закрытия reader
func (k *KafkaAdapter) consume(ctx context.Context, reader kafkaReader, subject string, handler transport.BatchHandler) {
	for {
		batch, err := k.fetchBatch(ctx, reader)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) || errors.Is(err, io.EOF) {
				return
			}
			k.logger.Error("failed to fetch messages", zap.String("topic", subject), zap.Error(err))
			if !sleepContext(ctx, time.Second) {
				return
			}
			continue
		}
		if err := k.handleBatch(ctx, reader, subject, batch, handler); err != nil {
			// смещения не зафиксированы: пакет будет доставлен заново после перезапуска
			k.logger.Warn("subscription stopped with unsettled batch", zap.String("topic", subject), zap.Error(err))
			return
		}
	}
}

// fetchBatch блокируется до первого сообщения, затем добирает пакет не дольше BatchWait
func (k *KafkaAdapter) fetchBatch(ctx context.Context, reader kafkaReader) ([]kafka.Message, error) {
	first, err := reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []kafka.Message{first}

	fillCtx, cancel := context.WithTimeout(ctx, k.config.BatchWait)
	defer cancel()
	for len(batch) < k.config.BatchSize {
		msg, err := reader.FetchMessage(fillCtx)
		if err != nil {
			break
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

func (k *KafkaAdapter) handleBatch(ctx context.Context, reader kafkaReader, topic string, batch []kafka.Message, handler transport.BatchHandler) error {
	msgs := make([]*transport.Message, len(batch))
	for i, m := range batch {
		msgs[i] = fromKafkaMessage(m)
	}

	result := handler(ctx, msgs)
	acked, retried, dead := splitBatch(msgs, result, k.config.MaxAttempts)

	republish := make([]kafka.Message, 0, len(retried)+len(dead))
	for _, msg := range retried {
		republish = append(republish, toKafkaMessage(topic, msg.Data, copyHeaders(msg.Headers, msg.Attempt+1)))
	}
	for _, msg := range dead {
		headers := copyHeaders(msg.Headers, msg.Attempt)
		headers[HeaderDeadLetterReason] = "max delivery attempts exceeded"
		republish = append(republish, toKafkaMessage(topic+DeadLetterSuffix, msg.Data, headers))
		k.logger.Warn("message dead-lettered",
			zap.String("topic", topic),
			zap.String("message_id", msg.ID),
			zap.Int("attempt", msg.Attempt),
		)
	}

	for attempt := 1; ; attempt++ {
		err := k.settle(ctx, reader, republish, batch)
		if err == nil {
			break
		}
		k.logger.Error("failed to settle batch",
			zap.String("topic", topic),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if !sleepContext(ctx, k.config.RetryPolicy.GetDelay(attempt)) {
			return err
		}
	}

	recordOutcome(ctx, k.metrics, "kafka", len(acked), len(retried), len(dead))
	return nil
}

// settle публикует повторы и DLQ, затем фиксирует смещения пакета.
// Повторная публикация после частичного сбоя дает дубликаты, которые обработчик поглощает.
func (k *KafkaAdapter) settle(ctx context.Context, reader kafkaReader, republish, batch []kafka.Message) error {
	if len(republish) > 0 {
		if err := k.writer.WriteMessages(ctx, republish...); err != nil {
			return fmt.Errorf("failed to republish retries: %w", err)
		}
	}
	if err := reader.CommitMessages(ctx, batch...); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}
