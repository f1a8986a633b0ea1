package messagebus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
)

// NATSConfig конфигурация для NATS JetStream адаптера
type NATSConfig struct {
	URL               string
	MaxReconnects     int
	ReconnectWait     time.Duration
	ConnectionTimeout time.Duration
	Token             string
	Username          string
	Password          string
	StreamName        string
	Durable           string
	BatchSize         int
	FetchWait         time.Duration
	MaxAttempts       int
	AckWait           time.Duration
	RetryPolicy       *transport.ExponentialBackoffRetryPolicy
}

// Validate проверяет корректность конфигурации
func (c NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(c.URL, "nats://") && !strings.HasPrefix(c.URL, "tls://") {
		return fmt.Errorf("URL must start with nats:// or tls://")
	}
	if c.StreamName == "" {
		return fmt.Errorf("stream name cannot be empty")
	}
	if c.Durable == "" {
		return fmt.Errorf("durable name cannot be empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.FetchWait <= 0 {
		return fmt.Errorf("fetch wait must be positive")
	}
	return nil
}

// DefaultNATSConfig возвращает конфигурацию NATS по умолчанию
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:               "nats://localhost:4222",
		MaxReconnects:     10,
		ReconnectWait:     2 * time.Second,
		ConnectionTimeout: 5 * time.Second,
		StreamName:        "STOCKFLOW",
		Durable:           "stockflow-allocator",
		BatchSize:         10,
		FetchWait:         2 * time.Second,
		MaxAttempts:       5,
		AckWait:           30 * time.Second,
		RetryPolicy:       transport.DefaultRetryPolicy(),
	}
}

// NATSAdapter реализация MessageBus через NATS JetStream pull-подписки
type NATSAdapter struct {
	config  NATSConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	conn    *nats.Conn
	js      nats.JetStreamContext
	subs    map[string]*nats.Subscription
	mu      sync.RWMutex
	running bool
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// NewNATSAdapter создает новый NATS JetStream адаптер
func NewNATSAdapter(config NATSConfig, logger *zap.Logger, m *metrics.Metrics) (*NATSAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid nats config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RetryPolicy == nil {
		config.RetryPolicy = transport.DefaultRetryPolicy()
	}

	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.Timeout(config.ConnectionTimeout),
	}
	if config.Token != "" {
		opts = append(opts, nats.Token(config.Token))
	}
	if config.Username != "" && config.Password != "" {
		opts = append(opts, nats.UserInfo(config.Username, config.Password))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSAdapter{
		config:  config,
		logger:  logger.Named("nats-bus"),
		metrics: m,
		conn:    conn,
		js:      js,
		subs:    make(map[string]*nats.Subscription),
		running: true,
	}, nil
}

// Start запускает адаптер (реализация core.Lifecycle)
func (n *NATSAdapter) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = true
	return nil
}

// Stop останавливает адаптер (реализация core.Lifecycle)
func (n *NATSAdapter) Stop(ctx context.Context) error {
	return n.Close()
}

// Close останавливает подписки и закрывает соединение
func (n *NATSAdapter) Close() error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	cancels := n.cancels
	n.cancels = nil
	n.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	n.wg.Wait()

	n.mu.Lock()
	for subject, sub := range n.subs {
		_ = sub.Unsubscribe()
		delete(n.subs, subject)
	}
	n.mu.Unlock()

	n.conn.Close()
	return nil
}

// IsRunning проверяет, запущен ли адаптер (реализация core.Lifecycle)
func (n *NATSAdapter) IsRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.running && n.conn.IsConnected()
}

// Name возвращает имя компонента (реализация core.Component)
func (n *NATSAdapter) Name() string {
	return "nats-adapter"
}

// Type возвращает тип компонента (реализация core.Component)
func (n *NATSAdapter) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}

// Publish публикует сообщение в JetStream
func (n *NATSAdapter) Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range headers {
		msg.Header.Set(k, v)
	}

	_, err := n.js.PublishMsg(msg, nats.Context(ctx))
	if n.metrics != nil {
		n.metrics.RecordTransport(ctx, "nats", "publish", err == nil)
	}
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// ensureStream создает stream для subject, если он еще не существует
func (n *NATSAdapter) ensureStream(subject string) error {
	_, err := n.js.StreamInfo(n.config.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	_, err = n.js.AddStream(&nats.StreamConfig{
		Name:     n.config.StreamName,
		Subjects: []string{subject, subject + DeadLetterSuffix},
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// SubscribeBatch создает durable pull-подписку и обрабатывает сообщения пакетами
func (n *NATSAdapter) SubscribeBatch(ctx context.Context, subject string, handler transport.BatchHandler) error {
	if err := n.ensureStream(subject); err != nil {
		return err
	}

	sub, err := n.js.PullSubscribe(subject, n.config.Durable,
		nats.BindStream(n.config.StreamName),
		nats.ManualAck(),
		nats.AckWait(n.config.AckWait),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		_ = sub.Unsubscribe()
		return fmt.Errorf("adapter is stopped")
	}
	subCtx, cancel := context.WithCancel(ctx)
	n.cancels = append(n.cancels, cancel)
	n.subs[subject] = sub
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		for subCtx.Err() == nil {
			fetchCtx, cancel := context.WithTimeout(subCtx, n.config.FetchWait)
			fetched, err := sub.Fetch(n.config.BatchSize, nats.Context(fetchCtx))
			cancel()
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				n.logger.Error("failed to fetch messages", zap.String("subject", subject), zap.Error(err))
				if !sleepContext(subCtx, time.Second) {
					return
				}
				continue
			}
			n.handleBatch(subCtx, subject, fetched, handler)
		}
	}()

	return nil
}

// natsAcker подтверждение отдельного сообщения JetStream
type natsAcker interface {
	Ack(opts ...nats.AckOpt) error
	NakWithDelay(delay time.Duration, opts ...nats.AckOpt) error
	Term(opts ...nats.AckOpt) error
}

func (n *NATSAdapter) handleBatch(ctx context.Context, subject string, fetched []*nats.Msg, handler transport.BatchHandler) {
	msgs := make([]*transport.Message, 0, len(fetched))
	ackers := make(map[string]natsAcker, len(fetched))

	for _, m := range fetched {
		msg := &transport.Message{
			Subject: m.Subject,
			Data:    m.Data,
			Headers: make(map[string]string),
			Attempt: 1,
		}
		for k := range m.Header {
			msg.Headers[k] = m.Header.Get(k)
		}
		if meta, err := m.Metadata(); err == nil {
			msg.ID = strconv.FormatUint(meta.Sequence.Stream, 10)
			msg.Attempt = int(meta.NumDelivered)
		} else {
			msg.ID = m.Reply
		}
		msgs = append(msgs, msg)
		ackers[msg.ID] = m
	}

	n.settleBatch(ctx, subject, msgs, ackers, handler)
}

// settleBatch вызывает обработчик и подтверждает, откладывает или переносит в DLQ каждое сообщение
func (n *NATSAdapter) settleBatch(ctx context.Context, subject string, msgs []*transport.Message, ackers map[string]natsAcker, handler transport.BatchHandler) {
	result := handler(ctx, msgs)
	acked, retried, dead := splitBatch(msgs, result, n.config.MaxAttempts)

	for _, msg := range acked {
		if err := ackers[msg.ID].Ack(); err != nil {
			n.logger.Error("failed to ack message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	for _, msg := range retried {
		if err := ackers[msg.ID].NakWithDelay(n.config.RetryPolicy.GetDelay(msg.Attempt)); err != nil {
			n.logger.Error("failed to nak message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	for _, msg := range dead {
		headers := copyHeaders(msg.Headers, msg.Attempt)
		headers[HeaderDeadLetterReason] = "max delivery attempts exceeded"
		if err := n.Publish(ctx, subject+DeadLetterSuffix, msg.Data, headers); err != nil {
			n.logger.Error("failed to dead-letter message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		if err := ackers[msg.ID].Term(); err != nil {
			n.logger.Error("failed to terminate message", zap.String("message_id", msg.ID), zap.Error(err))
		}
		n.logger.Warn("message dead-lettered",
			zap.String("subject", subject),
			zap.String("message_id", msg.ID),
			zap.Int("attempt", msg.Attempt),
		)
	}

	recordOutcome(ctx, n.metrics, "nats", len(acked), len(retried), len(dead))
}
