// Package transport предоставляет абстракции для пакетной доставки сообщений.
package transport

import (
	"context"
	"time"
)

// HeaderAttempt заголовок с номером попытки доставки
const HeaderAttempt = "x-attempt"

// HeaderPartitionKey заголовок с ключом упорядочивания (ключ сообщения Kafka)
const HeaderPartitionKey = "x-partition-key"

// Message представляет сообщение в очереди
type Message struct {
	// ID идентификатор записи в брокере (offset, stream id, sequence)
	ID      string
	Subject string
	Data    []byte
	Headers map[string]string
	// Attempt номер попытки доставки, начиная с 1
	Attempt int
}

// BatchResult результат обработки пакета.
// RetryIDs содержит только идентификаторы сообщений, которые нужно доставить повторно;
// остальные сообщения пакета подтверждаются.
type BatchResult struct {
	RetryIDs []string
}

// ShouldRetry проверяет, нужно ли повторить сообщение
func (r BatchResult) ShouldRetry(id string) bool {
	for _, retryID := range r.RetryIDs {
		if retryID == id {
			return true
		}
	}
	return false
}

// BatchHandler обработчик пакета сообщений
type BatchHandler func(ctx context.Context, msgs []*Message) BatchResult

// BatchSubscriber подписчик, доставляющий сообщения пакетами
type BatchSubscriber interface {
	// SubscribeBatch подписывается на subject; handler вызывается для каждого полученного пакета
	SubscribeBatch(ctx context.Context, subject string, handler BatchHandler) error
}

// Publisher публикатор сообщений
type Publisher interface {
	// Publish публикует сообщение в subject
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// MessageBus объединяет возможности публикации и пакетной подписки
type MessageBus interface {
	Publisher
	BatchSubscriber
	// Close останавливает подписки и освобождает соединения
	Close() error
}

// RetryPolicy политика повторов для сообщений
type RetryPolicy interface {
	// ShouldRetry определяет, нужно ли повторить попытку
	ShouldRetry(attempt int) bool
	// GetDelay возвращает задержку перед повтором
	GetDelay(attempt int) time.Duration
	// GetMaxAttempts возвращает максимальное количество попыток
	GetMaxAttempts() int
}

// ExponentialBackoffRetryPolicy политика повторов с экспоненциальной задержкой
type ExponentialBackoffRetryPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// DefaultRetryPolicy возвращает политику повторов по умолчанию
func DefaultRetryPolicy() *ExponentialBackoffRetryPolicy {
	return &ExponentialBackoffRetryPolicy{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		MaxAttempts:  5,
	}
}

// ShouldRetry определяет, нужно ли повторить попытку
func (p *ExponentialBackoffRetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// GetDelay возвращает задержку перед повтором
func (p *ExponentialBackoffRetryPolicy) GetDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Multiplier
		if delay > float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(delay)
}

// GetMaxAttempts возвращает максимальное количество попыток
func (p *ExponentialBackoffRetryPolicy) GetMaxAttempts() int {
	return p.MaxAttempts
}
