// Package messagebus предоставляет адаптеры пакетной доставки для различных message brokers.
//
// Все адаптеры следуют одному контракту: сообщения пакета, не попавшие в
// BatchResult.RetryIDs, подтверждаются; сообщения из RetryIDs доставляются
// повторно, пока не исчерпан лимит попыток, после чего уходят в DLQ.
package messagebus

import (
	"context"
	"strconv"
	"time"

	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/framework/transport"
)

// DeadLetterSuffix суффикс subject для недоставленных сообщений
const DeadLetterSuffix = ".dlq"

// HeaderDeadLetterReason заголовок с причиной отправки в DLQ
const HeaderDeadLetterReason = "x-dead-letter-reason"

// attemptFromHeaders читает номер попытки из заголовков, по умолчанию 1
func attemptFromHeaders(headers map[string]string) int {
	if headers == nil {
		return 1
	}
	raw, ok := headers[transport.HeaderAttempt]
	if !ok {
		return 1
	}
	attempt, err := strconv.Atoi(raw)
	if err != nil || attempt < 1 {
		return 1
	}
	return attempt
}

// copyHeaders копирует заголовки и выставляет номер попытки
func copyHeaders(headers map[string]string, attempt int) map[string]string {
	result := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		result[k] = v
	}
	result[transport.HeaderAttempt] = strconv.Itoa(attempt)
	return result
}

// splitBatch разделяет пакет на подтверждаемые сообщения, повторы и сообщения для DLQ
func splitBatch(msgs []*transport.Message, result transport.BatchResult, maxAttempts int) (acked, retried, dead []*transport.Message) {
	retrySet := make(map[string]struct{}, len(result.RetryIDs))
	for _, id := range result.RetryIDs {
		retrySet[id] = struct{}{}
	}

	for _, msg := range msgs {
		if _, retry := retrySet[msg.ID]; !retry {
			acked = append(acked, msg)
			continue
		}
		if maxAttempts > 0 && msg.Attempt >= maxAttempts {
			dead = append(dead, msg)
			continue
		}
		retried = append(retried, msg)
	}
	return acked, retried, dead
}

func recordOutcome(ctx context.Context, m *metrics.Metrics, transportName string, acked, retried, dead int) {
	if m == nil {
		return
	}
	for i := 0; i < acked; i++ {
		m.RecordTransport(ctx, transportName, "ack", true)
	}
	for i := 0; i < retried; i++ {
		m.RecordTransport(ctx, transportName, "retry", true)
	}
	for i := 0; i < dead; i++ {
		m.RecordTransport(ctx, transportName, "dead_letter", true)
	}
}

// sleepContext ждет d или отмены контекста; false при отмене
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
