// Package eventlog переводит ошибки хранилища событий в результаты домена.
package eventlog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/events"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

// Appender идемпотентная запись доменных событий
type Appender struct {
	store   eventstore.EventStore
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAppender создает Appender поверх хранилища событий
func NewAppender(store eventstore.EventStore, logger *zap.Logger, m *metrics.Metrics) *Appender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Appender{
		store:   store,
		logger:  logger.Named("eventlog"),
		metrics: m,
	}
}

// Append записывает событие один раз для пары (субъект, вид).
// Повторная запись возвращает DuplicateEventRaisedError, любой другой сбой UnrecognizedError.
func (a *Appender) Append(ctx context.Context, event events.Event) core.Result[struct{}] {
	if event == nil || event.AggregateID() == "" || event.EventType() == "" {
		return core.Fail[struct{}](domain.InvalidArguments(errors.New("event subject and kind are required")))
	}

	err := a.store.Append(ctx, event)
	switch {
	case err == nil:
		a.record(ctx, event.EventType(), "appended")
		return core.Ok(struct{}{})
	case errors.Is(err, eventstore.ErrDuplicateEvent):
		a.record(ctx, event.EventType(), "duplicate")
		a.logger.Debug("event already appended",
			zap.String("subject_id", event.AggregateID()),
			zap.String("kind", event.EventType()))
		return core.Fail[struct{}](domain.DuplicateEventRaised(err))
	default:
		a.record(ctx, event.EventType(), "error")
		a.logger.Warn("failed to append event",
			zap.String("subject_id", event.AggregateID()),
			zap.String("kind", event.EventType()),
			zap.Error(err))
		return core.Fail[struct{}](domain.Unrecognized(err))
	}
}

// Load возвращает события субъекта
func (a *Appender) Load(ctx context.Context, subjectID string) core.Result[[]eventstore.StoredEvent] {
	if subjectID == "" {
		return core.Fail[[]eventstore.StoredEvent](domain.InvalidArguments(errors.New("subject id is required")))
	}
	stored, err := a.store.Load(ctx, subjectID)
	if err != nil {
		return core.Fail[[]eventstore.StoredEvent](domain.Unrecognized(err))
	}
	return core.Ok(stored)
}

func (a *Appender) record(ctx context.Context, kind, result string) {
	if a.metrics != nil {
		a.metrics.RecordEventAppend(ctx, kind, result)
	}
}
