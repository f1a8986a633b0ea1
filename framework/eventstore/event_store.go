// Package eventstore предоставляет append-only хранилище доменных событий
// с уникальностью по паре (субъект, вид события).
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akriventsev/stockflow/framework/events"
)

// ErrDuplicateEvent возникает, когда событие того же вида уже записано для субъекта
var ErrDuplicateEvent = errors.New("event already appended for subject and kind")

// StoredEvent представляет сохраненное событие (конверт доменного события)
type StoredEvent struct {
	ID        string
	SubjectID string
	EventKind string
	EventData json.RawMessage
	Metadata  map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EventStore интерфейс для хранения событий.
// Записи никогда не изменяются и не удаляются.
type EventStore interface {
	// Append добавляет событие. Возвращает ErrDuplicateEvent, если пара
	// (AggregateID, EventType) уже существует.
	Append(ctx context.Context, event events.Event) error

	// Load возвращает события субъекта в порядке записи
	Load(ctx context.Context, subjectID string) ([]StoredEvent, error)
}

// NewStoredEvent строит конверт из доменного события
func NewStoredEvent(event events.Event) (StoredEvent, error) {
	if event == nil {
		return StoredEvent{}, errors.New("event cannot be nil")
	}
	if event.AggregateID() == "" || event.EventType() == "" {
		return StoredEvent{}, errors.New("event subject and kind are required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return StoredEvent{
		ID:        event.EventID(),
		SubjectID: event.AggregateID(),
		EventKind: event.EventType(),
		EventData: data,
		Metadata:  convertMetadata(event.Metadata()),
		CreatedAt: event.OccurredAt(),
		UpdatedAt: event.OccurredAt(),
	}, nil
}

func convertMetadata(metadata events.EventMetadata) map[string]interface{} {
	result := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}
