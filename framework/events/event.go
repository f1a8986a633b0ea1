// Package events предоставляет базовые интерфейсы для работы с доменными событиями.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event представляет доменное событие
type Event interface {
	// EventID возвращает уникальный идентификатор события
	EventID() string
	// EventType возвращает тип события
	EventType() string
	// OccurredAt возвращает время возникновения события
	OccurredAt() time.Time
	// AggregateID возвращает идентификатор субъекта события
	AggregateID() string
	// Metadata возвращает метаданные события
	Metadata() EventMetadata
}

// EventMetadata метаданные события
type EventMetadata map[string]interface{}

// BaseEvent базовая реализация события.
// Поля не экспортируются, поэтому при сериализации в JSON попадает только payload
// встраивающего типа.
type BaseEvent struct {
	eventID     string
	eventType   string
	occurredAt  time.Time
	aggregateID string
	metadata    EventMetadata
}

// NewBaseEvent создает новое базовое событие
func NewBaseEvent(eventType, aggregateID string) *BaseEvent {
	return NewBaseEventAt(eventType, aggregateID, time.Now().UTC())
}

// NewBaseEventAt создает базовое событие с заданным временем возникновения
func NewBaseEventAt(eventType, aggregateID string, occurredAt time.Time) *BaseEvent {
	return &BaseEvent{
		eventID:     uuid.NewString(),
		eventType:   eventType,
		occurredAt:  occurredAt,
		aggregateID: aggregateID,
		metadata:    make(EventMetadata),
	}
}

func (e *BaseEvent) EventID() string {
	return e.eventID
}

func (e *BaseEvent) EventType() string {
	return e.eventType
}

func (e *BaseEvent) OccurredAt() time.Time {
	return e.occurredAt
}

func (e *BaseEvent) AggregateID() string {
	return e.aggregateID
}

func (e *BaseEvent) Metadata() EventMetadata {
	return e.metadata
}
