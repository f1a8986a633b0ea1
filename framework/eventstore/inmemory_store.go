package eventstore

import (
	"context"
	"sync"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/events"
)

type eventKey struct {
	subjectID string
	eventKind string
}

// InMemoryEventStore реализация EventStore в памяти для тестирования и разработки
type InMemoryEventStore struct {
	mu       sync.RWMutex
	keys     map[eventKey]struct{}
	subjects map[string][]StoredEvent
}

// NewInMemoryEventStore создает новый InMemory Event Store
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		keys:     make(map[eventKey]struct{}),
		subjects: make(map[string][]StoredEvent),
	}
}

// Append добавляет событие
func (s *InMemoryEventStore) Append(ctx context.Context, event events.Event) error {
	stored, err := NewStoredEvent(event)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{subjectID: stored.SubjectID, eventKind: stored.EventKind}
	if _, exists := s.keys[key]; exists {
		return ErrDuplicateEvent
	}
	s.keys[key] = struct{}{}
	s.subjects[stored.SubjectID] = append(s.subjects[stored.SubjectID], stored)
	return nil
}

// Load возвращает события субъекта
func (s *InMemoryEventStore) Load(ctx context.Context, subjectID string) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.subjects[subjectID]
	result := make([]StoredEvent, len(stream))
	copy(result, stream)
	return result, nil
}

// Count возвращает общее число записанных событий
func (s *InMemoryEventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Name возвращает имя компонента
func (s *InMemoryEventStore) Name() string {
	return "inmemory-event-store"
}

// Type возвращает тип компонента
func (s *InMemoryEventStore) Type() core.ComponentType {
	return core.ComponentTypeAdapter
}
