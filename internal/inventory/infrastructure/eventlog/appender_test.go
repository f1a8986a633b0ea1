package eventlog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/events"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

type failingStore struct {
	err error
}

func (s failingStore) Append(ctx context.Context, event events.Event) error { return s.err }

func (s failingStore) Load(ctx context.Context, subjectID string) ([]eventstore.StoredEvent, error) {
	return nil, s.err
}

func allocatedEvent(t *testing.T) *domain.AllocationEvent {
	t.Helper()
	price := decimal.NewFromInt(5)
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	n := domain.NewOrderCreatedNotification(domain.OrderCreatedData{
		OrderID: "O1", Sku: "SKU-1", Units: 1, Price: &price, BuyerID: "B1",
	}, at, at)
	require.True(t, n.IsOk())
	cmd := domain.NewAllocateOrderStockCommand(n.Value())
	require.True(t, cmd.IsOk())
	event := domain.NewOrderStockAllocatedEvent(cmd.Value())
	require.True(t, event.IsOk())
	return event.Value()
}

func TestAppender_AppendOnce(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()
	appender := NewAppender(store, zap.NewNop(), nil)
	ctx := context.Background()

	first := appender.Append(ctx, allocatedEvent(t))
	require.True(t, first.IsOk())

	second := appender.Append(ctx, allocatedEvent(t))
	assert.True(t, second.IsFailureOfKind(domain.DuplicateEventRaisedError))
	assert.False(t, second.IsFailureTransient())
	assert.Equal(t, 1, store.Count())

	loaded := appender.Load(ctx, domain.AllocationSubject("O1", "SKU-1"))
	require.True(t, loaded.IsOk())
	require.Len(t, loaded.Value(), 1)
	assert.Equal(t, string(domain.OrderStockAllocatedKind), loaded.Value()[0].EventKind)
}

func TestAppender_ConcurrentAppend(t *testing.T) {
	store := eventstore.NewInMemoryEventStore()
	appender := NewAppender(store, nil, nil)
	ctx := context.Background()

	var ok, dup int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		event := allocatedEvent(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := appender.Append(ctx, event)
			switch {
			case result.IsOk():
				atomic.AddInt32(&ok, 1)
			case result.IsFailureOfKind(domain.DuplicateEventRaisedError):
				atomic.AddInt32(&dup, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(9), dup)
}

func TestAppender_StoreFault(t *testing.T) {
	appender := NewAppender(failingStore{err: errors.New("connection refused")}, zap.NewNop(), nil)

	result := appender.Append(context.Background(), allocatedEvent(t))
	assert.True(t, result.IsFailureOfKind(domain.UnrecognizedError))
	assert.True(t, result.IsFailureTransient())

	loaded := appender.Load(context.Background(), "ORDER#O1/SKU#SKU-1")
	assert.True(t, loaded.IsFailureOfKind(domain.UnrecognizedError))
}

func TestAppender_InvalidEvent(t *testing.T) {
	appender := NewAppender(eventstore.NewInMemoryEventStore(), zap.NewNop(), nil)

	result := appender.Append(context.Background(), events.NewBaseEvent("", ""))
	assert.True(t, result.IsFailureOfKind(domain.InvalidArgumentsError))

	assert.True(t, appender.Load(context.Background(), "").IsFailureOfKind(domain.InvalidArgumentsError))
}
