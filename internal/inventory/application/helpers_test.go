package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/eventlog"
	"github.com/akriventsev/stockflow/internal/inventory/infrastructure/memory"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// countingStore считает обращения к хранилищу и позволяет подменить ошибку записи
type countingStore struct {
	inner         *memory.Store
	gets          atomic.Int32
	allocates     atomic.Int32
	allocateFault error
	getFault      error
}

func (s *countingStore) GetAllocation(ctx context.Context, orderID, sku string) core.Result[core.Option[domain.StockAllocation]] {
	s.gets.Add(1)
	if s.getFault != nil {
		return core.Fail[core.Option[domain.StockAllocation]](domain.Unrecognized(s.getFault))
	}
	return s.inner.GetAllocation(ctx, orderID, sku)
}

func (s *countingStore) Allocate(ctx context.Context, cmd domain.AllocateOrderStockCommand) core.Result[struct{}] {
	s.allocates.Add(1)
	if s.allocateFault != nil {
		return core.Fail[struct{}](domain.ClassifyAllocationFailure(s.allocateFault))
	}
	return s.inner.Allocate(ctx, cmd)
}

func (s *countingStore) calls() int32 {
	return s.gets.Load() + s.allocates.Load()
}

type fixture struct {
	store  *countingStore
	stock  *memory.Store
	events *eventstore.InMemoryEventStore
	worker *AllocateOrderStockWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	inner := memory.NewStore()
	events := eventstore.NewInMemoryEventStore()
	store := &countingStore{inner: inner}
	worker := NewAllocateOrderStockWorker(store, eventlog.NewAppender(events, zap.NewNop(), nil), zap.NewNop(), nil, nil)
	return &fixture{store: store, stock: inner, events: events, worker: worker}
}

func (f *fixture) restock(t *testing.T, sku string, units int) {
	t.Helper()
	cmd := domain.NewRestockSkuCommand(sku, units, testTime)
	require.True(t, cmd.IsOk())
	require.True(t, f.stock.Restock(context.Background(), cmd.Value()).IsOk())
}

func (f *fixture) units(t *testing.T, sku string) int {
	t.Helper()
	result := f.stock.GetStock(context.Background(), sku)
	require.True(t, result.IsOk())
	return result.Value().ValueOr(domain.SkuStock{}).Units
}

func (f *fixture) eventKinds(t *testing.T, orderID, sku string) []string {
	t.Helper()
	stored, err := f.events.Load(context.Background(), domain.AllocationSubject(orderID, sku))
	require.NoError(t, err)
	kinds := make([]string, 0, len(stored))
	for _, e := range stored {
		kinds = append(kinds, e.EventKind)
	}
	return kinds
}

func notification(t *testing.T, orderID, sku string, units int) domain.OrderCreatedNotification {
	t.Helper()
	price := decimal.RequireFromString("12.30")
	result := domain.NewOrderCreatedNotification(domain.OrderCreatedData{
		OrderID: orderID, Sku: sku, Units: units, Price: &price, BuyerID: "B1",
	}, testTime, testTime)
	require.True(t, result.IsOk(), "notification: %v", result.Err())
	return result.Value()
}

func envelope(t *testing.T, orderID, sku string, units int) []byte {
	t.Helper()
	body, err := domain.EncodeOrderCreatedEnvelope(notification(t, orderID, sku, units))
	require.NoError(t, err)
	return body
}

var errStoreUnavailable = errors.New("store unavailable")
