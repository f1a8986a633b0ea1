package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/framework/transport"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

// InventoryService операции HTTP слоя: размещение заказа, пополнение
// остатка и чтение состояния
type InventoryService struct {
	allocations AllocationStore
	stock       StockStore
	events      EventLoader
	publisher   transport.Publisher
	subject     string
	logger      *zap.Logger
	now         func() time.Time
}

// NewInventoryService создает сервис. subject задает тему уведомлений ORDER_CREATED.
func NewInventoryService(allocations AllocationStore, stock StockStore, events EventLoader, publisher transport.Publisher, subject string, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		allocations: allocations,
		stock:       stock,
		events:      events,
		publisher:   publisher,
		subject:     subject,
		logger:      logger.Named("inventory-service"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder проверяет заказ и публикует уведомление ORDER_CREATED.
// Пустой orderId заменяется сгенерированным.
func (s *InventoryService) PlaceOrder(ctx context.Context, data domain.OrderCreatedData) core.Result[domain.OrderCreatedNotification] {
	if data.OrderID == "" {
		data.OrderID = uuid.NewString()
	}
	now := s.now()
	built := domain.NewOrderCreatedNotification(data, now, now)
	if built.IsErr() {
		return built
	}

	body, err := domain.EncodeOrderCreatedEnvelope(built.Value())
	if err != nil {
		return core.Fail[domain.OrderCreatedNotification](domain.Unrecognized(fmt.Errorf("failed to encode envelope: %w", err)))
	}
	if err := s.publisher.Publish(ctx, s.subject, body, map[string]string{transport.HeaderPartitionKey: data.OrderID}); err != nil {
		s.logger.Warn("failed to publish order", zap.String("order_id", data.OrderID), zap.Error(err))
		return core.Fail[domain.OrderCreatedNotification](domain.Unrecognized(err))
	}

	s.logger.Info("order placed", zap.String("order_id", data.OrderID), zap.String("sku", data.Sku))
	return built
}

// RestockSku увеличивает остаток SKU
func (s *InventoryService) RestockSku(ctx context.Context, sku string, units int) core.Result[domain.SkuStock] {
	cmd := domain.NewRestockSkuCommand(sku, units, s.now())
	if cmd.IsErr() {
		return core.Propagate[domain.SkuStock](cmd)
	}
	restocked := s.stock.Restock(ctx, cmd.Value())
	if restocked.IsOk() {
		s.logger.Info("sku restocked",
			zap.String("sku", sku),
			zap.Int("units", units),
			zap.Int("available", restocked.Value().Units))
	}
	return restocked
}

// GetAllocation возвращает резервирование по заказу и SKU
func (s *InventoryService) GetAllocation(ctx context.Context, orderID, sku string) core.Result[core.Option[domain.StockAllocation]] {
	return s.allocations.GetAllocation(ctx, orderID, sku)
}

// GetStock возвращает остаток SKU
func (s *InventoryService) GetStock(ctx context.Context, sku string) core.Result[core.Option[domain.SkuStock]] {
	return s.stock.GetStock(ctx, sku)
}

// ListEvents возвращает журнал событий субъекта
func (s *InventoryService) ListEvents(ctx context.Context, subjectID string) core.Result[[]eventstore.StoredEvent] {
	return s.events.Load(ctx, subjectID)
}
