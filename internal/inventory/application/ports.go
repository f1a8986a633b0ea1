// Package application содержит сценарии резервирования товара: оркестратор,
// контроллер пакетной обработки уведомлений и сервисы для HTTP слоя.
package application

import (
	"context"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/events"
	"github.com/akriventsev/stockflow/framework/eventstore"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

// AllocationStore транзакционное хранилище резервирований
type AllocationStore interface {
	// GetAllocation возвращает резервирование или None
	GetAllocation(ctx context.Context, orderID, sku string) core.Result[core.Option[domain.StockAllocation]]
	// Allocate создает резервирование и уменьшает остаток одной транзакцией
	Allocate(ctx context.Context, cmd domain.AllocateOrderStockCommand) core.Result[struct{}]
}

// StockStore хранилище остатков SKU
type StockStore interface {
	Restock(ctx context.Context, cmd domain.RestockSkuCommand) core.Result[domain.SkuStock]
	GetStock(ctx context.Context, sku string) core.Result[core.Option[domain.SkuStock]]
}

// EventAppender идемпотентная запись доменных событий
type EventAppender interface {
	Append(ctx context.Context, event events.Event) core.Result[struct{}]
}

// EventLoader чтение журнала событий субъекта
type EventLoader interface {
	Load(ctx context.Context, subjectID string) core.Result[[]eventstore.StoredEvent]
}

// Allocator обработчик одного уведомления о создании заказа
type Allocator interface {
	Allocate(ctx context.Context, notification domain.OrderCreatedNotification) core.Result[struct{}]
}
