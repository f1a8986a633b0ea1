package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/events"
)

// EventKind вид доменного события резервирования
type EventKind string

const (
	OrderStockAllocatedKind EventKind = "OrderStockAllocated"
	OrderStockDepletedKind  EventKind = "OrderStockDepleted"
)

// AllocationSubject идентификатор субъекта событий резервирования
func AllocationSubject(orderID, sku string) string {
	return fmt.Sprintf("ORDER#%s/SKU#%s", orderID, sku)
}

// AllocationEventData полезная нагрузка событий резервирования
type AllocationEventData struct {
	OrderID string          `json:"orderId"`
	Sku     string          `json:"sku"`
	Units   int             `json:"units"`
	Price   decimal.Decimal `json:"price"`
	BuyerID string          `json:"buyerId"`
}

// AllocationEvent событие исхода резервирования (Allocated или Depleted)
type AllocationEvent struct {
	*events.BaseEvent
	AllocationEventData
}

// Kind возвращает вид события
func (e *AllocationEvent) Kind() EventKind {
	return EventKind(e.EventType())
}

func newAllocationEvent(kind EventKind, cmd AllocateOrderStockCommand) core.Result[*AllocationEvent] {
	if !cmd.IsValid() {
		return core.Fail[*AllocationEvent](InvalidArguments(fmt.Errorf("cannot build %s event from invalid command", kind)))
	}
	subject := AllocationSubject(cmd.OrderID(), cmd.Sku())
	return core.Ok(&AllocationEvent{
		BaseEvent: events.NewBaseEventAt(string(kind), subject, cmd.CreatedAt()),
		AllocationEventData: AllocationEventData{
			OrderID: cmd.OrderID(),
			Sku:     cmd.Sku(),
			Units:   cmd.Units(),
			Price:   cmd.Price(),
			BuyerID: cmd.BuyerID(),
		},
	})
}

// NewOrderStockAllocatedEvent строит событие успешного резервирования
func NewOrderStockAllocatedEvent(cmd AllocateOrderStockCommand) core.Result[*AllocationEvent] {
	return newAllocationEvent(OrderStockAllocatedKind, cmd)
}

// NewOrderStockDepletedEvent строит событие нехватки товара
func NewOrderStockDepletedEvent(cmd AllocateOrderStockCommand) core.Result[*AllocationEvent] {
	return newAllocationEvent(OrderStockDepletedKind, cmd)
}
