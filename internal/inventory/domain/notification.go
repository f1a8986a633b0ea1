package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/stockflow/framework/core"
)

// OrderCreatedEventKind вид записи, запускающей резервирование
const OrderCreatedEventKind = "ORDER_CREATED"

// OrderCreatedData непроверенные данные заказа из конверта уведомления
type OrderCreatedData struct {
	OrderID string           `json:"orderId" validate:"required,max=128,excludesall=#/"`
	Sku     string           `json:"sku" validate:"required,max=128,excludesall=#/"`
	Units   int              `json:"units" validate:"gt=0,lte=2147483647"`
	Price   *decimal.Decimal `json:"price" validate:"required"`
	BuyerID string           `json:"buyerId" validate:"required,max=128"`
}

// OrderCreatedNotification проверенное уведомление о создании заказа
type OrderCreatedNotification struct {
	orderID   string
	sku       string
	units     int
	price     decimal.Decimal
	buyerID   string
	createdAt time.Time
	updatedAt time.Time
}

// NewOrderCreatedNotification проверяет данные и строит уведомление
func NewOrderCreatedNotification(data OrderCreatedData, createdAt, updatedAt time.Time) core.Result[OrderCreatedNotification] {
	if err := validateStruct("order created notification", data); err != nil {
		return core.Fail[OrderCreatedNotification](InvalidArguments(err))
	}
	if data.Price == nil {
		return core.Fail[OrderCreatedNotification](InvalidArguments(errors.New("price is required")))
	}
	if err := validatePrice(*data.Price); err != nil {
		return core.Fail[OrderCreatedNotification](InvalidArguments(err))
	}
	if err := validateTimestamps(createdAt, updatedAt); err != nil {
		return core.Fail[OrderCreatedNotification](InvalidArguments(err))
	}

	return core.Ok(OrderCreatedNotification{
		orderID:   data.OrderID,
		sku:       data.Sku,
		units:     data.Units,
		price:     *data.Price,
		buyerID:   data.BuyerID,
		createdAt: createdAt.UTC(),
		updatedAt: updatedAt.UTC(),
	})
}

func (n OrderCreatedNotification) OrderID() string        { return n.orderID }
func (n OrderCreatedNotification) Sku() string            { return n.sku }
func (n OrderCreatedNotification) Units() int             { return n.units }
func (n OrderCreatedNotification) Price() decimal.Decimal { return n.price }
func (n OrderCreatedNotification) BuyerID() string        { return n.buyerID }
func (n OrderCreatedNotification) CreatedAt() time.Time   { return n.createdAt }
func (n OrderCreatedNotification) UpdatedAt() time.Time   { return n.updatedAt }

// OrderCreatedEnvelope конверт записи об изменении, доставляемый шиной
type OrderCreatedEnvelope struct {
	EventKind string           `json:"eventKind"`
	EventData OrderCreatedData `json:"eventData"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// ParseOrderCreatedEnvelope разбирает тело записи и строит уведомление.
// Ошибка разбора и неверный вид записи не повторяемы.
func ParseOrderCreatedEnvelope(body []byte) core.Result[OrderCreatedNotification] {
	var envelope OrderCreatedEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return core.Fail[OrderCreatedNotification](InvalidArguments(fmt.Errorf("failed to parse envelope: %w", err)))
	}
	if envelope.EventKind != OrderCreatedEventKind {
		return core.Fail[OrderCreatedNotification](InvalidArguments(fmt.Errorf("unexpected event kind %q", envelope.EventKind)))
	}
	return NewOrderCreatedNotification(envelope.EventData, envelope.CreatedAt, envelope.UpdatedAt)
}

// EncodeOrderCreatedEnvelope сериализует уведомление в конверт ORDER_CREATED
func EncodeOrderCreatedEnvelope(n OrderCreatedNotification) ([]byte, error) {
	price := n.Price()
	return json.Marshal(OrderCreatedEnvelope{
		EventKind: OrderCreatedEventKind,
		EventData: OrderCreatedData{
			OrderID: n.OrderID(),
			Sku:     n.Sku(),
			Units:   n.Units(),
			Price:   &price,
			BuyerID: n.BuyerID(),
		},
		CreatedAt: n.CreatedAt(),
		UpdatedAt: n.UpdatedAt(),
	})
}
