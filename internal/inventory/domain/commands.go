package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/akriventsev/stockflow/framework/core"
)

type allocateOrderStockInput struct {
	OrderID string `validate:"required,max=128,excludesall=#/"`
	Sku     string `validate:"required,max=128,excludesall=#/"`
	Units   int    `validate:"gt=0,lte=2147483647"`
	BuyerID string `validate:"required,max=128"`
}

// AllocateOrderStockCommand команда резервирования товара под заказ
type AllocateOrderStockCommand struct {
	orderID   string
	sku       string
	units     int
	price     decimal.Decimal
	buyerID   string
	createdAt time.Time
	updatedAt time.Time
}

// NewAllocateOrderStockCommand строит команду из уведомления.
// Уведомление проверяется повторно, так как нулевое значение типа не проходило конструктор.
func NewAllocateOrderStockCommand(n OrderCreatedNotification) core.Result[AllocateOrderStockCommand] {
	input := allocateOrderStockInput{
		OrderID: n.OrderID(),
		Sku:     n.Sku(),
		Units:   n.Units(),
		BuyerID: n.BuyerID(),
	}
	if err := validateStruct("allocate order stock command", input); err != nil {
		return core.Fail[AllocateOrderStockCommand](InvalidArguments(err))
	}
	if err := validatePrice(n.Price()); err != nil {
		return core.Fail[AllocateOrderStockCommand](InvalidArguments(err))
	}
	if err := validateTimestamps(n.CreatedAt(), n.UpdatedAt()); err != nil {
		return core.Fail[AllocateOrderStockCommand](InvalidArguments(err))
	}

	return core.Ok(AllocateOrderStockCommand{
		orderID:   n.OrderID(),
		sku:       n.Sku(),
		units:     n.Units(),
		price:     n.Price(),
		buyerID:   n.BuyerID(),
		createdAt: n.CreatedAt(),
		updatedAt: n.UpdatedAt(),
	})
}

// IsValid проверяет, что команда построена конструктором
func (c AllocateOrderStockCommand) IsValid() bool {
	return c.orderID != "" && c.sku != "" && c.units > 0 && c.buyerID != "" && !c.price.IsNegative()
}

func (c AllocateOrderStockCommand) OrderID() string        { return c.orderID }
func (c AllocateOrderStockCommand) Sku() string            { return c.sku }
func (c AllocateOrderStockCommand) Units() int             { return c.units }
func (c AllocateOrderStockCommand) Price() decimal.Decimal { return c.price }
func (c AllocateOrderStockCommand) BuyerID() string        { return c.buyerID }
func (c AllocateOrderStockCommand) CreatedAt() time.Time   { return c.createdAt }
func (c AllocateOrderStockCommand) UpdatedAt() time.Time   { return c.updatedAt }

type restockSkuInput struct {
	Sku   string `validate:"required,max=128,excludesall=#/"`
	Units int    `validate:"gt=0,lte=2147483647"`
}

// RestockSkuCommand команда пополнения остатка (только увеличивает остаток)
type RestockSkuCommand struct {
	sku       string
	units     int
	createdAt time.Time
}

// NewRestockSkuCommand проверяет ввод и строит команду пополнения
func NewRestockSkuCommand(sku string, units int, at time.Time) core.Result[RestockSkuCommand] {
	if err := validateStruct("restock sku command", restockSkuInput{Sku: sku, Units: units}); err != nil {
		return core.Fail[RestockSkuCommand](InvalidArguments(err))
	}
	if at.IsZero() {
		at = time.Now()
	}
	return core.Ok(RestockSkuCommand{sku: sku, units: units, createdAt: at.UTC()})
}

func (c RestockSkuCommand) Sku() string          { return c.sku }
func (c RestockSkuCommand) Units() int           { return c.units }
func (c RestockSkuCommand) CreatedAt() time.Time { return c.createdAt }
