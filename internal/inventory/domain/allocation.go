package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationStatus статус резервирования
type AllocationStatus string

const (
	AllocationStatusAllocated       AllocationStatus = "ALLOCATED"
	AllocationStatusCanceled        AllocationStatus = "CANCELED"
	AllocationStatusPaymentRejected AllocationStatus = "PAYMENT_REJECTED"
)

// IsValid проверяет, что статус входит в известный набор
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusAllocated, AllocationStatusCanceled, AllocationStatusPaymentRejected:
		return true
	}
	return false
}

// StockAllocation резервирование товара под заказ. Ключ: (OrderID, Sku).
type StockAllocation struct {
	OrderID   string           `json:"orderId"`
	Sku       string           `json:"sku"`
	Units     int              `json:"units"`
	Price     decimal.Decimal  `json:"price"`
	BuyerID   string           `json:"buyerId"`
	Status    AllocationStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewStockAllocation строит запись резервирования из команды
func NewStockAllocation(cmd AllocateOrderStockCommand) StockAllocation {
	return StockAllocation{
		OrderID:   cmd.OrderID(),
		Sku:       cmd.Sku(),
		Units:     cmd.Units(),
		Price:     cmd.Price(),
		BuyerID:   cmd.BuyerID(),
		Status:    AllocationStatusAllocated,
		CreatedAt: cmd.CreatedAt(),
		UpdatedAt: cmd.UpdatedAt(),
	}
}

// SkuStock доступный остаток по SKU (никогда не отрицательный)
type SkuStock struct {
	Sku       string    `json:"sku"`
	Units     int       `json:"units"`
	UpdatedAt time.Time `json:"updatedAt"`
}
