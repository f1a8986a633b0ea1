package domain

import (
	"errors"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/txn"
)

// Имена условий транзакции резервирования в порядке выполнения
const (
	// ConditionAllocationAbsent запись резервирования для (orderId, sku) отсутствует
	ConditionAllocationAbsent = "allocation_absent"
	// ConditionStockSufficient счетчик SKU существует и остатка достаточно
	ConditionStockSufficient = "stock_sufficient"
)

// ClassifyAllocationFailure определяет вид ошибки отклоненной транзакции резервирования.
// Существующее резервирование имеет приоритет над нехваткой товара.
func ClassifyAllocationFailure(err error) *core.Failure {
	if err == nil {
		return Unrecognized(errors.New("allocation failed without error"))
	}
	canceled, ok := txn.AsCanceled(err)
	if !ok {
		return Unrecognized(err)
	}
	switch {
	case canceled.Outcomes.Failed(ConditionAllocationAbsent):
		return DuplicateStockAllocation(err)
	case canceled.Outcomes.Failed(ConditionStockSufficient):
		return DepletedStockAllocation(err)
	default:
		return Unrecognized(err)
	}
}
