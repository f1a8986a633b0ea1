// Package domain содержит значения, команды и события резервирования товара.
package domain

import (
	"github.com/akriventsev/stockflow/framework/core"
)

// Виды ошибок. Набор закрыт, признак повторяемости фиксирован для каждого вида.
const (
	InvalidArgumentsError         core.FailureKind = "InvalidArgumentsError"
	DuplicateStockAllocationError core.FailureKind = "DuplicateStockAllocationError"
	DepletedStockAllocationError  core.FailureKind = "DepletedStockAllocationError"
	DuplicateEventRaisedError     core.FailureKind = "DuplicateEventRaisedError"
	UnrecognizedError             core.FailureKind = "UnrecognizedError"
)

// IsTransient возвращает признак повторяемости для вида ошибки
func IsTransient(kind core.FailureKind) bool {
	return kind == UnrecognizedError
}

func newFailure(kind core.FailureKind, cause error) *core.Failure {
	return &core.Failure{Kind: kind, Cause: cause, Transient: IsTransient(kind)}
}

// InvalidArguments некорректный ввод, повтор бессмысленен
func InvalidArguments(cause error) *core.Failure {
	return newFailure(InvalidArgumentsError, cause)
}

// DuplicateStockAllocation резервирование для заказа и SKU уже существует
func DuplicateStockAllocation(cause error) *core.Failure {
	return newFailure(DuplicateStockAllocationError, cause)
}

// DepletedStockAllocation недостаточно товара для резервирования
func DepletedStockAllocation(cause error) *core.Failure {
	return newFailure(DepletedStockAllocationError, cause)
}

// DuplicateEventRaised событие уже записано
func DuplicateEventRaised(cause error) *core.Failure {
	return newFailure(DuplicateEventRaisedError, cause)
}

// Unrecognized сбой инфраструктуры, операцию можно повторить
func Unrecognized(cause error) *core.Failure {
	return newFailure(UnrecognizedError, cause)
}
