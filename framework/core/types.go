// Package core предоставляет базовые типы для всех компонентов сервиса.
package core

// FailureKind вид ошибки операции. Набор видов задается доменом.
type FailureKind string

// Failure описывает неуспешный результат операции
type Failure struct {
	Kind      FailureKind
	Cause     error
	Transient bool
}

// Error реализует интерфейс error
func (f *Failure) Error() string {
	if f.Cause != nil {
		return string(f.Kind) + ": " + f.Cause.Error()
	}
	return string(f.Kind)
}

// Unwrap возвращает причину ошибки
func (f *Failure) Unwrap() error {
	return f.Cause
}

// Result[T] generic тип для результатов операций (успех/ошибка).
// Заполнен ровно один из вариантов: значение или Failure.
type Result[T any] struct {
	value   T
	failure *Failure
}

// Ok создает успешный результат
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Fail создает результат с ошибкой
func Fail[T any](failure *Failure) Result[T] {
	if failure == nil {
		panic("core: Fail called with nil failure")
	}
	return Result[T]{failure: failure}
}

// FailWith создает результат с ошибкой указанного вида
func FailWith[T any](kind FailureKind, cause error, transient bool) Result[T] {
	return Fail[T](&Failure{Kind: kind, Cause: cause, Transient: transient})
}

// Propagate переносит ошибку результата в результат другого типа
func Propagate[U, T any](r Result[T]) Result[U] {
	if r.failure == nil {
		panic("core: Propagate called on successful result")
	}
	return Result[U]{failure: r.failure}
}

// IsOk проверяет, успешен ли результат
func (r Result[T]) IsOk() bool {
	return r.failure == nil
}

// IsErr проверяет, есть ли ошибка в результате
func (r Result[T]) IsErr() bool {
	return r.failure != nil
}

// IsFailureOfKind проверяет вид ошибки
func (r Result[T]) IsFailureOfKind(kind FailureKind) bool {
	return r.failure != nil && r.failure.Kind == kind
}

// IsFailureTransient проверяет, можно ли повторить операцию
func (r Result[T]) IsFailureTransient() bool {
	return r.failure != nil && r.failure.Transient
}

// Value возвращает значение успешного результата
func (r Result[T]) Value() T {
	return r.value
}

// Failure возвращает ошибку (nil для успешного результата)
func (r Result[T]) Failure() *Failure {
	return r.failure
}

// Err возвращает ошибку как error, nil для успешного результата
func (r Result[T]) Err() error {
	if r.failure == nil {
		return nil
	}
	return r.failure
}

// Option[T] generic тип для опциональных значений
type Option[T any] struct {
	value T
	some  bool
}

// Some создает Option с значением
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, some: true}
}

// None создает пустой Option
func None[T any]() Option[T] {
	return Option[T]{some: false}
}

// IsSome проверяет, есть ли значение
func (o Option[T]) IsSome() bool {
	return o.some
}

// IsNone проверяет, пуст ли Option
func (o Option[T]) IsNone() bool {
	return !o.some
}

// Value возвращает значение (panic если None)
func (o Option[T]) Value() T {
	if !o.some {
		panic("option is none")
	}
	return o.value
}

// ValueOr возвращает значение или значение по умолчанию
func (o Option[T]) ValueOr(defaultValue T) T {
	if o.some {
		return o.value
	}
	return defaultValue
}

// ComponentType enum для типов компонентов
type ComponentType string

const (
	ComponentTypeAdapter   ComponentType = "adapter"
	ComponentTypeTransport ComponentType = "transport"
)
