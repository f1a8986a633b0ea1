// Package txn выполняет набор условных операций в одной транзакции PostgreSQL
// и сообщает результат проверки каждого условия по имени.
package txn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Status результат проверки условия операции
type Status int

const (
	// NotAttempted операция не выполнялась
	NotAttempted Status = iota
	// Satisfied условие выполнено
	Satisfied
	// ConditionFailed условие не выполнено
	ConditionFailed
)

func (s Status) String() string {
	switch s {
	case Satisfied:
		return "satisfied"
	case ConditionFailed:
		return "condition_failed"
	default:
		return "not_attempted"
	}
}

// Outcome результат одной операции
type Outcome struct {
	Name   string
	Status Status
}

// Outcomes упорядоченный список результатов операций
type Outcomes []Outcome

// Status возвращает статус операции по имени условия
func (o Outcomes) Status(name string) Status {
	for _, outcome := range o {
		if outcome.Name == name {
			return outcome.Status
		}
	}
	return NotAttempted
}

// Failed проверяет, что условие с указанным именем не выполнено
func (o Outcomes) Failed(name string) bool {
	return o.Status(name) == ConditionFailed
}

// CanceledError возвращается, когда хотя бы одно условие не выполнено
// и транзакция откачена
type CanceledError struct {
	Outcomes Outcomes
}

func (e *CanceledError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		parts = append(parts, o.Name+"="+o.Status.String())
	}
	return "transaction canceled: " + strings.Join(parts, ", ")
}

// AsCanceled извлекает CanceledError из цепочки ошибок
func AsCanceled(err error) (*CanceledError, bool) {
	var canceled *CanceledError
	if errors.As(err, &canceled) {
		return canceled, true
	}
	return nil, false
}

// Operation условная операция внутри транзакции.
// Apply возвращает true, если условие выполнено и изменение применено.
type Operation struct {
	Name  string
	Apply func(ctx context.Context, tx pgx.Tx) (bool, error)
}

// ConditionalExec операция, условие которой выполнено, если запрос затронул хотя бы одну строку
func ConditionalExec(name, sql string, args ...any) Operation {
	return Operation{
		Name: name,
		Apply: func(ctx context.Context, tx pgx.Tx) (bool, error) {
			tag, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return false, err
			}
			return tag.RowsAffected() > 0, nil
		},
	}
}

// Beginner открывает транзакцию (реализуется *pgxpool.Pool и pgx.Conn)
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Execute выполняет операции по порядку в одной транзакции. Все условия
// проверяются, фиксация происходит только если все выполнены. Иначе транзакция
// откатывается и возвращается *CanceledError со статусом каждой операции.
// Ошибки инфраструктуры возвращаются обернутыми без классификации.
func Execute(ctx context.Context, db Beginner, ops ...Operation) (err error) {
	if len(ops) == 0 {
		return errors.New("no operations to execute")
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	outcomes := make(Outcomes, len(ops))
	for i, op := range ops {
		outcomes[i] = Outcome{Name: op.Name, Status: NotAttempted}
	}

	canceled := false
	for i, op := range ops {
		ok, applyErr := op.Apply(ctx, tx)
		if applyErr != nil {
			return fmt.Errorf("operation %s failed: %w", op.Name, applyErr)
		}
		if ok {
			outcomes[i].Status = Satisfied
		} else {
			outcomes[i].Status = ConditionFailed
			canceled = true
		}
	}

	if canceled {
		return &CanceledError{Outcomes: outcomes}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
