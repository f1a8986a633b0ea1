package application

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akriventsev/stockflow/framework/core"
	"github.com/akriventsev/stockflow/framework/metrics"
	"github.com/akriventsev/stockflow/internal/inventory/domain"
)

type allocationState int

const (
	stateStart allocationState = iota
	stateInputValidated
	stateChecked
	stateAlreadyAllocated
	stateAllocationAttempted
	stateAllocated
	stateDepleted
	stateDuplicateFromRace
	stateEventRaised
	stateDone
)

func (s allocationState) String() string {
	switch s {
	case stateStart:
		return "Start"
	case stateInputValidated:
		return "InputValidated"
	case stateChecked:
		return "Checked"
	case stateAlreadyAllocated:
		return "AlreadyAllocated"
	case stateAllocationAttempted:
		return "AllocationAttempted"
	case stateAllocated:
		return "Allocated"
	case stateDepleted:
		return "Depleted"
	case stateDuplicateFromRace:
		return "DuplicateFromRace"
	case stateEventRaised:
		return "EventRaised"
	case stateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Итоги процесса для метрик
const (
	OutcomeAllocated         = "allocated"
	OutcomeAlreadyAllocated  = "already_allocated"
	OutcomeDuplicateFromRace = "duplicate_from_race"
	OutcomeDepleted          = "depleted"
	OutcomeInvalid           = "invalid"
	OutcomeFailed            = "failed"
)

// AllocateOrderStockWorker оркестратор резервирования товара под заказ.
// Не использует блокировок: корректность при конкурентной доставке обеспечивают
// условная транзакция хранилища и идемпотентная запись события.
type AllocateOrderStockWorker struct {
	store    AllocationStore
	appender EventAppender
	logger   *zap.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewAllocateOrderStockWorker создает оркестратор
func NewAllocateOrderStockWorker(store AllocationStore, appender EventAppender, logger *zap.Logger, m *metrics.Metrics, tracer trace.Tracer) *AllocateOrderStockWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = otel.Tracer("stockflow/allocation")
	}
	return &AllocateOrderStockWorker{
		store:    store,
		appender: appender,
		logger:   logger.Named("allocate-order-stock"),
		metrics:  m,
		tracer:   tracer,
	}
}

// Allocate проводит уведомление через все состояния до Done или до ошибки.
// Повторная доставка того же уведомления безопасна.
func (w *AllocateOrderStockWorker) Allocate(ctx context.Context, notification domain.OrderCreatedNotification) core.Result[struct{}] {
	started := time.Now()
	ctx, span := w.tracer.Start(ctx, "AllocateOrderStock", trace.WithAttributes(
		attribute.String("order.id", notification.OrderID()),
		attribute.String("order.sku", notification.Sku()),
		attribute.Int("order.units", notification.Units()),
	))
	defer span.End()

	result, outcome := w.run(ctx, notification)

	span.SetAttributes(attribute.String("allocation.outcome", outcome))
	if result.IsErr() {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
	}
	if w.metrics != nil {
		w.metrics.RecordAllocation(ctx, outcome, time.Since(started))
	}
	return result
}

func (w *AllocateOrderStockWorker) run(ctx context.Context, notification domain.OrderCreatedNotification) (core.Result[struct{}], string) {
	logger := w.logger.With(
		zap.String("order_id", notification.OrderID()),
		zap.String("sku", notification.Sku()),
	)

	var (
		cmd      domain.AllocateOrderStockCommand
		existing core.Option[domain.StockAllocation]
		outcome  string
	)

	state := stateStart
	for {
		logger.Debug("allocation state", zap.Stringer("state", state))

		switch state {
		case stateStart:
			built := domain.NewAllocateOrderStockCommand(notification)
			if built.IsErr() {
				logger.Info("invalid notification dropped", zap.Error(built.Err()))
				return core.Propagate[struct{}](built), OutcomeInvalid
			}
			cmd = built.Value()
			state = stateInputValidated

		case stateInputValidated:
			found := w.store.GetAllocation(ctx, cmd.OrderID(), cmd.Sku())
			if found.IsErr() {
				logger.Warn("failed to check allocation", zap.Error(found.Err()), zap.Bool("transient", found.IsFailureTransient()))
				return core.Propagate[struct{}](found), OutcomeFailed
			}
			existing = found.Value()
			state = stateChecked

		case stateChecked:
			if existing.IsSome() {
				state = stateAlreadyAllocated
			} else {
				state = stateAllocationAttempted
			}

		case stateAllocationAttempted:
			allocated := w.store.Allocate(ctx, cmd)
			switch {
			case allocated.IsOk():
				state = stateAllocated
			case allocated.IsFailureOfKind(domain.DuplicateStockAllocationError):
				state = stateDuplicateFromRace
			case allocated.IsFailureOfKind(domain.DepletedStockAllocationError):
				state = stateDepleted
			default:
				logger.Warn("allocation failed", zap.Error(allocated.Err()), zap.Bool("transient", allocated.IsFailureTransient()))
				return allocated, OutcomeFailed
			}

		case stateAllocated, stateAlreadyAllocated, stateDuplicateFromRace:
			outcome = allocatedOutcome(state)
			if raised := w.raise(ctx, logger, domain.NewOrderStockAllocatedEvent(cmd)); raised.IsErr() {
				return raised, OutcomeFailed
			}
			state = stateEventRaised

		case stateDepleted:
			outcome = OutcomeDepleted
			if raised := w.raise(ctx, logger, domain.NewOrderStockDepletedEvent(cmd)); raised.IsErr() {
				return raised, OutcomeFailed
			}
			state = stateEventRaised

		case stateEventRaised:
			state = stateDone

		case stateDone:
			logger.Debug("allocation done", zap.String("outcome", outcome))
			return core.Ok(struct{}{}), outcome
		}
	}
}

// raise записывает событие; повторная запись считается успехом
func (w *AllocateOrderStockWorker) raise(ctx context.Context, logger *zap.Logger, built core.Result[*domain.AllocationEvent]) core.Result[struct{}] {
	if built.IsErr() {
		return core.Propagate[struct{}](built)
	}
	event := built.Value()

	appended := w.appender.Append(ctx, event)
	switch {
	case appended.IsOk():
		logger.Debug("event raised", zap.String("kind", event.EventType()))
		return appended
	case appended.IsFailureOfKind(domain.DuplicateEventRaisedError):
		logger.Debug("event already raised", zap.String("kind", event.EventType()))
		return core.Ok(struct{}{})
	default:
		logger.Warn("failed to raise event",
			zap.String("kind", event.EventType()),
			zap.Error(appended.Err()),
			zap.Bool("transient", appended.IsFailureTransient()))
		return appended
	}
}

func allocatedOutcome(state allocationState) string {
	switch state {
	case stateAlreadyAllocated:
		return OutcomeAlreadyAllocated
	case stateDuplicateFromRace:
		return OutcomeDuplicateFromRace
	default:
		return OutcomeAllocated
	}
}
