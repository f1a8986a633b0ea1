// Package metrics предоставляет систему метрик на основе OpenTelemetry.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics сборщик метрик приложения
type Metrics struct {
	meter              metric.Meter
	allocationsTotal   metric.Int64Counter
	allocationDuration metric.Float64Histogram
	batchRecordsTotal  metric.Int64Counter
	eventAppendsTotal  metric.Int64Counter
	transportTotal     metric.Int64Counter
	errorsTotal        metric.Int64Counter
}

// NewMetrics создает новый сборщик метрик на глобальном MeterProvider
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithProvider(otel.GetMeterProvider())
}

// NewMetricsWithProvider создает сборщик метрик на указанном MeterProvider
func NewMetricsWithProvider(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("stockflow")

	allocationsTotal, err := meter.Int64Counter(
		"allocations_total",
		metric.WithDescription("Total number of allocation workflows by terminal outcome"),
	)
	if err != nil {
		return nil, err
	}

	allocationDuration, err := meter.Float64Histogram(
		"allocation_duration_seconds",
		metric.WithDescription("Allocation workflow duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	batchRecordsTotal, err := meter.Int64Counter(
		"batch_records_total",
		metric.WithDescription("Total number of batch records by result"),
	)
	if err != nil {
		return nil, err
	}

	eventAppendsTotal, err := meter.Int64Counter(
		"event_appends_total",
		metric.WithDescription("Total number of domain event appends by kind and result"),
	)
	if err != nil {
		return nil, err
	}

	transportTotal, err := meter.Int64Counter(
		"transport_messages_total",
		metric.WithDescription("Total number of transport operations"),
	)
	if err != nil {
		return nil, err
	}

	errorsTotal, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		meter:              meter,
		allocationsTotal:   allocationsTotal,
		allocationDuration: allocationDuration,
		batchRecordsTotal:  batchRecordsTotal,
		eventAppendsTotal:  eventAppendsTotal,
		transportTotal:     transportTotal,
		errorsTotal:        errorsTotal,
	}, nil
}

// RecordAllocation записывает итог процесса резервирования
func (m *Metrics) RecordAllocation(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.allocationsTotal.Add(ctx, 1, attrs)
	m.allocationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordBatchRecord записывает результат обработки записи пакета
func (m *Metrics) RecordBatchRecord(ctx context.Context, result string) {
	m.batchRecordsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordEventAppend записывает результат записи доменного события
func (m *Metrics) RecordEventAppend(ctx context.Context, kind, result string) {
	m.eventAppendsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RecordTransport записывает метрику транспорта
func (m *Metrics) RecordTransport(ctx context.Context, transportName, operation string, success bool) {
	m.transportTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("transport", transportName),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	))
	if !success {
		m.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", "transport"),
			attribute.String("transport", transportName),
		))
	}
}
