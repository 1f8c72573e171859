package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal    metric.Int64Counter
	orderCreationDuration metric.Float64Histogram
	orderMutationsTotal   metric.Int64Counter
	receiptsRendered      metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of orders created"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.orderMutationsTotal, err = meter.Int64Counter(
		"order_mutations_total",
		metric.WithDescription("Total order update, status and removal operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_mutations_total counter: %w", err)
	}

	m.receiptsRendered, err = meter.Int64Counter(
		"order_receipts_rendered_total",
		metric.WithDescription("Total receipts rendered for delivered orders"),
		metric.WithUnit("{receipt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_receipts_rendered_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordOrderMutation(ctx context.Context, operation string, success bool) {
	m.orderMutationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", statusLabel(success)),
	))
}

func (m *Metrics) RecordReceiptRendered(ctx context.Context) {
	m.receiptsRendered.Add(ctx, 1)
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
