package orders

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records order placement outcomes. A nil *Metrics records nothing.
type Metrics struct {
	placed   metric.Int64Counter
	rejected metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("orders")

	placed, err := meter.Int64Counter("gift.orders.placed",
		metric.WithDescription("Orders committed"))
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("gift.orders.rejected",
		metric.WithDescription("Orders rejected by a business rule, by reason"))
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter("gift.orders.failed",
		metric.WithDescription("Orders aborted by an infrastructure error"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("gift.orders.placement.duration",
		metric.WithDescription("Time spent placing an order"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		placed:   placed,
		rejected: rejected,
		failed:   failed,
		duration: duration,
	}, nil
}

func (m *Metrics) record(ctx context.Context, start, end time.Time, err error) {
	if m == nil {
		return
	}

	outcome := "placed"
	switch kind, ok := KindOf(err); {
	case err == nil:
		m.placed.Add(ctx, 1)
	case ok:
		outcome = "rejected"
		m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(kind))))
	default:
		outcome = "failed"
		m.failed.Add(ctx, 1)
	}

	m.duration.Record(ctx, end.Sub(start).Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}
