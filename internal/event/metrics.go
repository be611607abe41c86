package event

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/cart-session/internal/domain/cart"
)

// MetricsNotifier counts events by name.
type MetricsNotifier struct {
	events metric.Int64Counter
}

var _ cart.Notifier = (*MetricsNotifier)(nil)

// NewMetricsNotifier registers the cart.events counter on mp.
func NewMetricsNotifier(mp metric.MeterProvider) (*MetricsNotifier, error) {
	meter := mp.Meter("github.com/xenking/cart-session/internal/event")
	events, err := meter.Int64Counter("cart.events",
		metric.WithDescription("Cart events emitted, by event name"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart.events counter")
	}
	return &MetricsNotifier{events: events}, nil
}

// Emit implements cart.Notifier.
func (n *MetricsNotifier) Emit(ctx context.Context, ev cart.Event) {
	n.events.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", ev.Name),
		attribute.String("instance", ev.Instance),
	))
}
