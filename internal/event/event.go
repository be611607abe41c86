// Package event provides cart.Notifier implementations: structured logs,
// Kafka messages and an OpenTelemetry counter.
package event

import (
	"context"

	"github.com/go-faster/jx"

	"github.com/xenking/cart-session/internal/domain/cart"
)

// Encode renders ev as a JSON object with event, instance, optional
// identifier and optional item.
func Encode(ev cart.Event) []byte {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("event")
	e.Str(ev.Name)
	e.FieldStart("instance")
	e.Str(ev.Instance)
	if ev.Identifier != "" {
		e.FieldStart("identifier")
		e.Str(ev.Identifier)
	}
	if ev.Item != nil {
		e.FieldStart("item")
		ev.Item.Encode(e)
	}
	e.ObjEnd()
	return e.Bytes()
}

// Multi fans an event out to every notifier in order.
type Multi []cart.Notifier

var _ cart.Notifier = Multi(nil)

// Emit implements cart.Notifier.
func (m Multi) Emit(ctx context.Context, ev cart.Event) {
	for _, n := range m {
		n.Emit(ctx, ev)
	}
}
