package event

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/cart-session/internal/domain/cart"
)

// LogNotifier writes each event to the request logger.
type LogNotifier struct{}

var _ cart.Notifier = LogNotifier{}

// Emit implements cart.Notifier.
func (LogNotifier) Emit(ctx context.Context, ev cart.Event) {
	fields := []zap.Field{
		zap.String("event", ev.Name),
		zap.String("instance", ev.Instance),
	}
	if ev.Identifier != "" {
		fields = append(fields, zap.String("identifier", ev.Identifier))
	}
	if ev.Item != nil {
		fields = append(fields,
			zap.String("row_id", ev.Item.RowID()),
			zap.String("id", ev.Item.ID()),
			zap.Int("qty", ev.Item.Qty()),
		)
	}
	zctx.From(ctx).Info("Cart event", fields...)
}
