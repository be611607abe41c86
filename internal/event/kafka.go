package event

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/cart-session/internal/domain/cart"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaConfig configures NewKafkaWriter.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// NewKafkaWriter returns an asynchronous writer that batches messages and
// balances them by key hash. WriteMessages only enqueues; delivery failures
// are logged to lg.
func NewKafkaWriter(lg *zap.Logger, cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		BatchSize:              100,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             logCompletion(lg),
	}
}

func logCompletion(lg *zap.Logger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		lg.Warn("Deliver cart events",
			zap.Int("messages", len(msgs)),
			zap.Error(err),
		)
	}
}

// KafkaNotifier publishes events keyed by instance. Write failures are
// logged and never reach the cart operation. With the writer from
// NewKafkaWriter, Emit does not wait for the broker.
type KafkaNotifier struct {
	w       MessageWriter
	timeout time.Duration
}

var _ cart.Notifier = (*KafkaNotifier)(nil)

// NewKafkaNotifier returns a KafkaNotifier on w. A zero timeout means 5s.
func NewKafkaNotifier(w MessageWriter, timeout time.Duration) *KafkaNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaNotifier{w: w, timeout: timeout}
}

// Emit implements cart.Notifier.
func (n *KafkaNotifier) Emit(ctx context.Context, ev cart.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.Instance),
		Value: Encode(ev),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(ev.Name)},
		},
	}
	if err := n.w.WriteMessages(ctx, msg); err != nil {
		zctx.From(ctx).Warn("Publish cart event",
			zap.String("event", ev.Name),
			zap.Error(err),
		)
	}
}
