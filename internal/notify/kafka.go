package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON to a topic for an external
// mail worker. Messages are keyed by recipient so one account's
// notifications stay ordered.
type KafkaNotifier struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *zap.Logger) *KafkaNotifier {
	return newKafkaNotifier(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}, topic, log)
}

func newKafkaNotifier(w messageWriter, topic string, log *zap.Logger) *KafkaNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &KafkaNotifier{
		w:     w,
		topic: topic,
		log:   log.With(zap.String("component", "kafka.notifier"), zap.String("topic", topic)),
	}
}

func (k *KafkaNotifier) Send(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	ctx, span := otel.Tracer("authcore/notify").Start(ctx, "kafka.produce "+k.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", k.topic),
			attribute.String("authcore.notification.kind", n.Kind),
		),
	)
	defer span.End()

	hdrs := headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, hdrs)

	msg := kafka.Message{Key: []byte(n.Recipient), Value: value, Headers: hdrs.toKafka()}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kafka write failed")
		k.log.Error("kafka write failed", zap.String("kind", n.Kind), zap.Error(err))
		return err
	}
	k.log.Debug("notification published", zap.String("kind", n.Kind), zap.Int("value_len", len(value)))
	return nil
}

func (k *KafkaNotifier) Close() error { return k.w.Close() }

type headerCarrier map[string]string

func (h headerCarrier) Get(key string) string { return h[key] }
func (h headerCarrier) Set(key, v string)     { h[key] = v }
func (h headerCarrier) Keys() []string {
	ks := make([]string, 0, len(h))
	for k := range h {
		ks = append(ks, k)
	}
	return ks
}

func (h headerCarrier) toKafka() []kafka.Header {
	hs := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		hs = append(hs, kafka.Header{Key: k, Value: []byte(v)})
	}
	return hs
}
