package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Geo-Search-Index/pkg/errors"
)

// Keyed is implemented by every event published through a Producer. Events
// with the same partition key land on the same partition in publish order,
// so all events of one document are applied in sequence.
type Keyed interface {
	PartitionKey() string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events of type T as JSON to a single topic.
type Producer[T Keyed] struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewProducer creates a synchronous Producer: Publish returns once every
// in-sync replica acknowledged the write.
func NewProducer[T Keyed](cfg config.KafkaConfig, topic string) *Producer[T] {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newProducer[T](w, topic)
}

func newProducer[T Keyed](w messageWriter, topic string) *Producer[T] {
	return &Producer[T]{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish writes one event.
func (p *Producer[T]) Publish(ctx context.Context, event T) error {
	return p.PublishBatch(ctx, []T{event})
}

// PublishBatch writes events in a single call. An event without a partition
// key is rejected before anything is sent. A broker failure is reported as
// apperrors.ErrBrokerUnavailable.
func (p *Producer[T]) PublishBatch(ctx context.Context, events []T) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := encode(event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("failed to publish", "count", len(msgs), "first_key", string(msgs[0].Key), "error", err)
		return fmt.Errorf("%w: publishing %d events to %s: %w", apperrors.ErrBrokerUnavailable, len(msgs), p.topic, err)
	}
	p.logger.Debug("events published", "count", len(msgs), "first_key", string(msgs[0].Key))
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Producer[T]) Close() error {
	return p.writer.Close()
}

func encode[T Keyed](event T) (kafka.Message, error) {
	key := event.PartitionKey()
	if key == "" {
		return kafka.Message{}, apperrors.New(apperrors.ErrInvalidInput, 400, "event has no partition key")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %s: %w", key, err)
	}
	return kafka.Message{Key: []byte(key), Value: value}, nil
}
