// Package events publishes run lifecycle events to Kafka and consumes run
// requests from it.
package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/literature-digest-service/internal/domain"
)

// Message header names set on every published event.
const (
	HeaderEventID      = "event_id"
	HeaderEventType    = "event_type"
	HeaderEventVersion = "event_version"
)

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublisherConfig holds configuration for the Kafka publisher.
type PublisherConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic receives run events.
	Topic string
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
	// WriteTimeout bounds a single write.
	WriteTimeout time.Duration
}

// KafkaPublisher publishes run events keyed by run ID.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic.
func NewKafkaPublisher(cfg PublisherConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "event_publisher").Str("topic", topic).Logger(),
	}
}

// Publish writes one event. The message key is the run ID so all events of
// a run land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.RunEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.RunID),
		Value: event.Payload,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(event.EventID)},
			{Key: HeaderEventType, Value: []byte(event.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(event.EventVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for run %s: %w", event.EventType, event.RunID, err)
	}

	p.logger.Info().
		Str("event_id", event.EventID).
		Str("event_type", event.EventType).
		Str("run_id", event.RunID).
		Msg("run event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}

// NoopPublisher discards events. It is used when Kafka is disabled.
type NoopPublisher struct{}

// Publish implements schedule.EventPublisher.
func (NoopPublisher) Publish(context.Context, *domain.RunEvent) error { return nil }

// Close implements io.Closer.
func (NoopPublisher) Close() error { return nil }
