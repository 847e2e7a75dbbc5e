package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/literature-digest-service/internal/domain"
)

// EventTypeRunRequested asks the service to run the daily job now.
const EventTypeRunRequested = "digest.run.requested"

// RunRequest is the JSON body of a run request message.
type RunRequest struct {
	// RequestedBy identifies the sender in logs.
	RequestedBy string `json:"requested_by"`
	// Force bypasses the daily marker check.
	Force bool `json:"force"`
}

// Trigger starts a run.
type Trigger interface {
	Run(ctx context.Context, force bool) (*domain.RunSummary, error)
}

// messageReader is the subset of *kafka.Reader used by Listener.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ListenerConfig holds configuration for the run request listener.
type ListenerConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic carries run requests.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// Listener consumes run requests from Kafka and triggers runs.
type Listener struct {
	reader  messageReader
	trigger Trigger
	logger  zerolog.Logger
}

// NewListener creates a run request listener.
func NewListener(cfg ListenerConfig, trigger Trigger, logger zerolog.Logger) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newListener(reader, trigger, logger)
}

func newListener(reader messageReader, trigger Trigger, logger zerolog.Logger) *Listener {
	return &Listener{
		reader:  reader,
		trigger: trigger,
		logger:  logger.With().Str("component", "run_request_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until context is cancelled. Runs are
// triggered synchronously, so requests arriving during a run wait for it.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting run request listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("run request listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received run request")

		if eventType := header(msg, HeaderEventType); eventType != "" && eventType != EventTypeRunRequested {
			l.logger.Debug().Str("event_type", eventType).Msg("ignoring message of another type")
			continue
		}

		var req RunRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal run request")
			continue
		}

		l.handle(ctx, req)
	}
}

func (l *Listener) handle(ctx context.Context, req RunRequest) {
	log := l.logger.With().
		Str("requested_by", req.RequestedBy).
		Bool("force", req.Force).
		Logger()
	log.Info().Msg("handling run request")

	summary, err := l.trigger.Run(ctx, req.Force)
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		log.Warn().Msg("run already in progress, request dropped")
	case err != nil:
		log.Error().Err(err).Msg("requested run failed")
	case summary != nil:
		log.Info().
			Str("run_id", summary.RunID.String()).
			Str("status", string(summary.Status)).
			Msg("requested run finished")
	}
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing run request listener")
	return l.reader.Close()
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
