package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/motorlot/marketplace-api/internal/lifecycle"
)

const TransitionEventType = "listing.transition"

// TransitionEvent is the envelope written for every applied transition.
type TransitionEvent struct {
	Type       string               `json:"type"`
	OccurredAt time.Time            `json:"occurred_at"`
	Transition lifecycle.Transition `json:"transition"`
}

// Publisher fans applied transitions out to downstream consumers.
type Publisher interface {
	PublishTransition(ctx context.Context, transition lifecycle.Transition) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig contains the producer settings.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxAttempts  int
	WriteTimeout time.Duration
}

// KafkaPublisher writes transition events keyed by listing id so events for
// one listing stay ordered on one partition.
type KafkaPublisher struct {
	writer      messageWriter
	maxAttempts int
	backoff     time.Duration
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: at least one kafka broker required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("events: kafka topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return newKafkaPublisher(writer, cfg.MaxAttempts), nil
}

func newKafkaPublisher(writer messageWriter, maxAttempts int) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, maxAttempts: maxAttempts, backoff: 100 * time.Millisecond}
}

func (p *KafkaPublisher) PublishTransition(ctx context.Context, transition lifecycle.Transition) error {
	value, err := json.Marshal(TransitionEvent{
		Type:       TransitionEventType,
		OccurredAt: transition.At,
		Transition: transition,
	})
	if err != nil {
		return fmt.Errorf("events: encode transition: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(transition.ListingID),
		Value: value,
		Time:  transition.At,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TransitionEventType)},
			{Key: "action", Value: []byte(transition.Action)},
		},
	}

	var lastErr error
	backoff := p.backoff
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("events: publish %s: %w", transition.ListingID, ctx.Err())
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("events: publish %s after %d attempts: %w", transition.ListingID, p.maxAttempts, lastErr)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records transitions in the service log when no broker is
// configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishTransition(ctx context.Context, transition lifecycle.Transition) error {
	p.logger.InfoContext(ctx, "listing transition",
		slog.String("listing_id", transition.ListingID),
		slog.String("action", string(transition.Action)),
		slog.String("from", string(transition.From)),
		slog.String("to", string(transition.To)),
		slog.String("actor_id", transition.ActorID),
		slog.Int64("version", transition.Version),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
