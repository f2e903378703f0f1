package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	skafka "github.com/segmentio/kafka-go"

	"github.com/kargonusa/freight-core/internal/core/ports"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

// Publisher writes domain events to one topic, keyed by aggregate id so the
// events of one shipment or invoice stay in one partition.
type Publisher struct {
	writer Writer
	log    zerolog.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher connects a writer to brokers. Writes are async so a slow
// broker never holds up a committed request.
func NewPublisher(brokers []string, topic string, log zerolog.Logger) *Publisher {
	w := &skafka.Writer{
		Addr:         skafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &skafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []skafka.Message, err error) {
			if err != nil {
				log.Warn().Err(err).Int("messages", len(msgs)).Msg("kafka delivery failed")
			}
		},
	}
	return &Publisher{writer: w, log: log}
}

// NewPublisherWithWriter allows injecting a test writer.
func NewPublisherWithWriter(w Writer, log zerolog.Logger) *Publisher {
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event ports.DomainEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}
	msg := skafka.Message{
		Key:   []byte(event.AggregateID),
		Value: b,
		Time:  event.OccurredAt,
		Headers: []skafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", event.Type, err)
	}
	p.log.Debug().Str("event_type", event.Type).Str("aggregate_id", event.AggregateID).Msg("domain event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// LogPublisher only logs events. It stands in when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event ports.DomainEvent) error {
	p.log.Debug().Str("event_type", event.Type).Str("aggregate_id", event.AggregateID).Msg("domain event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
