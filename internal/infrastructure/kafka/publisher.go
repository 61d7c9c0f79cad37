package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/storefront/internal/domain/outbox"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "storefront-settlement"

type envelope struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes domain events to one topic. Keyed events keep per-key ordering.
type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewPublisher(topic string, brokers ...string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		now: time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	msg, err := p.encode(e)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s: %w", e.EventName(), err)
	}
	return nil
}

func (p *Publisher) encode(e domoutbox.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal %s: %w", e.EventName(), err)
	}
	env := envelope{
		ID:         uuid.NewString(),
		Event:      e.EventName(),
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventName())},
		},
	}
	if k, ok := e.(domoutbox.Keyed); ok {
		msg.Key = []byte(k.PartitionKey())
	}
	return msg, nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
