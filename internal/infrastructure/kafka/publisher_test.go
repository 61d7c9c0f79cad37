package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	dominv "github.com/Zhima-Mochi/storefront/internal/domain/inventory"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

type unkeyedEvent struct {
	Note string `json:"note"`
}

func (unkeyedEvent) EventName() string { return "test.unkeyed" }

func TestPublisher_EncodesEnvelope(t *testing.T) {
	w := &captureWriter{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &Publisher{writer: w, now: func() time.Time { return fixed }}

	evt := dominv.NewStockAdjustedEvent("sess_1", "p1", 2, 8)
	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "p1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "inventory.stock_adjusted", string(msg.Headers[0].Value))

	var env envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "inventory.stock_adjusted", env.Event)
	assert.True(t, fixed.Equal(env.OccurredAt))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "sess_1", payload["session_id"])
	assert.EqualValues(t, 8, payload["remaining"])
}

func TestPublisher_UnkeyedEventHasNoKey(t *testing.T) {
	w := &captureWriter{}
	p := &Publisher{writer: w, now: time.Now}

	require.NoError(t, p.Publish(context.Background(), unkeyedEvent{Note: "hi"}))
	require.Len(t, w.msgs, 1)
	assert.Nil(t, w.msgs[0].Key)
}

func TestPublisher_WriteError(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	p := &Publisher{writer: w, now: time.Now}

	err := p.Publish(context.Background(), unkeyedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test.unkeyed")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisher_DefaultTopic(t *testing.T) {
	p := NewPublisher("", "localhost:9092")
	kw, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, kw.Topic)
}
