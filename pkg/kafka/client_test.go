package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-chat-go/internal/config"
	"persona-chat-go/pkg/tasks"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewPublisher_NoBrokersIsNoop(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{Brokers: " , ", Topic: "conversation-events"})
	_, ok := p.(noopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.Publish(context.Background(), tasks.ConversationEvent{Type: tasks.EventConversationSaved}))
	assert.NoError(t, p.Close())
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers("a:9092, b:9092,"))
	assert.Nil(t, splitBrokers(""))
}

func TestPublish_KeysByConversation(t *testing.T) {
	w := &fakeWriter{}
	p := &kafkaPublisher{writer: w}
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, p.Publish(context.Background(), tasks.ConversationEvent{
		Type:           tasks.EventConversationSaved,
		ConversationID: "c-1",
		Personality:    "desenvolvedor",
		MessageCount:   4,
		OccurredAt:     at,
	}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("c-1"), w.msgs[0].Key)
	assert.Equal(t, "event-type", w.msgs[0].Headers[0].Key)

	var got tasks.ConversationEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, tasks.EventConversationSaved, got.Type)
	assert.Equal(t, 4, got.MessageCount)
	assert.True(t, got.OccurredAt.Equal(at))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublish_CleanupHasNoKey(t *testing.T) {
	msg, err := encodeEvent(tasks.ConversationEvent{Type: tasks.EventConversationCleanup, Removed: 3})
	require.NoError(t, err)
	assert.Nil(t, msg.Key)
}

func TestPublish_WrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := &kafkaPublisher{writer: &fakeWriter{err: boom}}
	err := p.Publish(context.Background(), tasks.ConversationEvent{Type: tasks.EventConversationDeleted, ConversationID: "x"})
	assert.ErrorIs(t, err, boom)
}
