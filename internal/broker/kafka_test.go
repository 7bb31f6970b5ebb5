package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/logger"
	"sift/pkg/errors"
	"sift/pkg/models"
)

type recordingProducer struct {
	mu       sync.Mutex
	topics   []string
	messages []models.QueuedMessage
}

func (p *recordingProducer) Publish(ctx context.Context, topic string, msg models.QueuedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func newTestConsumer(dlq *recordingProducer) *KafkaConsumer {
	return &KafkaConsumer{
		cfg: config.KafkaConfig{
			DLQTopic: "checkout_events_dlq",
			Retry: config.RetryConfig{
				MaxAttempts:     3,
				InitialInterval: time.Millisecond,
				MaxInterval:     time.Millisecond,
				Multiplier:      1.0,
			},
		},
		logger:      logger.NopLogger(),
		dlqProducer: dlq,
		serviceName: "oak",
	}
}

func kafkaMessage(t *testing.T, id string) kafka.Message {
	t.Helper()
	msg, err := models.NewQueuedMessage(id, models.InboundEvent{
		Body: json.RawMessage(`{"session-id":"ABC-123"}`),
	})
	require.NoError(t, err)

	value, err := json.Marshal(msg)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestHandleMessageDeadLettersAfterRetries(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	attempts := 0
	handler := func(ctx context.Context, msg models.QueuedMessage) error {
		attempts++
		return errors.ErrStorageWrite.WithCause(fmt.Errorf("store down"))
	}

	c.handleMessage(context.Background(), "checkout_events", kafkaMessage(t, "msg-1"), handler)

	assert.Equal(t, 3, attempts, "retryable failures use every attempt")
	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "checkout_events_dlq", dlq.topics[0])
	assert.Equal(t, "msg-1", dlq.messages[0].ID)
}

func TestHandleMessageDeadLettersNonRetryableImmediately(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	attempts := 0
	handler := func(ctx context.Context, msg models.QueuedMessage) error {
		attempts++
		return errors.ErrValidation.WithCause(fmt.Errorf("bad payload"))
	}

	c.handleMessage(context.Background(), "checkout_events", kafkaMessage(t, "msg-2"), handler)

	assert.Equal(t, 1, attempts, "non-retryable failures are not retried")
	assert.Len(t, dlq.messages, 1)
}

func TestHandleMessageDeadLettersUnparseablePayload(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	called := false
	handler := func(ctx context.Context, msg models.QueuedMessage) error {
		called = true
		return nil
	}

	c.handleMessage(context.Background(), "checkout_events", kafka.Message{Value: []byte("not json")}, handler)

	assert.False(t, called, "unparseable payloads never reach the handler")
	assert.Len(t, dlq.messages, 1)
}

func TestHandleMessageSuccessSkipsDLQ(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	handler := func(ctx context.Context, msg models.QueuedMessage) error { return nil }
	c.handleMessage(context.Background(), "checkout_events", kafkaMessage(t, "msg-3"), handler)

	assert.Empty(t, dlq.messages)
}
