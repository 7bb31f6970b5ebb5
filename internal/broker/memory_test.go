package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/logger"
	"sift/pkg/models"
)

func TestMemoryHubFansOutToAllSubscribers(t *testing.T) {
	hub := NewMemoryHub()
	producer := hub.Producer(logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	received := map[string][]string{}

	var wg sync.WaitGroup
	for _, name := range []string{"oak", "tmx"} {
		name := name
		consumer := hub.Consumer(logger.NopLogger())
		consumer.SetServiceName(name)

		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Consume(ctx, "checkout_events", func(ctx context.Context, msg models.QueuedMessage) error {
				mu.Lock()
				received[name] = append(received[name], msg.ID)
				mu.Unlock()
				return nil
			})
		}()
	}

	// let both subscriptions register before publishing
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, producer.Publish(ctx, "checkout_events", models.QueuedMessage{ID: "msg-1"}))
	require.NoError(t, producer.Publish(ctx, "checkout_events", models.QueuedMessage{ID: "msg-2"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received["oak"]) == 2 && len(received["tmx"]) == 2
	}, time.Second, 10*time.Millisecond, "every subscriber sees every message")

	cancel()
	wg.Wait()
}

func TestMemoryProducerRespectsCanceledContext(t *testing.T) {
	hub := NewMemoryHub()
	producer := hub.Producer(logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Publish(ctx, "checkout_events", models.QueuedMessage{ID: "msg-1"})
	assert.Error(t, err)
}

func TestMemoryHubStoppedConsumerDoesNotBlockPublishes(t *testing.T) {
	hub := NewMemoryHub()
	producer := hub.Producer(logger.NopLogger())

	stopCtx, stop := context.WithCancel(context.Background())
	stopped := hub.Consumer(logger.NopLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		stopped.Consume(stopCtx, "checkout_events", func(ctx context.Context, msg models.QueuedMessage) error {
			return nil
		})
	}()

	time.Sleep(50 * time.Millisecond)
	stop()
	<-done

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got int
	live := hub.Consumer(logger.NopLogger())
	go live.Consume(ctx, "checkout_events", func(ctx context.Context, msg models.QueuedMessage) error {
		mu.Lock()
		got++
		mu.Unlock()
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	// well past the subscriber buffer size: a leftover subscription
	// would wedge the hub long before the loop finishes
	for i := 0; i < 200; i++ {
		require.NoError(t, producer.Publish(ctx, "checkout_events", models.QueuedMessage{ID: "msg"}))
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got > 0
	}, time.Second, 10*time.Millisecond, "remaining subscribers keep receiving")
}

func TestMemoryConsumerIgnoresOtherTopics(t *testing.T) {
	hub := NewMemoryHub()
	producer := hub.Producer(logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string

	consumer := hub.Consumer(logger.NopLogger())
	go consumer.Consume(ctx, "checkout_events", func(ctx context.Context, msg models.QueuedMessage) error {
		mu.Lock()
		got = append(got, msg.ID)
		mu.Unlock()
		return nil
	})

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, producer.Publish(ctx, "other_topic", models.QueuedMessage{ID: "skip"}))
	require.NoError(t, producer.Publish(ctx, "checkout_events", models.QueuedMessage{ID: "keep"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "keep"
	}, time.Second, 10*time.Millisecond)
}
