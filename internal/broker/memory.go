package broker

import (
	"context"
	"sync"

	"sift/internal/logger"
	"sift/pkg/models"
)

// MemoryHub is a process-local broker used in tests and single-binary
// runs. Every subscriber on a topic receives every message, mirroring the
// fan-out the kafka broker gets from per-processor consumer groups.
type MemoryHub struct {
	mu   sync.RWMutex
	subs map[string][]chan models.QueuedMessage
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string][]chan models.QueuedMessage)}
}

func (h *MemoryHub) Producer(log logger.Logger) *MemoryProducer {
	return &MemoryProducer{hub: h, logger: log}
}

func (h *MemoryHub) Consumer(log logger.Logger) *MemoryConsumer {
	return &MemoryConsumer{hub: h, logger: log, serviceName: "unknown"}
}

// publish delivers the message without blocking. A subscriber whose buffer
// is full loses the message rather than stalling the hub; the number of
// drops is reported to the caller.
func (h *MemoryHub) publish(topic string, msg models.QueuedMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, ch := range h.subs[topic] {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *MemoryHub) subscribe(topic string) chan models.QueuedMessage {
	ch := make(chan models.QueuedMessage, 64)
	h.mu.Lock()
	h.subs[topic] = append(h.subs[topic], ch)
	h.mu.Unlock()
	return ch
}

func (h *MemoryHub) unsubscribe(topic string, ch chan models.QueuedMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[topic]
	for i, sub := range subs {
		if sub == ch {
			h.subs[topic] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

type MemoryProducer struct {
	hub    *MemoryHub
	logger logger.Logger
}

func (p *MemoryProducer) Publish(ctx context.Context, topic string, msg models.QueuedMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dropped := p.hub.publish(topic, msg); dropped > 0 {
		p.logger.Warnw("Dropped message for slow subscribers",
			"topic", topic,
			"message_id", msg.ID,
			"subscribers", dropped,
		)
	}
	return nil
}

func (p *MemoryProducer) Close() error { return nil }

type MemoryConsumer struct {
	hub         *MemoryHub
	logger      logger.Logger
	serviceName string
}

func (c *MemoryConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *MemoryConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	ch := c.hub.subscribe(topic)
	defer c.hub.unsubscribe(topic, ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			msg.DeliveryCount = 1
			if err := handler(ctx, msg); err != nil {
				c.logger.Errorw("Failed to process message",
					"error", err,
					"topic", topic,
					"service_name", c.serviceName,
				)
			}
		}
	}
}

func (c *MemoryConsumer) Close() error { return nil }
