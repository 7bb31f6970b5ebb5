package broker

import (
	"context"

	"sift/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.QueuedMessage) error
	Close() error
}

// Consumer delivers queued messages to a handler one at a time. Retries,
// dead-lettering and batch commit semantics are the consumer's concern,
// not the handler's.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.QueuedMessage) error
