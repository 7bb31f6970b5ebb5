package models

import (
	"encoding/json"
	"fmt"
)

// QueuedMessage is the envelope the pub/sub substrate delivers to consumers.
// Message is the JSON-encoded InboundEvent; DeliveryCount tracks how many
// times this message has been handed to a consumer and drives DLQ routing.
type QueuedMessage struct {
	ID            string `json:"id,omitempty"`
	Message       string `json:"Message"`
	DeliveryCount int    `json:"-"`
}

// NewQueuedMessage wraps an InboundEvent for publishing.
func NewQueuedMessage(id string, event InboundEvent) (QueuedMessage, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return QueuedMessage{}, fmt.Errorf("failed to marshal inbound event: %w", err)
	}
	return QueuedMessage{ID: id, Message: string(body)}, nil
}

// Event decodes the wrapped InboundEvent.
func (m QueuedMessage) Event() (InboundEvent, error) {
	var event InboundEvent
	if err := json.Unmarshal([]byte(m.Message), &event); err != nil {
		return InboundEvent{}, fmt.Errorf("failed to unmarshal inbound event: %w", err)
	}
	return event, nil
}
