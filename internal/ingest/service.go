package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"sift/internal/broker"
	"sift/internal/constants"
	"sift/internal/dedup"
	"sift/internal/logger"
	"sift/internal/secrets"
	"sift/pkg/errors"
	"sift/pkg/metrics"
	"sift/pkg/models"
)

// Service accepts validated events at the edge, suppresses near-duplicate
// submissions, and publishes the rest for the processors to consume.
type Service struct {
	producer broker.Producer
	dedup    *dedup.Deduplicator
	secrets  *secrets.Cache
	topic    string
	logger   logger.Logger
}

func NewService(producer broker.Producer, d *dedup.Deduplicator, cache *secrets.Cache, topic string, log logger.Logger) *Service {
	if topic == "" {
		topic = constants.DefaultCheckoutTopic
	}

	return &Service{
		producer: producer,
		dedup:    d,
		secrets:  cache,
		topic:    topic,
		logger:   log,
	}
}

// IsWarmup reports whether the body is the synthetic keep-alive payload.
// Warmup requests prime the secret cache and are never published.
func IsWarmup(body []byte) bool {
	var probe struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return false
	}
	return probe.Source == constants.WarmupSource
}

// Warmup refreshes the secret cache so the first real request after a cold
// start does not pay for the fetch. Failures are logged, not surfaced.
func (s *Service) Warmup(ctx context.Context) {
	if s.secrets == nil {
		return
	}
	if _, err := s.secrets.Get(ctx); err != nil {
		s.logger.WarnwCtx(ctx, "Secret prefetch failed during warmup", "error", err)
	}
}

// ValidateCheckout enforces the checkout contract: a JSON object whose only
// member is session-id, a non-empty string of at most 255 characters.
func ValidateCheckout(body []byte) error {
	var payload struct {
		SessionID string `json:"session-id"`
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return errors.ErrValidation.WithCause(err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.ErrValidation.WithCause(fmt.Errorf("unexpected data after JSON object"))
	}

	return validateSessionID(payload.SessionID, "session-id")
}

// ValidateTracker requires sessionId but lets the rest of the payload
// through untouched.
func ValidateTracker(body []byte) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return errors.ErrValidation.WithCause(err)
	}

	sessionID, _ := payload["sessionId"].(string)
	return validateSessionID(sessionID, "sessionId")
}

func validateSessionID(value, field string) error {
	if value == "" {
		return errors.ErrValidation.
			WithCause(fmt.Errorf("%s is required and must be a non-empty string", field)).
			WithDetail("field", field)
	}
	if len(value) > constants.SessionIDMaxLength {
		return errors.ErrValidation.
			WithCause(fmt.Errorf("%s exceeds %d characters", field, constants.SessionIDMaxLength)).
			WithDetail("field", field)
	}
	return nil
}

// Accept runs the dedup gate and publishes the event. A suppressed
// duplicate is not an error: the caller still answers 200 so retrying
// clients stop resubmitting.
func (s *Service) Accept(ctx context.Context, endpoint string, event models.InboundEvent) error {
	if s.dedup != nil && s.dedup.ShouldSuppress(event) {
		s.logger.InfowCtx(ctx, "Suppressed duplicate event", "endpoint", endpoint)
		return nil
	}

	msg, err := models.NewQueuedMessage(uuid.NewString(), event)
	if err != nil {
		s.forget(event)
		return errors.ErrInternal.WithCause(err)
	}

	start := time.Now()
	err = s.producer.Publish(ctx, s.topic, msg)
	metrics.ObserveIngestPublishDuration(endpoint, time.Since(start))

	if err != nil {
		// The event never reached the topic, so the fingerprint must not
		// suppress the client's retry.
		s.forget(event)
		return errors.ErrInternal.WithCause(err)
	}

	s.logger.InfowCtx(ctx, "Published event",
		"endpoint", endpoint,
		"topic", s.topic,
		"message_id", msg.ID,
	)

	return nil
}

func (s *Service) forget(event models.InboundEvent) {
	if s.dedup != nil {
		s.dedup.Forget(event)
	}
}

// ClearSecretCache forces the next secret read to hit the store.
func (s *Service) ClearSecretCache() {
	if s.secrets != nil {
		s.secrets.ClearCache()
	}
}
