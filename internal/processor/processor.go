package processor

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"sift/internal/config"
	"sift/internal/enrichment"
	"sift/internal/logger"
	"sift/internal/storage"
	"sift/pkg/errors"
	"sift/pkg/flatten"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/models"
)

// Processor turns a queued event into a flat, enriched record and persists
// it under demo/<prefix>/<sessionId>.json. Each variant differs only in the
// payload field it reads the session id from, the key prefix it writes
// under, and the provider it enriches with.
type Processor struct {
	name         string
	sessionField string
	keyPrefix    string
	enricher     enrichment.Client
	store        storage.ObjectStore
	logger       logger.Logger

	// now is swappable in tests
	now func() time.Time
}

func New(cfg config.ProcessorConfig, enricher enrichment.Client, store storage.ObjectStore, log logger.Logger) *Processor {
	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = cfg.Name
	}

	return &Processor{
		name:         cfg.Name,
		sessionField: cfg.SessionField,
		keyPrefix:    keyPrefix,
		enricher:     enricher,
		store:        store,
		logger:       log,
		now:          time.Now,
	}
}

func (p *Processor) Name() string { return p.name }

// Handle processes a single queued message. Parse and missing-field errors
// are retryable so transient producer glitches get another delivery before
// the message is dead-lettered; storage failures are retryable for the same
// reason. Enrichment failures never fail the message.
func (p *Processor) Handle(ctx context.Context, msg models.QueuedMessage) error {
	event, err := msg.Event()
	if err != nil {
		metrics.ProcessorMessagesTotal.WithLabelValues(p.name, "parse_error").Inc()
		return errors.ErrParse.WithCause(err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(event.Body, &data); err != nil {
		metrics.ProcessorMessagesTotal.WithLabelValues(p.name, "parse_error").Inc()
		return errors.ErrParse.WithCause(err)
	}

	parsed := models.ParsedEvent{
		Data:      data,
		Headers:   event.Headers,
		IPAddress: event.IPAddress,
	}

	sessionID, ok := parsed.SessionField(p.sessionField)
	if !ok {
		metrics.ProcessorMessagesTotal.WithLabelValues(p.name, "missing_field").Inc()
		return errors.ErrMissingField.WithDetail("field", p.sessionField)
	}

	ctx = logging.WithSessionID(ctx, sessionID)

	record := p.buildRecord(parsed)
	p.enrich(ctx, record, sessionID)

	if err := p.write(ctx, sessionID, record); err != nil {
		metrics.ProcessorMessagesTotal.WithLabelValues(p.name, "storage_error").Inc()
		return err
	}

	metrics.ProcessorMessagesTotal.WithLabelValues(p.name, "processed").Inc()
	p.logger.InfowCtx(ctx, "Processed event",
		"processor", p.name,
		"key_prefix", p.keyPrefix,
	)

	return nil
}

// buildRecord flattens the full event, stamps the processing time, and
// snapshots the result into RAW_DATA before any enrichment lands.
func (p *Processor) buildRecord(parsed models.ParsedEvent) flatten.Record {
	headers := make(map[string]interface{}, len(parsed.Headers))
	for name, value := range parsed.Headers {
		headers[name] = value
	}

	record := flatten.Flatten(map[string]interface{}{
		"body":      parsed.Data,
		"headers":   headers,
		"ipAddress": parsed.IPAddress,
		"DATE_INFO": flatten.DateInfo(p.now()),
	})

	if raw, err := json.Marshal(record); err == nil {
		record["RAW_DATA"] = string(raw)
	}

	return record
}

// enrich attaches the provider payload as the <PROVIDER>_DATA sub-object.
// A lookup failure is logged and leaves the sub-object empty; the record
// still persists.
func (p *Processor) enrich(ctx context.Context, record flatten.Record, sessionID string) {
	if p.enricher == nil {
		return
	}

	field := strings.ToUpper(p.enricher.Name()) + "_DATA"

	result, err := p.enricher.Lookup(ctx, sessionID)
	if err != nil {
		p.logger.WarnwCtx(ctx, "Enrichment lookup failed",
			"processor", p.name,
			"provider", p.enricher.Name(),
			"error", err,
		)
		record[field] = map[string]interface{}{}
		return
	}

	if result == nil {
		result = map[string]interface{}{}
	}
	record[field] = result
}

func (p *Processor) write(ctx context.Context, sessionID string, record flatten.Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return errors.ErrStorageWrite.WithCause(err)
	}

	key := storage.ObjectKey(p.keyPrefix, sessionID)

	start := time.Now()
	err = p.store.Put(ctx, key, body)
	metrics.ObserveStorageWriteDuration(p.name, time.Since(start))

	if err != nil {
		metrics.StorageWritesTotal.WithLabelValues(p.name, "error").Inc()
		return errors.ErrStorageWrite.WithCause(err).WithDetail("key", key)
	}

	metrics.StorageWritesTotal.WithLabelValues(p.name, "success").Inc()
	return nil
}
