package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/logger"
	"sift/internal/storage"
	"sift/pkg/errors"
	"sift/pkg/models"
)

type fakeEnricher struct {
	name   string
	result map[string]interface{}
	err    error
	calls  int
}

func (e *fakeEnricher) Name() string { return e.name }

func (e *fakeEnricher) Lookup(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key string, body []byte) error {
	return fmt.Errorf("write refused")
}

func queuedMessage(t *testing.T, body string) models.QueuedMessage {
	t.Helper()
	msg, err := models.NewQueuedMessage("msg-1", models.InboundEvent{
		Body:      json.RawMessage(body),
		Headers:   map[string]string{"content-type": "application/json"},
		IPAddress: "10.0.0.1",
	})
	require.NoError(t, err)
	return msg
}

func oakConfig() config.ProcessorConfig {
	return config.ProcessorConfig{
		Name:         "oak",
		SessionField: "session-id",
		KeyPrefix:    "oak",
		Enrichment:   "oak",
	}
}

func storedRecord(t *testing.T, store *storage.MemoryStore, key string) map[string]interface{} {
	t.Helper()
	body, ok := store.Get(key)
	require.True(t, ok, "expected object at %s", key)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &record))
	return record
}

func TestHandlePersistsFlattenedRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	enricher := &fakeEnricher{name: "oak", result: map[string]interface{}{"device_id": "dev-42"}}
	p := New(oakConfig(), enricher, store, logger.NopLogger())

	msg := queuedMessage(t, `{"session-id":"ABC-123","cart":{"total":99.5,"items":["a","b"]}}`)
	require.NoError(t, p.Handle(context.Background(), msg))

	record := storedRecord(t, store, "demo/oak/ABC-123.json")

	assert.Equal(t, "ABC-123", record["body.session-id"])
	assert.Equal(t, 99.5, record["body.cart.total"])
	assert.Equal(t, []interface{}{"a", "b"}, record["body.cart.items"])
	assert.Equal(t, "application/json", record["headers.content-type"])
	assert.Equal(t, "10.0.0.1", record["ipAddress"])
	assert.Contains(t, record, "DATE_INFO.year")
	assert.Equal(t, 1, enricher.calls)

	enriched, ok := record["OAK_DATA"].(map[string]interface{})
	require.True(t, ok, "OAK_DATA is a nested object")
	assert.Equal(t, "dev-42", enriched["device_id"])

	// RAW_DATA is the record before enrichment landed
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(record["RAW_DATA"].(string)), &raw))
	assert.Equal(t, "ABC-123", raw["body.session-id"])
	assert.NotContains(t, raw, "OAK_DATA")
	assert.NotContains(t, raw, "RAW_DATA")
}

func TestHandleEnrichmentFailureStillPersists(t *testing.T) {
	store := storage.NewMemoryStore()
	enricher := &fakeEnricher{name: "oak", err: errors.ErrEnrichment.WithCause(fmt.Errorf("upstream down"))}
	p := New(oakConfig(), enricher, store, logger.NopLogger())

	msg := queuedMessage(t, `{"session-id":"ABC-123"}`)
	require.NoError(t, p.Handle(context.Background(), msg))

	record := storedRecord(t, store, "demo/oak/ABC-123.json")
	assert.Equal(t, map[string]interface{}{}, record["OAK_DATA"])
	assert.NotEmpty(t, record["RAW_DATA"])
}

func TestHandleWithoutEnricher(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(config.ProcessorConfig{
		Name:         "tracker",
		SessionField: "sessionId",
		KeyPrefix:    "tracker-oak",
	}, nil, store, logger.NopLogger())

	msg := queuedMessage(t, `{"sessionId":"T-55","page":"/checkout"}`)
	require.NoError(t, p.Handle(context.Background(), msg))

	record := storedRecord(t, store, "demo/tracker-oak/T-55.json")
	assert.Equal(t, "/checkout", record["body.page"])
	assert.NotContains(t, record, "OAK_DATA")
}

func TestHandleMalformedEnvelope(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(oakConfig(), nil, store, logger.NopLogger())

	err := p.Handle(context.Background(), models.QueuedMessage{ID: "msg-1", Message: "not json"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrParse))
	assert.Equal(t, 0, store.Len(), "malformed messages are never persisted")
}

func TestHandleNonObjectBody(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(oakConfig(), nil, store, logger.NopLogger())

	err := p.Handle(context.Background(), queuedMessage(t, `["not","an","object"]`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrParse))
	assert.Equal(t, 0, store.Len())
}

func TestHandleMissingSessionField(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(oakConfig(), nil, store, logger.NopLogger())

	err := p.Handle(context.Background(), queuedMessage(t, `{"cart":{"total":1}}`))
	require.Error(t, err)
	assert.True(t, errors.IsMissingField(err))
	assert.Equal(t, 0, store.Len())
}

func TestHandleStorageFailureIsRetryable(t *testing.T) {
	p := New(oakConfig(), nil, failingStore{}, logger.NopLogger())

	err := p.Handle(context.Background(), queuedMessage(t, `{"session-id":"ABC-123"}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageWrite))

	var appErr *errors.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.IsRetryable())
}

func TestHandleLastWriteWins(t *testing.T) {
	store := storage.NewMemoryStore()
	p := New(oakConfig(), nil, store, logger.NopLogger())

	require.NoError(t, p.Handle(context.Background(), queuedMessage(t, `{"session-id":"ABC-123","version":1}`)))
	require.NoError(t, p.Handle(context.Background(), queuedMessage(t, `{"session-id":"ABC-123","version":2}`)))

	record := storedRecord(t, store, "demo/oak/ABC-123.json")
	assert.Equal(t, float64(2), record["body.version"])
	assert.Equal(t, 1, store.Len())
}
