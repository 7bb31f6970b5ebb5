package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/dedup"
	"sift/internal/logger"
	"sift/pkg/models"
)

type capturingProducer struct {
	mu       sync.Mutex
	messages []models.QueuedMessage
	err      error
	failures int
}

func (p *capturingProducer) Publish(ctx context.Context, topic string, msg models.QueuedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.failures > 0 {
		p.failures--
		return fmt.Errorf("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturingProducer) Close() error { return nil }

func (p *capturingProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func newTestRouter(t *testing.T, producer *capturingProducer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	d := dedup.New(config.DedupConfig{Window: 10 * time.Second}, logger.NopLogger())
	t.Cleanup(d.Stop)

	service := NewService(producer, d, nil, "checkout_events", logger.NopLogger())
	handler := NewHandler(service, logger.NopLogger())

	router := gin.New()
	handler.RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCheckoutPublishesValidEvent(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	require.Equal(t, 1, producer.count())

	event, err := producer.messages[0].Event()
	require.NoError(t, err)
	assert.JSONEq(t, `{"session-id":"ABC-123"}`, string(event.Body))
	assert.Equal(t, "application/json", event.Headers["content-type"])
	assert.NotEmpty(t, producer.messages[0].ID)
}

func TestCheckoutRequiresJSONContentType(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"session-id":"ABC-123"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestCheckoutRejectsUnknownFields(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123","extra":true}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestCheckoutRejectsOversizedSessionID(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", fmt.Sprintf(`{"session-id":%q}`, strings.Repeat("x", 256)), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestCheckoutRejectsMissingSessionID(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestCheckoutSuppressesDuplicates(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	first := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}`, nil)
	second := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}`, nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code, "duplicates still answer 200")
	assert.Equal(t, 1, producer.count(), "only the first submission is published")
}

func TestTrackerAllowsAdditionalFields(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/tracker", `{"sessionId":"T-55","page":"/checkout","referrer":"ads"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, producer.count())
}

func TestTrackerRequiresSessionID(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/tracker", `{"page":"/checkout"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestWarmupShortCircuits(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", `{"source":"warmup"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, producer.count(), "warmup events are never published")
}

func TestWarmupHeaderShortCircuits(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(``))
	req.Header.Set("x-warmup", "true")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestWarmupSkipsContentTypeGate(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	req := httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"source":"warmup"}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestCheckoutRejectsTrailingData(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}junk`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, producer.count())
}

func TestCheckoutPublishFailure(t *testing.T) {
	producer := &capturingProducer{err: fmt.Errorf("broker unavailable")}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "broker unavailable", "internal detail stays inside")
}

func TestCheckoutRetryAfterPublishFailure(t *testing.T) {
	producer := &capturingProducer{failures: 1}
	router := newTestRouter(t, producer)

	first := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}`, nil)
	second := postJSON(router, "/v1/checkout", `{"session-id":"ABC-123"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.Equal(t, http.StatusOK, second.Code, "a failed publish does not suppress the retry")
	assert.Equal(t, 1, producer.count())
}

func TestRefreshSecretsEndpoint(t *testing.T) {
	producer := &capturingProducer{}
	router := newTestRouter(t, producer)

	w := postJSON(router, "/v1/admin/secrets/refresh", ``, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "refreshed")
}
