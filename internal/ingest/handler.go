package ingest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sift/internal/logger"
	"sift/pkg/errors"
	"sift/pkg/metrics"
	"sift/pkg/models"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/v1")
	{
		v1.POST("/checkout", h.Checkout)
		v1.POST("/tracker", h.Tracker)

		admin := v1.Group("/admin")
		{
			admin.POST("/secrets/refresh", h.RefreshSecrets)
		}
	}
}

func (h *Handler) Checkout(c *gin.Context) {
	h.accept(c, "checkout", ValidateCheckout)
}

func (h *Handler) Tracker(c *gin.Context) {
	h.accept(c, "tracker", ValidateTracker)
}

// accept implements the shared endpoint flow: warmup short-circuit,
// content-type gate, payload validation, then the dedup-and-publish path.
func (h *Handler) accept(c *gin.Context, endpoint string, validate func([]byte) error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.reject(c, endpoint, errors.ErrValidation.WithCause(err))
		return
	}

	// Warmup pings skip validation entirely, including the content-type gate.
	if c.GetHeader("x-warmup") == "true" || IsWarmup(body) {
		h.service.Warmup(c.Request.Context())
		metrics.IngestRequestsTotal.WithLabelValues(endpoint, "warmup").Inc()
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	if !strings.HasPrefix(c.ContentType(), "application/json") {
		h.reject(c, endpoint, errors.ErrValidation.WithDetail("reason", "content-type must be application/json"))
		return
	}

	if err := validate(body); err != nil {
		h.reject(c, endpoint, err)
		return
	}

	event := models.InboundEvent{
		Body:      json.RawMessage(body),
		Headers:   normalizedHeaders(c.Request.Header),
		IPAddress: c.ClientIP(),
	}

	if err := h.service.Accept(c.Request.Context(), endpoint, event); err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to accept event",
			"endpoint", endpoint,
			"error", err,
		)
		metrics.IngestRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
		return
	}

	metrics.IngestRequestsTotal.WithLabelValues(endpoint, "accepted").Inc()
	c.JSON(http.StatusOK, gin.H{})
}

func (h *Handler) RefreshSecrets(c *gin.Context) {
	h.service.ClearSecretCache()
	h.logger.InfowCtx(c.Request.Context(), "Secret cache cleared")
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}

func (h *Handler) reject(c *gin.Context, endpoint string, err error) {
	metrics.IngestRequestsTotal.WithLabelValues(endpoint, "rejected").Inc()
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// normalizedHeaders case-folds header names and keeps the first value,
// which is what the dedup fingerprint and the processors expect.
func normalizedHeaders(header http.Header) map[string]string {
	normalized := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			normalized[strings.ToLower(name)] = values[0]
		}
	}
	return normalized
}
