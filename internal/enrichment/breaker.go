package enrichment

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"sift/internal/config"
	"sift/pkg/circuitbreaker"
	"sift/pkg/metrics"
)

// breakerClient guards a provider with a circuit breaker and records
// lookup metrics.
type breakerClient struct {
	inner   Client
	breaker *circuitbreaker.Wrapper
}

func WithBreaker(inner Client, cfg config.CircuitBreakerConfig) Client {
	bcfg := circuitbreaker.DefaultConfig("enrichment-" + inner.Name())
	if cfg.MaxRequests > 0 {
		bcfg.MaxRequests = cfg.MaxRequests
	}
	if cfg.Interval > 0 {
		bcfg.Interval = cfg.Interval
	}
	if cfg.Timeout > 0 {
		bcfg.Timeout = cfg.Timeout
	}
	if cfg.FailureRatio > 0 && cfg.MinRequests > 0 {
		ratio, minRequests := cfg.FailureRatio, cfg.MinRequests
		bcfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= ratio
		}
	}

	return &breakerClient{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(bcfg),
	}
}

func (c *breakerClient) Name() string { return c.inner.Name() }

func (c *breakerClient) Lookup(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	start := time.Now()

	result, err := c.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return c.inner.Lookup(ctx, sessionID)
	})

	metrics.ObserveEnrichmentDuration(c.inner.Name(), time.Since(start))
	if err != nil {
		metrics.EnrichmentLookupsTotal.WithLabelValues(c.inner.Name(), "error").Inc()
		return nil, err
	}

	metrics.EnrichmentLookupsTotal.WithLabelValues(c.inner.Name(), "success").Inc()
	return result.(map[string]interface{}), nil
}
