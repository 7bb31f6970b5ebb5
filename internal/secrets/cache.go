package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/logger"
	"sift/pkg/errors"
	"sift/pkg/metrics"
)

// Cache memoizes the secret bundle for a fixed TTL so hot paths never hit
// the backing store. Concurrent misses may each trigger a fetch because
// the fetch runs outside the lock; the fetch is idempotent so the extra
// round trips are harmless.
type Cache struct {
	store  Store
	key    string
	ttl    time.Duration
	logger logger.Logger

	mu        sync.RWMutex
	bundle    Bundle
	fetchedAt time.Time

	// now is swappable in tests
	now func() time.Time
}

func NewCache(store Store, cfg config.SecretsConfig, log logger.Logger) *Cache {
	return &Cache{
		store:  store,
		key:    cfg.Key,
		ttl:    constants.SecretCacheTTL,
		logger: log,
		now:    time.Now,
	}
}

// Get returns the cached bundle, refreshing it from the store when the TTL
// has lapsed. Every required credential must be present and non-empty.
func (c *Cache) Get(ctx context.Context) (Bundle, error) {
	if c.key == "" {
		return nil, errors.ErrConfig.WithDetail("field", "secrets.key")
	}

	c.mu.RLock()
	bundle, fetchedAt := c.bundle, c.fetchedAt
	c.mu.RUnlock()

	if bundle != nil && c.now().Sub(fetchedAt) < c.ttl {
		return bundle, nil
	}

	fresh, err := c.store.Fetch(ctx, c.key)
	if err != nil {
		metrics.SecretFetchesTotal.WithLabelValues("error").Inc()
		return nil, errors.ErrSecretFetch.WithCause(err)
	}

	if missing := missingKeys(fresh); len(missing) > 0 {
		metrics.SecretFetchesTotal.WithLabelValues("incomplete").Inc()
		return nil, errors.ErrSecretFetch.
			WithCause(fmt.Errorf("secret bundle is missing keys: %s", strings.Join(missing, ", "))).
			WithDetail("missing_keys", missing)
	}

	c.mu.Lock()
	c.bundle = fresh
	c.fetchedAt = c.now()
	c.mu.Unlock()

	metrics.SecretFetchesTotal.WithLabelValues("success").Inc()
	c.logger.InfowCtx(ctx, "Refreshed secret bundle",
		"key", c.key,
		"ttl", c.ttl,
	)

	return fresh, nil
}

// ClearCache drops the cached bundle so the next Get refetches. Used by
// the admin refresh endpoint after secrets are rotated upstream.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	c.bundle = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func missingKeys(bundle Bundle) []string {
	var missing []string
	for _, key := range constants.RequiredSecretKeys {
		if bundle[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
