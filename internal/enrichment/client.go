package enrichment

import (
	"context"
	"fmt"

	"sift/internal/config"
	"sift/internal/logger"
	"sift/internal/secrets"
)

// Client looks up device intelligence for a session with an external
// provider. The returned map is merged into the record as-is.
type Client interface {
	Name() string
	Lookup(ctx context.Context, sessionID string) (map[string]interface{}, error)
}

// New builds the named provider client, wrapped in a circuit breaker when
// the config enables one. An empty name means the processor runs without
// enrichment.
func New(name string, cfg *config.Config, cache *secrets.Cache, log logger.Logger) (Client, error) {
	var client Client

	switch name {
	case "":
		return nil, nil
	case "oak":
		client = NewOakClient(cfg.Enrichment.DeviceProfile, cache, log)
	case "tmx":
		client = NewTMXClient(cfg.Enrichment.TMX, cache, log)
	default:
		return nil, fmt.Errorf("unknown enrichment provider: %s", name)
	}

	if cfg.CircuitBreaker.Enabled {
		client = WithBreaker(client, cfg.CircuitBreaker)
	}

	return client, nil
}
