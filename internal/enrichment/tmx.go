package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/logger"
	"sift/internal/secrets"
	"sift/pkg/errors"
)

// TMXClient queries the session-policy API over HTTP.
type TMXClient struct {
	cfg    config.TMXConfig
	cache  *secrets.Cache
	client *http.Client
	logger logger.Logger
}

func NewTMXClient(cfg config.TMXConfig, cache *secrets.Cache, log logger.Logger) *TMXClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	return &TMXClient{
		cfg:    cfg,
		cache:  cache,
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

func (c *TMXClient) Name() string { return "tmx" }

func (c *TMXClient) Lookup(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	bundle, err := c.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("org_id", bundle["TMX_ORG_ID"])
	query.Set("api_key", bundle["TMX_API_KEY"])
	query.Set("session_id", sessionID)
	query.Set("service_type", "session-policy")
	query.Set("output_format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, errors.ErrEnrichment.WithCause(err).WithDetail("provider", "tmx")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.ErrEnrichment.WithCause(err).WithDetail("provider", "tmx")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.ErrEnrichment.
			WithCause(fmt.Errorf("session query returned status: %d", resp.StatusCode)).
			WithDetail("provider", "tmx")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.ErrEnrichment.WithCause(err).WithDetail("provider", "tmx")
	}

	return result, nil
}
