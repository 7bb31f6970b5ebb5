package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"sift/internal/config"
	"sift/internal/logger"
)

// resolver yields the device-profile endpoint address. A static override
// from the config wins; otherwise the address is discovered once over HTTP
// and cached for the life of the process, matching how rarely the upstream
// endpoint moves.
type resolver struct {
	cfg    config.DeviceProfileConfig
	client *retryablehttp.Client
	logger logger.Logger

	once    sync.Once
	address string
	err     error
}

func newResolver(cfg config.DeviceProfileConfig, log logger.Logger) *resolver {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	return &resolver{cfg: cfg, client: client, logger: log}
}

func (r *resolver) Resolve(ctx context.Context) (string, error) {
	if r.cfg.Address != "" {
		return r.cfg.Address, nil
	}

	r.once.Do(func() {
		r.address, r.err = r.discover(ctx)
	})

	return r.address, r.err
}

func (r *resolver) discover(ctx context.Context) (string, error) {
	if r.cfg.DiscoveryURL == "" {
		return "", fmt.Errorf("no device profile address or discovery url configured")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.cfg.DiscoveryURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("endpoint discovery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("endpoint discovery returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read discovery response: %w", err)
	}

	host := strings.TrimSpace(string(body))
	if host == "" {
		return "", fmt.Errorf("endpoint discovery returned an empty address")
	}

	address := fmt.Sprintf("%s:%d", host, r.cfg.Port)
	r.logger.Infow("Discovered device profile endpoint", "address", address)

	return address, nil
}
