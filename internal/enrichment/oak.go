package enrichment

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"sift/internal/config"
	"sift/internal/logger"
	"sift/internal/secrets"
	"sift/pkg/errors"
)

const deviceProfileMethod = "/signifyd.messages.oak.DeviceProfileService/GetDeviceProfile"

// OakClient fetches device profiles over gRPC. The connection is dialed
// lazily on first use and reused afterwards.
type OakClient struct {
	resolver *resolver
	cache    *secrets.Cache
	logger   logger.Logger

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func NewOakClient(cfg config.DeviceProfileConfig, cache *secrets.Cache, log logger.Logger) *OakClient {
	return &OakClient{
		resolver: newResolver(cfg, log),
		cache:    cache,
		logger:   log,
	}
}

func (c *OakClient) Name() string { return "oak" }

func (c *OakClient) Lookup(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	bundle, err := c.cache.Get(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := c.connection(ctx)
	if err != nil {
		return nil, errors.ErrEnrichment.WithCause(err).WithDetail("provider", "oak")
	}

	callCtx := metadata.AppendToOutgoingContext(ctx,
		"authorization", fmt.Sprintf("Bearer %s", bundle["OAK_API_KEY"]),
	)

	request := map[string]interface{}{"session_id": sessionID}
	response := map[string]interface{}{}

	err = conn.Invoke(callCtx, deviceProfileMethod, request, &response, grpc.ForceCodec(jsonCodec{}))
	if err != nil {
		return nil, errors.ErrEnrichment.WithCause(err).WithDetail("provider", "oak")
	}

	return response, nil
}

func (c *OakClient) connection(ctx context.Context) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	address, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial device profile service at %s: %w", address, err)
	}

	c.conn = conn
	return conn, nil
}

func (c *OakClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
