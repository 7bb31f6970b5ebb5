package enrichment

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/logger"
	"sift/internal/secrets"
	"sift/pkg/errors"
)

type staticStore struct {
	bundle secrets.Bundle
}

func (s *staticStore) Fetch(ctx context.Context, key string) (secrets.Bundle, error) {
	return s.bundle, nil
}

func testSecretCache() *secrets.Cache {
	store := &staticStore{bundle: secrets.Bundle{
		"TMX_API_KEY": "tmx-key",
		"TMX_ORG_ID":  "org-1",
		"OAK_API_KEY": "oak-key",
	}}
	return secrets.NewCache(store, config.SecretsConfig{Key: "sift:secrets"}, logger.NopLogger())
}

func TestTMXLookup(t *testing.T) {
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"request_result":"success","device_id":"dev-42"}`)
	}))
	defer server.Close()

	client := NewTMXClient(config.TMXConfig{URL: server.URL}, testSecretCache(), logger.NopLogger())

	result, err := client.Lookup(context.Background(), "ABC-123")
	require.NoError(t, err)

	assert.Equal(t, "dev-42", result["device_id"])
	assert.Equal(t, "org-1", gotQuery["org_id"])
	assert.Equal(t, "tmx-key", gotQuery["api_key"])
	assert.Equal(t, "ABC-123", gotQuery["session_id"])
	assert.Equal(t, "session-policy", gotQuery["service_type"])
	assert.Equal(t, "json", gotQuery["output_format"])
}

func TestTMXLookupUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewTMXClient(config.TMXConfig{URL: server.URL}, testSecretCache(), logger.NopLogger())

	_, err := client.Lookup(context.Background(), "ABC-123")
	require.Error(t, err)
	assert.True(t, errors.IsEnrichment(err))
}

func TestResolverPrefersStaticAddress(t *testing.T) {
	r := newResolver(config.DeviceProfileConfig{Address: "10.0.0.5:50051"}, logger.NopLogger())

	address, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:50051", address)
}

func TestResolverDiscoversOnce(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "203.0.113.9\n")
	}))
	defer server.Close()

	r := newResolver(config.DeviceProfileConfig{DiscoveryURL: server.URL, Port: 50051}, logger.NopLogger())

	for i := 0; i < 3; i++ {
		address, err := r.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.9:50051", address)
	}
	assert.Equal(t, 1, calls, "discovery result is cached for the process lifetime")
}

func TestResolverWithoutConfiguration(t *testing.T) {
	r := newResolver(config.DeviceProfileConfig{}, logger.NopLogger())

	_, err := r.Resolve(context.Background())
	require.Error(t, err)
}

type failingClient struct {
	calls int
}

func (c *failingClient) Name() string { return "failing" }

func (c *failingClient) Lookup(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	c.calls++
	return nil, errors.ErrEnrichment.WithCause(fmt.Errorf("upstream down"))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	inner := &failingClient{}
	client := WithBreaker(inner, config.CircuitBreakerConfig{Enabled: true})

	for i := 0; i < 10; i++ {
		_, err := client.Lookup(context.Background(), "ABC-123")
		require.Error(t, err)
	}

	assert.Less(t, inner.calls, 10, "breaker short-circuits once open")
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("bogus", &config.Config{}, testSecretCache(), logger.NopLogger())
	require.Error(t, err)
}

func TestNewEmptyProviderIsNil(t *testing.T) {
	client, err := New("", &config.Config{}, testSecretCache(), logger.NopLogger())
	require.NoError(t, err)
	assert.Nil(t, client)
}
