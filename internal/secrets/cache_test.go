package secrets

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sift/internal/config"
	"sift/internal/logger"
	"sift/pkg/errors"
)

type fakeStore struct {
	bundle  Bundle
	err     error
	fetches int
}

func (s *fakeStore) Fetch(ctx context.Context, key string) (Bundle, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.bundle, nil
}

func completeBundle() Bundle {
	return Bundle{
		"TMX_API_KEY": "tmx-key",
		"TMX_ORG_ID":  "org-1",
		"OAK_API_KEY": "oak-key",
	}
}

func newTestCache(store Store) *Cache {
	return NewCache(store, config.SecretsConfig{Key: "sift:secrets"}, logger.NopLogger())
}

func TestGetCachesWithinTTL(t *testing.T) {
	store := &fakeStore{bundle: completeBundle()}
	cache := newTestCache(store)

	current := time.Date(2025, 3, 28, 17, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return current }

	bundle, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tmx-key", bundle["TMX_API_KEY"])
	assert.Equal(t, 1, store.fetches)

	current = current.Add(14 * time.Minute)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.fetches, "within TTL, no store round trip")

	current = current.Add(2 * time.Minute)
	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.fetches, "TTL lapsed, bundle refetched")
}

func TestGetMissingRequiredKey(t *testing.T) {
	store := &fakeStore{bundle: Bundle{
		"TMX_API_KEY": "tmx-key",
		"TMX_ORG_ID":  "org-1",
	}}
	cache := newTestCache(store)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSecretFetch))
	assert.Contains(t, err.Error(), "OAK_API_KEY")
}

func TestGetStoreFailure(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("connection refused")}
	cache := newTestCache(store)

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSecretFetch))
}

func TestGetEmptyKeyIsConfigError(t *testing.T) {
	cache := NewCache(&fakeStore{bundle: completeBundle()}, config.SecretsConfig{}, logger.NopLogger())

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestClearCacheForcesRefetch(t *testing.T) {
	store := &fakeStore{bundle: completeBundle()}
	cache := newTestCache(store)

	_, err := cache.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, store.fetches)

	cache.ClearCache()

	_, err = cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.fetches)
}
