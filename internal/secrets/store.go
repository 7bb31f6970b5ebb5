package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Bundle is the decoded secret material, keyed by credential name.
type Bundle map[string]string

// Store fetches the raw secret bundle from its backing system.
type Store interface {
	Fetch(ctx context.Context, key string) (Bundle, error)
}

// RedisStore reads the bundle as a JSON object stored under a single key.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Fetch(ctx context.Context, key string) (Bundle, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read secret bundle %q: %w", key, err)
	}

	var bundle Bundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return nil, fmt.Errorf("failed to decode secret bundle %q: %w", key, err)
	}

	return bundle, nil
}
