package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"sift/internal/constants"
)

// ObjectStore persists finished records under hierarchical keys such as
// demo/oak/ABC-123.json. Writes are last-write-wins.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte) error
}

// ObjectKey builds the canonical storage key for a processed session.
func ObjectKey(prefix, sessionID string) string {
	return fmt.Sprintf("%s/%s/%s.json", constants.StoragePrefix, prefix, sessionID)
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{collection: db.Collection(collection)}
}

func (s *MongoStore) Put(ctx context.Context, key string, body []byte) error {
	filter := bson.M{"_id": key}
	update := bson.M{"$set": bson.M{
		"body":         string(body),
		"content_type": constants.StorageContentType,
		"updated_at":   time.Now().UTC(),
	}}

	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert object %q: %w", key, err)
	}

	return nil
}

// MemoryStore is an in-process ObjectStore for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.objects[key] = append([]byte(nil), body...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.objects[key]
	return body, ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
