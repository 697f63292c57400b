package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// KVStore persists the ledger and progress record as plain Redis strings
// under quiz:kv:{key}. Keys never expire.
type KVStore struct {
	client *redis.Client
}

func NewKVStore(client *redis.Client) *KVStore {
	return &KVStore{client: client}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *KVStore) key(key string) string {
	return "quiz:kv:" + key
}
