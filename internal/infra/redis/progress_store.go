package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressStore is a Redis-backed implementation of progress.Store.
// Redis SET/GET are atomic per key, which is all the snapshot contract
// needs; prefix operations use SCAN so a reset never blocks the server
// the way KEYS would.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore wraps a Redis client. A zero ttl keeps progress
// forever; otherwise each save refreshes the expiry.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

func (s *ProgressStore) Save(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, s.ttl).Err()
}

func (s *ProgressStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *ProgressStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *ProgressStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *ProgressStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.scan(ctx, prefix)
}

func (s *ProgressStore) scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}
