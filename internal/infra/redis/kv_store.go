package redis

import (
	"context"
	"errors"
	"time"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.KVStore = (*KVStore)(nil)

// KVStore adapts a RedisClient to the history backend port. Expiry is
// native (SET ... EX).
type KVStore struct {
	client RedisClient
}

func NewKVStore(client RedisClient) *KVStore {
	return &KVStore{client: client}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

func (s *KVStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl)
}

func (s *KVStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *KVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Scan(ctx, pattern)
}

func (s *KVStore) Ping(ctx context.Context) error { return s.client.Ping(ctx) }
