// Package memory is an in-process history backend for development and tests.
// Records are lost on restart.
package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/ports/repository"
)

var (
	_ repository.KVStore = (*KVStore)(nil)
	_ repository.Purger  = (*KVStore)(nil)
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

type KVStore struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

func NewKVStore() *KVStore {
	return &KVStore{data: map[string]entry{}, now: time.Now}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok || s.expired(e) {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *KVStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = e
	s.mu.Unlock()
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return false, nil
	}
	delete(s.data, key)
	return !s.expired(e), nil
}

func (s *KVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if s.expired(e) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *KVStore) Ping(ctx context.Context) error { return nil }

func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.data {
		if s.expired(e) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func (s *KVStore) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
