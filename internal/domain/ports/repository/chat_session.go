package repository

import (
	"context"
	"time"
)

// -----------------------------
// Chat history key-value backend
// -----------------------------

// KVStore is the capability set the chat history store needs from a backend.
// Get returns domain.ErrNotFound for absent or expired keys. Values are raw
// bytes; callers decode them.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether a key was removed.
	Delete(ctx context.Context, key string) (bool, error)
	// Keys lists keys matching a glob pattern such as "chat:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
}

// Purger is implemented by backends without native expiry.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}
