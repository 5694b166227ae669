// File: internal/infra/db/postgres/kv_store.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/ports/repository"
)

var (
	_ repository.KVStore = (*KVStore)(nil)
	_ repository.Purger  = (*KVStore)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_kv (
  key        TEXT PRIMARY KEY,
  value      BYTEA NOT NULL,
  expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS chat_kv_expires_at_idx ON chat_kv (expires_at);`

// KVStore keeps chat history rows in a single table. Postgres has no native
// expiry, so reads skip rows past expires_at and PurgeExpired removes them.
type KVStore struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

func NewKVStore(pool *pgxpool.Pool, logger *zerolog.Logger) *KVStore {
	return &KVStore{pool: pool, log: logger}
}

// EnsureSchema creates the chat_kv table when missing.
func (s *KVStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return s.wrap("ensure schema", err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM chat_kv WHERE key=$1 AND (expires_at IS NULL OR expires_at > NOW());`
	var v []byte
	if err := s.pool.QueryRow(ctx, q, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, s.wrap("get", err)
	}
	return v, nil
}

func (s *KVStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const q = `
INSERT INTO chat_kv (key, value, expires_at)
VALUES ($1,$2,$3)
ON CONFLICT (key) DO UPDATE SET
  value = EXCLUDED.value,
  expires_at = EXCLUDED.expires_at;`
	var exp *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		exp = &t
	}
	if _, err := s.pool.Exec(ctx, q, key, value, exp); err != nil {
		return s.wrap("set", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) (bool, error) {
	const q = `DELETE FROM chat_kv WHERE key=$1 AND (expires_at IS NULL OR expires_at > NOW());`
	tag, err := s.pool.Exec(ctx, q, key)
	if err != nil {
		return false, s.wrap("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *KVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	const q = `SELECT key FROM chat_kv WHERE key LIKE $1 ESCAPE '\' AND (expires_at IS NULL OR expires_at > NOW());`
	rows, err := s.pool.Query(ctx, q, globToLike(pattern))
	if err != nil {
		return nil, s.wrap("keys", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, s.wrap("keys scan", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("keys rows", err)
	}
	return out, nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_kv WHERE expires_at IS NOT NULL AND expires_at <= NOW();`)
	if err != nil {
		return 0, s.wrap("purge", err)
	}
	return tag.RowsAffected(), nil
}

func (s *KVStore) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && s.log != nil {
		s.log.Error().
			Str("op", op).
			Str("sqlstate", pgErr.Code).
			Str("detail", pgErr.Detail).
			Msg("postgres error")
	}
	return fmt.Errorf("chat_kv %s: %w", op, err)
}

// globToLike converts a key glob ("chat:*") into a LIKE pattern. Only '*' and
// '?' are wildcards.
func globToLike(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
