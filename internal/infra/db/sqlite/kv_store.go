// Package sqlite is a single-file history backend for local deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"maizey-chat/internal/domain"
	"maizey-chat/internal/domain/ports/repository"
)

var (
	_ repository.KVStore = (*KVStore)(nil)
	_ repository.Purger  = (*KVStore)(nil)
)

// KVStore stores history rows in one table with an expires_at column in
// unix seconds; 0 means no expiry.
type KVStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database file at path and ensures the schema.
func Open(path string) (*KVStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	createTable := `
	CREATE TABLE IF NOT EXISTS chat_kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chat_kv table: %w", err)
	}
	return &KVStore{db: db, now: time.Now}, nil
}

func (s *KVStore) Close() error { return s.db.Close() }

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM chat_kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.now().Unix()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return v, nil
}

func (s *KVStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = s.now().Add(ttl).Unix()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO chat_kv (key, value, expires_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, exp)
	if err != nil {
		return fmt.Errorf("sqlite set: %w", err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.now().Unix())
	if err != nil {
		return false, fmt.Errorf("sqlite delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite delete: %w", err)
	}
	return n > 0, nil
}

// Keys matches with sqlite's GLOB operator, which shares the '*' and '?'
// wildcards used by key patterns.
func (s *KVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM chat_kv WHERE key GLOB ? AND (expires_at = 0 OR expires_at > ?)`,
		pattern, s.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite keys scan: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *KVStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *KVStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM chat_kv WHERE expires_at <> 0 AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return res.RowsAffected()
}
