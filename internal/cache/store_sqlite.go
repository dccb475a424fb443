package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const sqliteCacheSchema = `
CREATE TABLE IF NOT EXISTS llm_cache (
	key TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	response BLOB NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_cache_expires_at ON llm_cache(expires_at);
`

// SQLiteStore is the SQLite-backed durable cache tier.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the store and ensures its schema exists.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("sqlite db is nil")
	}
	if _, err := db.ExecContext(ctx, sqliteCacheSchema); err != nil {
		return nil, fmt.Errorf("failed to create llm_cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		entry Entry
		blob  []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, model, response, token_count, expires_at
		 FROM llm_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&entry.Key, &entry.Model, &blob, &entry.TokenCount, &entry.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if err := json.Unmarshal(blob, &entry.Response); err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteStore) Set(ctx context.Context, entry *Entry) error {
	blob, err := json.Marshal(entry.Response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO llm_cache (key, model, response, token_count, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			model = excluded.model,
			response = excluded.response,
			token_count = excluded.token_count,
			expires_at = excluded.expires_at`,
		entry.Key, entry.Model, blob, entry.TokenCount, entry.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM llm_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	return res.RowsAffected()
}
