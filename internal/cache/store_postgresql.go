package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresCacheSchema = `
CREATE TABLE IF NOT EXISTS llm_cache (
	key TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	response JSONB NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_llm_cache_expires_at ON llm_cache(expires_at);
`

// PostgreSQLStore is the PostgreSQL-backed durable cache tier.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the store and ensures its schema exists.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, errors.New("postgresql pool is nil")
	}
	if _, err := pool.Exec(ctx, postgresCacheSchema); err != nil {
		return nil, fmt.Errorf("failed to create llm_cache table: %w", err)
	}
	return &PostgreSQLStore{pool: pool}, nil
}

func (s *PostgreSQLStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		entry Entry
		blob  []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT key, model, response, token_count, expires_at
		 FROM llm_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&entry.Key, &entry.Model, &blob, &entry.TokenCount, &entry.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (s *PostgreSQLStore) Set(ctx context.Context, entry *Entry) error {
	blob, err := json.Marshal(entry.Response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO llm_cache (key, model, response, token_count, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
			model = EXCLUDED.model,
			response = EXCLUDED.response,
			token_count = EXCLUDED.token_count,
			expires_at = EXCLUDED.expires_at`,
		entry.Key, entry.Model, blob, entry.TokenCount, entry.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM llm_cache WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
