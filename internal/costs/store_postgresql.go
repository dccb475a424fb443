package costs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresCostSchema = `
CREATE TABLE IF NOT EXISTS cost_records (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	task_type TEXT NOT NULL,
	model TEXT NOT NULL,
	provider TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	success BOOLEAN NOT NULL DEFAULT TRUE,
	latency_ms BIGINT NOT NULL DEFAULT 0,
	error_message TEXT,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_records_user_created ON cost_records(user_id, created_at);
`

// PostgreSQLStore is the PostgreSQL-backed cost ledger.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the store and ensures its schema exists.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, errors.New("postgresql pool is nil")
	}
	if _, err := pool.Exec(ctx, postgresCostSchema); err != nil {
		return nil, fmt.Errorf("failed to create cost_records table: %w", err)
	}
	return &PostgreSQLStore{pool: pool}, nil
}

func (s *PostgreSQLStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		var metadata []byte
		if len(r.Metadata) > 0 {
			raw, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			metadata = raw
		}
		batch.Queue(
			`INSERT INTO cost_records
				(id, user_id, task_type, model, provider, input_tokens, output_tokens,
				 total_tokens, cost, success, latency_ms, error_message, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			r.ID, r.UserID, r.TaskType, r.Model, r.Provider,
			r.InputTokens, r.OutputTokens, r.TotalTokens, r.Cost,
			r.Success, r.LatencyMs, nullString(r.ErrorMessage), metadata,
			r.CreatedAt.UTC(),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert cost record: %w", err)
		}
	}
	return nil
}

func (s *PostgreSQLStore) DailyUsage(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	start, end := dayBounds(day)
	summary := &DailySummary{
		UserID: userID,
		Day:    start.Format("2006-01-02"),
	}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN NOT success THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost), 0)
		 FROM cost_records
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`,
		userID, start, end,
	).Scan(&summary.Calls, &summary.FailedCalls, &summary.InputTokens,
		&summary.OutputTokens, &summary.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %w", err)
	}
	return summary, nil
}

func (s *PostgreSQLStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cost_records WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cost records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close is a no-op; the shared pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error { return nil }
