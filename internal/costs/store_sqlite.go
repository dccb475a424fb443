package costs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const sqliteCostSchema = `
CREATE TABLE IF NOT EXISTS cost_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	task_type TEXT NOT NULL,
	model TEXT NOT NULL,
	provider TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost REAL NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 1,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cost_records_user_created ON cost_records(user_id, created_at);
`

// SQLiteStore is the SQLite-backed cost ledger.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the store and ensures its schema exists.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("sqlite db is nil")
	}
	if _, err := db.ExecContext(ctx, sqliteCostSchema); err != nil {
		return nil, fmt.Errorf("failed to create cost_records table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cost_records
			(id, user_id, task_type, model, provider, input_tokens, output_tokens,
			 total_tokens, cost, success, latency_ms, error_message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var metadata any
		if len(r.Metadata) > 0 {
			raw, err := json.Marshal(r.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			metadata = string(raw)
		}
		_, err = stmt.ExecContext(ctx,
			r.ID, r.UserID, r.TaskType, r.Model, r.Provider,
			r.InputTokens, r.OutputTokens, r.TotalTokens, r.Cost,
			r.Success, r.LatencyMs, nullString(r.ErrorMessage), metadata,
			r.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert cost record: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DailyUsage(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	start, end := dayBounds(day)
	summary := &DailySummary{
		UserID: userID,
		Day:    start.Format("2006-01-02"),
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cost), 0)
		 FROM cost_records
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		userID, start, end,
	).Scan(&summary.Calls, &summary.FailedCalls, &summary.InputTokens,
		&summary.OutputTokens, &summary.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %w", err)
	}
	return summary, nil
}

func (s *SQLiteStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cost_records WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cost records: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the shared *sql.DB is owned by the storage layer.
func (s *SQLiteStore) Close() error { return nil }

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
