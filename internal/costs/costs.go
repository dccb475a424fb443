// Package costs keeps the append-only usage ledger: one record per
// non-cached provider call (successful or failed), written asynchronously
// so bookkeeping never blocks the request path.
package costs

import (
	"context"
	"fmt"
	"time"

	"cartai/internal/storage"
)

// Record is one write-once row in the cost ledger.
type Record struct {
	ID           string            `json:"id" bson:"_id"`
	UserID       string            `json:"user_id" bson:"user_id"`
	TaskType     string            `json:"task_type" bson:"task_type"`
	Model        string            `json:"model" bson:"model"`
	Provider     string            `json:"provider" bson:"provider"`
	InputTokens  int               `json:"input_tokens" bson:"input_tokens"`
	OutputTokens int               `json:"output_tokens" bson:"output_tokens"`
	TotalTokens  int               `json:"total_tokens" bson:"total_tokens"`
	Cost         float64           `json:"cost" bson:"cost"`
	Success      bool              `json:"success" bson:"success"`
	LatencyMs    int64             `json:"latency_ms" bson:"latency_ms"`
	ErrorMessage string            `json:"error_message,omitempty" bson:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}

// DailySummary aggregates a user's ledger for one calendar day (UTC).
type DailySummary struct {
	UserID       string  `json:"user_id"`
	Day          string  `json:"day"` // YYYY-MM-DD
	Calls        int     `json:"calls"`
	FailedCalls  int     `json:"failed_calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// Store persists cost records. WriteBatch must append every record or
// fail as a unit; records are never updated after insert.
type Store interface {
	WriteBatch(ctx context.Context, records []*Record) error
	DailyUsage(ctx context.Context, userID string, day time.Time) (*DailySummary, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// NewStore creates the ledger store matching the storage backend.
func NewStore(ctx context.Context, store storage.Storage) (Store, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, store.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoStore(ctx, store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unsupported storage type for cost ledger: %s", store.Type())
	}
}

// dayBounds returns the UTC day containing t as a [start, end) interval.
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
