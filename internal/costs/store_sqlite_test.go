package costs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"cartai/internal/storage"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.NewSQLite(storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "costs.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	store, err := NewSQLiteStore(context.Background(), st.SQLiteDB())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func record(userID string, success bool, createdAt time.Time) *Record {
	return &Record{
		ID:           uuid.NewString(),
		UserID:       userID,
		TaskType:     "assistant-chat",
		Model:        "deepseek-chat",
		Provider:     "deepseek",
		InputTokens:  100,
		OutputTokens: 50,
		TotalTokens:  150,
		Cost:         0.000028,
		Success:      success,
		LatencyMs:    900,
		CreatedAt:    createdAt,
	}
}

func TestSQLiteWriteBatchAndAggregate(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteTestStore(t)
	now := time.Now().UTC()

	failed := record("user-1", false, now)
	failed.ErrorMessage = "provider timeout"
	failed.InputTokens, failed.OutputTokens, failed.Cost = 0, 0, 0

	batch := []*Record{
		record("user-1", true, now),
		record("user-1", true, now),
		failed,
		record("user-2", true, now),
		record("user-1", true, now.Add(-48*time.Hour)), // outside the day
	}
	if err := store.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	summary, err := store.DailyUsage(ctx, "user-1", now)
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if summary.Calls != 3 {
		t.Errorf("expected 3 calls today, got %d", summary.Calls)
	}
	if summary.FailedCalls != 1 {
		t.Errorf("expected 1 failed call, got %d", summary.FailedCalls)
	}
	if summary.InputTokens != 200 {
		t.Errorf("expected 200 input tokens, got %d", summary.InputTokens)
	}
}

func TestSQLitePurgeBefore(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteTestStore(t)
	now := time.Now().UTC()

	batch := []*Record{
		record("user-1", true, now),
		record("user-1", true, now.Add(-100*24*time.Hour)),
		record("user-1", true, now.Add(-200*24*time.Hour)),
	}
	if err := store.WriteBatch(ctx, batch); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	purged, err := store.PurgeBefore(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if purged != 2 {
		t.Errorf("expected 2 purged rows, got %d", purged)
	}

	summary, err := store.DailyUsage(ctx, "user-1", now)
	if err != nil {
		t.Fatalf("DailyUsage: %v", err)
	}
	if summary.Calls != 1 {
		t.Errorf("expected the recent row to survive, got %d", summary.Calls)
	}
}

func TestSQLiteWriteBatchEmpty(t *testing.T) {
	store := newSQLiteTestStore(t)
	if err := store.WriteBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch must be a no-op, got %v", err)
	}
}
