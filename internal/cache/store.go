package cache

import (
	"context"
	"fmt"
	"time"

	"cartai/internal/core"
	"cartai/internal/storage"
)

// Entry is a durable cache row.
type Entry struct {
	Key        string            `json:"key" bson:"_id"`
	Model      string            `json:"model" bson:"model"`
	Response   core.ChatResponse `json:"response" bson:"response"`
	TokenCount int               `json:"token_count" bson:"token_count"`
	ExpiresAt  time.Time         `json:"expires_at" bson:"expires_at"`
}

// Store is the durable cache tier. Get must return (nil, nil) for a miss
// or an expired row — expired rows are never served, only purged.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewStore creates the durable store matching the storage backend.
func NewStore(ctx context.Context, store storage.Storage) (Store, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(ctx, store.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoStore(ctx, store.MongoDatabase())
	default:
		return nil, fmt.Errorf("unsupported storage type for cache: %s", store.Type())
	}
}
