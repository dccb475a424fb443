package orchestrator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"cartai/internal/core"
	"cartai/internal/storage"
)

// TrainingExample is one captured (input, output) pair from a flagged
// task type, kept for later model evaluation.
type TrainingExample struct {
	Fingerprint string    `json:"fingerprint" bson:"_id"`
	TaskType    string    `json:"task_type" bson:"task_type"`
	Model       string    `json:"model" bson:"model"`
	Input       string    `json:"input" bson:"input"` // JSON-encoded messages
	Output      string    `json:"output" bson:"output"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// TrainingStore persists training examples. Save must be idempotent on
// the fingerprint: re-capturing an identical pair is not an error.
type TrainingStore interface {
	Save(ctx context.Context, example *TrainingExample) error
}

// TrainingCapture dedups and stores training examples. Capture is
// best-effort: failures are logged, never surfaced.
type TrainingCapture struct {
	store TrainingStore
}

// NewTrainingCapture wraps a store. A nil store disables capture.
func NewTrainingCapture(store TrainingStore) *TrainingCapture {
	if store == nil {
		return nil
	}
	return &TrainingCapture{store: store}
}

// Capture stores the (input, output) pair keyed by an xxhash fingerprint
// over both sides, so identical pairs collapse to one row.
func (c *TrainingCapture) Capture(ctx context.Context, task core.TaskType, model string, messages []core.Message, output string) {
	input, err := json.Marshal(messages)
	if err != nil {
		slog.Warn("failed to encode training input", "error", err)
		return
	}

	digest := xxhash.New()
	digest.Write(input)
	digest.Write([]byte{0})
	digest.WriteString(output)

	example := &TrainingExample{
		Fingerprint: strconv.FormatUint(digest.Sum64(), 16),
		TaskType:    string(task),
		Model:       model,
		Input:       string(input),
		Output:      output,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.store.Save(ctx, example); err != nil {
		slog.Warn("failed to store training example",
			"task", task,
			"fingerprint", example.Fingerprint,
			"error", err,
		)
	}
}

// NewTrainingStore creates the training store matching the storage backend.
func NewTrainingStore(ctx context.Context, store storage.Storage) (TrainingStore, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return newSQLiteTrainingStore(ctx, store.SQLiteDB())
	case storage.TypePostgreSQL:
		return newPostgresTrainingStore(ctx, store.PostgreSQLPool())
	case storage.TypeMongoDB:
		return newMongoTrainingStore(store.MongoDatabase()), nil
	default:
		return nil, fmt.Errorf("unsupported storage type for training examples: %s", store.Type())
	}
}

const sqliteTrainingSchema = `
CREATE TABLE IF NOT EXISTS training_examples (
	fingerprint TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	model TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

type sqliteTrainingStore struct {
	db *sql.DB
}

func newSQLiteTrainingStore(ctx context.Context, db *sql.DB) (*sqliteTrainingStore, error) {
	if db == nil {
		return nil, errors.New("sqlite db is nil")
	}
	if _, err := db.ExecContext(ctx, sqliteTrainingSchema); err != nil {
		return nil, fmt.Errorf("failed to create training_examples table: %w", err)
	}
	return &sqliteTrainingStore{db: db}, nil
}

func (s *sqliteTrainingStore) Save(ctx context.Context, e *TrainingExample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO training_examples
			(fingerprint, task_type, model, input, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Fingerprint, e.TaskType, e.Model, e.Input, e.Output, e.CreatedAt.UTC())
	return err
}

const postgresTrainingSchema = `
CREATE TABLE IF NOT EXISTS training_examples (
	fingerprint TEXT PRIMARY KEY,
	task_type TEXT NOT NULL,
	model TEXT NOT NULL,
	input TEXT NOT NULL,
	output TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

type postgresTrainingStore struct {
	pool *pgxpool.Pool
}

func newPostgresTrainingStore(ctx context.Context, pool *pgxpool.Pool) (*postgresTrainingStore, error) {
	if pool == nil {
		return nil, errors.New("postgresql pool is nil")
	}
	if _, err := pool.Exec(ctx, postgresTrainingSchema); err != nil {
		return nil, fmt.Errorf("failed to create training_examples table: %w", err)
	}
	return &postgresTrainingStore{pool: pool}, nil
}

func (s *postgresTrainingStore) Save(ctx context.Context, e *TrainingExample) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO training_examples
			(fingerprint, task_type, model, input, output, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		e.Fingerprint, e.TaskType, e.Model, e.Input, e.Output, e.CreatedAt.UTC())
	return err
}

type mongoTrainingStore struct {
	collection *mongo.Collection
}

func newMongoTrainingStore(db *mongo.Database) *mongoTrainingStore {
	return &mongoTrainingStore{collection: db.Collection("training_examples")}
}

func (s *mongoTrainingStore) Save(ctx context.Context, e *TrainingExample) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": e.Fingerprint},
		bson.M{"$setOnInsert": e},
		options.UpdateOne().SetUpsert(true))
	return err
}
