package costs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const mongoCostCollection = "cost_records"

// MongoStore is the MongoDB-backed cost ledger.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates the store and ensures its indexes exist.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("mongo database is nil")
	}
	coll := db.Collection(mongoCostCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cost index: %w", err)
	}
	return &MongoStore{collection: coll}, nil
}

func (s *MongoStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert cost records: %w", err)
	}
	return nil
}

func (s *MongoStore) DailyUsage(ctx context.Context, userID string, day time.Time) (*DailySummary, error) {
	start, end := dayBounds(day)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"user_id":    userID,
			"created_at": bson.M{"$gte": start, "$lt": end},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":           nil,
			"calls":         bson.M{"$sum": 1},
			"failed_calls":  bson.M{"$sum": bson.M{"$cond": bson.A{"$success", 0, 1}}},
			"input_tokens":  bson.M{"$sum": "$input_tokens"},
			"output_tokens": bson.M{"$sum": "$output_tokens"},
			"total_cost":    bson.M{"$sum": "$cost"},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily usage: %w", err)
	}
	defer cursor.Close(ctx)

	summary := &DailySummary{
		UserID: userID,
		Day:    start.Format("2006-01-02"),
	}
	if cursor.Next(ctx) {
		var row struct {
			Calls        int     `bson:"calls"`
			FailedCalls  int     `bson:"failed_calls"`
			InputTokens  int     `bson:"input_tokens"`
			OutputTokens int     `bson:"output_tokens"`
			TotalCost    float64 `bson:"total_cost"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode daily usage: %w", err)
		}
		summary.Calls = row.Calls
		summary.FailedCalls = row.FailedCalls
		summary.InputTokens = row.InputTokens
		summary.OutputTokens = row.OutputTokens
		summary.TotalCost = row.TotalCost
	}
	return summary, cursor.Err()
}

func (s *MongoStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx,
		bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge cost records: %w", err)
	}
	return res.DeletedCount, nil
}

// Close is a no-op; the shared client is owned by the storage layer.
func (s *MongoStore) Close() error { return nil }
