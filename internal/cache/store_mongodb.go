package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoCacheCollection = "llm_cache"

// MongoStore is the MongoDB-backed durable cache tier.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates the store and ensures the expiry index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, errors.New("mongo database is nil")
	}
	coll := db.Collection(mongoCacheCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache index: %w", err)
	}
	return &MongoStore{collection: coll}, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) (*Entry, error) {
	filter := bson.M{
		"_id":        key,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}
	var entry Entry
	err := s.collection.FindOne(ctx, filter).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return &entry, nil
}

func (s *MongoStore) Set(ctx context.Context, entry *Entry) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"_id": entry.Key},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (s *MongoStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.collection.DeleteMany(ctx,
		bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired cache entries: %w", err)
	}
	return res.DeletedCount, nil
}
