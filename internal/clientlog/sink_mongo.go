package clientlog

import (
	"context"
	"fmt"
	"time"

	"github.com/clickstudio/click/internal/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding client logs.
const CollectionName = "client_logs"

// MongoSink stores entries in a MongoDB collection. When a retention is
// given the collection carries a TTL index so the server expires entries
// on its own.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoSink connects to uri, pings the server and ensures indexes.
func NewMongoSink(ctx context.Context, uri, database string, retention time.Duration) (*MongoSink, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo sink: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo sink: ping: %w", err)
	}
	s := &MongoSink{client: client, coll: client.Database(database).Collection(CollectionName)}
	if _, err := s.coll.Indexes().CreateMany(ctx, indexModels(retention)); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo sink: create indexes: %w", err)
	}
	return s, nil
}

func indexModels(retention time.Duration) []mongo.IndexModel {
	created := options.Index().SetName("created_at")
	if retention > 0 {
		created.SetExpireAfterSeconds(int32(retention / time.Second))
	}
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}, Options: created},
		{Keys: bson.D{{Key: "level", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
}

func (s *MongoSink) Write(ctx context.Context, entries []models.ClientLog) error {
	docs := make([]any, len(entries))
	for i := range entries {
		docs[i] = entries[i]
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongo sink: insert: %w", err)
	}
	return nil
}

// mongoFilter translates q into a collection filter.
func mongoFilter(q Query) bson.M {
	filter := bson.M{}
	if q.Level != "" {
		filter["level"] = q.Level
	}
	if q.UserID != "" {
		filter["user_id"] = q.UserID
	}
	if q.SessionID != "" {
		filter["session_id"] = q.SessionID
	}
	if !q.Since.IsZero() {
		filter["created_at"] = bson.M{"$gte": q.Since}
	}
	return filter
}

func (s *MongoSink) List(ctx context.Context, q Query) ([]models.ClientLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(q.Limit))
	cursor, err := s.coll.Find(ctx, mongoFilter(q), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo sink: find: %w", err)
	}
	var out []models.ClientLog
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo sink: decode: %w", err)
	}
	return out, nil
}

func (s *MongoSink) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("mongo sink: prune: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
