// Package store persists the per-date weather snapshot document.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"farmfresh-backend/internal/models"
	"farmfresh-backend/pkg/logging"
)

// SnapshotStore upserts one document per date
type SnapshotStore interface {
	UpsertDaily(ctx context.Context, snapshot models.DailySnapshot) error
}

// NoopStore discards snapshots when no document store is configured
type NoopStore struct{}

// UpsertDaily does nothing
func (NoopStore) UpsertDaily(context.Context, models.DailySnapshot) error { return nil }

// MongoConfig configures the Mongo snapshot store
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoStore writes daily snapshots to a Mongo collection keyed by date
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *logging.StructuredLogger
}

// NewMongoStore connects, pings and ensures the unique date index
func NewMongoStore(ctx context.Context, cfg MongoConfig, logger *logging.StructuredLogger) (*MongoStore, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index ensure failed: %w", err)
	}
	return s, nil
}

// UpsertDaily replaces the document for snapshot.Date, inserting it if absent
func (s *MongoStore) UpsertDaily(ctx context.Context, snapshot models.DailySnapshot) error {
	_, err := s.collection.UpdateOne(
		ctx,
		bson.M{"date": snapshot.Date},
		upsertDocument(snapshot),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s: %w", snapshot.Date, err)
	}
	return nil
}

// upsertDocument replaces every field of the date's document; city entries are
// flattened to {city, temperature_c, ...}
func upsertDocument(snapshot models.DailySnapshot) bson.M {
	return bson.M{"$set": snapshot}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("date_unique"),
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "[MONGO_INIT] Snapshot index ensured", logging.Fields{
		"collection": s.collection.Name(),
		"index":      "date_unique",
	})
	return nil
}

// HealthCheck pings the primary
func (s *MongoStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
