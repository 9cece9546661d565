// Package repository provides the TTL cache stores and user repositories.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// appName identifies spw connections in the server logs.
const appName = "spw"

// MongoDB is a connection shared by the Mongo repositories.
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	logger   *slog.Logger
}

// MongoDBConfig contains configuration for the MongoDB connection.
type MongoDBConfig struct {
	URI      string
	Database string

	// ConnectTimeout bounds client creation and server selection
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
}

// DefaultMongoDBConfig returns default configuration.
func DefaultMongoDBConfig() *MongoDBConfig {
	return &MongoDBConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "spw",
		ConnectTimeout: 10 * time.Second,
		PingTimeout:    5 * time.Second,
	}
}

// NewMongoDB connects to cfg.URI and verifies the server answers. A nil
// cfg uses DefaultMongoDBConfig.
func NewMongoDB(ctx context.Context, cfg *MongoDBConfig, logger *slog.Logger) (*MongoDB, error) {
	if cfg == nil {
		cfg = DefaultMongoDBConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB at %s: %w", cfg.URI, err)
	}

	logger.Debug("Connected to MongoDB", "database", cfg.Database)

	return &MongoDB{
		client:   client,
		database: client.Database(cfg.Database),
		logger:   logger,
	}, nil
}

// indexes are the indexes the repositories rely on.
var indexes = []struct {
	collection string
	model      mongo.IndexModel
}{
	{ttlCollection, mongo.IndexModel{Keys: bson.D{{Key: "env", Value: 1}, {Key: "identity", Value: 1}}}},
	{usersCollection, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)}},
}

// EnsureIndexes creates the repository indexes. Existing indexes are left as they are.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	for _, idx := range indexes {
		name, err := m.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection, err)
		}
		m.logger.Debug("Index ready", "collection", idx.collection, "index", name)
	}
	return nil
}

// Close disconnects from MongoDB.
func (m *MongoDB) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

// Collection returns a collection of the configured database.
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}
