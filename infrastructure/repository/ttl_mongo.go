package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matspina/screen-play-wright/domain/setup"
)

// ttlCollection is the collection holding one document per identity and env.
const ttlCollection = "global_setup_ttl"

// ttlDocument is the MongoDB document structure for TTL entries.
type ttlDocument struct {
	ID             string    `bson:"_id"`
	Identity       string    `bson:"identity"`
	Env            string    `bson:"env"`
	LastExecutedAt time.Time `bson:"last_executed_at"`
}

// MongoTTLRepository implements setup.CacheStore using MongoDB, for runs
// spread over several machines. Each upsert replaces a single document,
// so no extra locking is needed.
type MongoTTLRepository struct {
	collection *mongo.Collection
	clock      clock.Clock
	logger     *slog.Logger
}

// NewMongoTTLRepository creates a new MongoDB-based TTL repository.
func NewMongoTTLRepository(db *MongoDB, clk clock.Clock, logger *slog.Logger) *MongoTTLRepository {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoTTLRepository{
		collection: db.Collection(ttlCollection),
		clock:      clk,
		logger:     logger,
	}
}

func ttlDocumentID(identity, env string) string {
	return identity + "|" + env
}

// IsExpired reports whether identity must run again in env.
func (r *MongoTTLRepository) IsExpired(ctx context.Context, identity, env string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}

	last, found, err := r.LastExecution(ctx, identity, env)
	if err != nil {
		return false, err
	}
	return setup.Expired(last, found, r.clock.Now(), ttl), nil
}

// LastExecution returns the last recorded execution of identity in env.
func (r *MongoTTLRepository) LastExecution(ctx context.Context, identity, env string) (time.Time, bool, error) {
	filter := bson.M{"_id": ttlDocumentID(identity, env)}

	var doc ttlDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to find ttl entry: %w", err)
	}

	return doc.LastExecutedAt, true, nil
}

// RecordExecution upserts the current time under identity and env.
func (r *MongoTTLRepository) RecordExecution(ctx context.Context, identity, env string) error {
	now := r.clock.Now().Truncate(time.Millisecond)

	filter := bson.M{"_id": ttlDocumentID(identity, env)}
	update := bson.M{"$set": bson.M{
		"identity":         identity,
		"env":              env,
		"last_executed_at": now,
	}}

	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to record setup execution: %w", err)
	}

	r.logger.Debug("Setup execution recorded", "identity", identity, "env", env, "at", now)
	return nil
}

var _ setup.CacheStore = (*MongoTTLRepository)(nil)
