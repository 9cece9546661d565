package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matspina/screen-play-wright/domain/user"
)

// usersCollection holds one document per user, unique by name.
const usersCollection = "users"

// userDocument is the MongoDB document structure for users.
type userDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Name       string             `bson:"name"`
	Username   string             `bson:"username,omitempty"`
	Password   string             `bson:"password,omitempty"`
	Properties map[string]string  `bson:"properties,omitempty"`
}

// MongoUserRepository implements user.Repository using MongoDB.
type MongoUserRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoUserRepository creates a new MongoDB-based user repository.
func NewMongoUserRepository(db *MongoDB, logger *slog.Logger) *MongoUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &MongoUserRepository{
		collection: db.Collection(usersCollection),
		logger:     logger,
	}
}

// FindByName retrieves a user by name.
func (r *MongoUserRepository) FindByName(ctx context.Context, name string) (*user.User, error) {
	filter := bson.M{"name": name}
	var doc userDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return documentToUser(&doc), nil
}

// FindAll retrieves all users.
func (r *MongoUserRepository) FindAll(ctx context.Context) ([]*user.User, error) {
	cursor, err := r.collection.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]*user.User, len(docs))
	for i := range docs {
		users[i] = documentToUser(&docs[i])
	}

	return users, nil
}

// Save upserts the user keyed by name.
func (r *MongoUserRepository) Save(ctx context.Context, u *user.User) error {
	doc := userToDocument(u)

	filter := bson.M{"name": u.Name}
	update := bson.M{"$set": bson.M{
		"username":   doc.Username,
		"password":   doc.Password,
		"properties": doc.Properties,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	if oid, ok := result.UpsertedID.(primitive.ObjectID); ok {
		u.ID = oid.Hex()
		r.logger.Info("User inserted", "id", u.ID, "name", u.Name)
	}
	return nil
}

// Delete removes a user by name.
func (r *MongoUserRepository) Delete(ctx context.Context, name string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if result.DeletedCount == 0 {
		return user.ErrUserNotFound
	}

	r.logger.Info("User deleted", "name", name)
	return nil
}

// documentToUser converts a MongoDB document to a domain User.
func documentToUser(doc *userDocument) *user.User {
	u := &user.User{
		ID:       doc.ID.Hex(),
		Name:     doc.Name,
		Username: doc.Username,
		Password: doc.Password,
	}
	if len(doc.Properties) > 0 {
		u.Properties = make(map[string]string, len(doc.Properties))
		for k, v := range doc.Properties {
			u.Properties[k] = v
		}
	}
	return u
}

// userToDocument converts a domain User to a MongoDB document.
func userToDocument(u *user.User) *userDocument {
	doc := &userDocument{
		Name:     u.Name,
		Username: u.Username,
		Password: u.Password,
	}

	if u.ID != "" {
		if oid, err := primitive.ObjectIDFromHex(u.ID); err == nil {
			doc.ID = oid
		}
	}

	if len(u.Properties) > 0 {
		doc.Properties = make(map[string]string, len(u.Properties))
		for k, v := range u.Properties {
			doc.Properties[k] = v
		}
	}

	return doc
}

// Ensure MongoUserRepository implements user.Repository
var _ user.Repository = (*MongoUserRepository)(nil)
