// Package store provides MongoDB connection setup and index bootstrap.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// Collection names.
const (
	AdsCollection   = "ads"
	UsersCollection = "users"
)

// Store wraps the MongoDB client and database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a MongoDB connection, verifies it with a ping, and
// ensures the indexes the listing queries depend on.
func Connect(ctx context.Context, url, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		disconnectErr := client.Disconnect(ctx)
		if disconnectErr != nil {
			return nil, fmt.Errorf("pinging mongo: %w (also failed to disconnect: %v)", err, disconnectErr)
		}
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		disconnectErr := client.Disconnect(ctx)
		if disconnectErr != nil {
			return nil, fmt.Errorf("%w (also failed to disconnect: %v)", err, disconnectErr)
		}
		return nil, err
	}

	return s, nil
}

// ensureIndexes creates the indexes used by the listing and user queries:
// a 2dsphere index for proximity search, a unique slug index, and lookup
// indexes for ownership and feed sorting.
func (s *Store) ensureIndexes(ctx context.Context) error {
	adIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "postedBy", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "address", Value: 1}}},
		{Keys: bson.D{{Key: "priceValue", Value: 1}}},
	}
	if _, err := s.db.Collection(AdsCollection).Indexes().CreateMany(ctx, adIndexes); err != nil {
		return fmt.Errorf("creating ad indexes: %w", err)
	}

	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := s.db.Collection(UsersCollection).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	return nil
}

// Ads returns the listings collection.
func (s *Store) Ads() *mongo.Collection {
	return s.db.Collection(AdsCollection)
}

// Users returns the users collection.
func (s *Store) Users() *mongo.Collection {
	return s.db.Collection(UsersCollection)
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from mongo: %w", err)
	}
	return nil
}
