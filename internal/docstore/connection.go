// Package docstore is the MongoDB document store behind the catalog and user
// repositories.
package docstore

import (
	"context"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	categoriesCollection = "categories"
	productsCollection   = "products"
	usersCollection      = "users"
)

// Store owns the collections used by the service.
type Store struct {
	db         *mongo.Database
	categories *mongo.Collection
	products   *mongo.Collection
	users      *mongo.Collection
}

// Connect opens a pooled client and verifies it with a ping.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return New(client.Database(database)), nil
}

// New wraps an already connected database.
func New(db *mongo.Database) *Store {
	return &Store{
		db:         db,
		categories: db.Collection(categoriesCollection),
		products:   db.Collection(productsCollection),
		users:      db.Collection(usersCollection),
	}
}

// Close disconnects the underlying client
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// Ping is used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// CreateIndexes creates the indexes the catalog queries rely on.
func (s *Store) CreateIndexes(ctx context.Context) error {
	_, err := s.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create category indexes: %w", err)
	}

	productIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category.ancestors", Value: 1}}},
		{Keys: bson.D{{Key: "category._id", Value: 1}}},
		{
			Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}},
			Options: options.Index().
				SetName("product_text").
				SetWeights(bson.D{{Key: "name", Value: 10}, {Key: "description", Value: 2}}),
		},
	}
	if _, err := s.products.Indexes().CreateMany(ctx, productIndexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
}
