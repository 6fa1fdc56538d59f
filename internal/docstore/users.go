package docstore

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get user", err)
	}
	if user.Data.Cart == nil {
		user.Data.Cart = models.Cart{}
	}
	return &user, nil
}

// SetCart replaces the user's cart in a single document write
func (s *Store) SetCart(ctx context.Context, userID string, cart models.Cart) error {
	if cart == nil {
		cart = models.Cart{}
	}

	result, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"data.cart": cart}})
	if err != nil {
		return persistErr("set cart", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

// SaveUser inserts or replaces a user; a new user starts with an empty cart
func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	if user.Data.Cart == nil {
		user.Data.Cart = models.Cart{}
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user, opts); err != nil {
		return persistErr("save user", err)
	}
	return nil
}
