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

// GetCategory retrieves a category by ID
func (s *Store) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := s.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("category %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get category", err)
	}
	return &category, nil
}

// ListCategoriesByParent returns the direct children of parentID
func (s *Store) ListCategoriesByParent(ctx context.Context, parentID string) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	return s.findCategories(ctx, bson.M{"parent": parentID}, opts)
}

// ListCategories returns every category
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.findCategories(ctx, bson.M{}, options.Find())
}

func (s *Store) findCategories(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Category, error) {
	cursor, err := s.categories.Find(ctx, filter, opts)
	if err != nil {
		return nil, persistErr("find categories", err)
	}

	categories := []models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, persistErr("decode categories", err)
	}
	return categories, nil
}

// SaveCategory inserts or replaces a category
func (s *Store) SaveCategory(ctx context.Context, category *models.Category) error {
	if category.Ancestors == nil {
		category.Ancestors = []string{}
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.categories.ReplaceOne(ctx, bson.M{"_id": category.ID}, category, opts); err != nil {
		return persistErr("save category", err)
	}
	return nil
}

// UpdateCategoryLinks rewrites the parent link and ancestor chain of a category
func (s *Store) UpdateCategoryLinks(ctx context.Context, id string, parent *string, ancestors []string) error {
	if ancestors == nil {
		ancestors = []string{}
	}

	update := bson.M{"$set": bson.M{"ancestors": ancestors}}
	if parent == nil {
		update["$unset"] = bson.M{"parent": ""}
	} else {
		update["$set"] = bson.M{"ancestors": ancestors, "parent": *parent}
	}

	result, err := s.categories.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return persistErr("update category", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("category %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.products.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("get product", err)
	}
	return &product, nil
}

// GetProductsByIDs returns the products that exist among ids, in no particular order
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return s.findProducts(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

// ListProductsByAncestor returns every product at or below categoryID
func (s *Store) ListProductsByAncestor(ctx context.Context, categoryID string) ([]models.Product, error) {
	return s.findProducts(ctx, bson.M{"category.ancestors": categoryID}, options.Find())
}

// ListProductsInCategories returns products whose own category is one of ids
func (s *Store) ListProductsInCategories(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return s.findProducts(ctx, bson.M{"category._id": bson.M{"$in": ids}}, options.Find())
}

func (s *Store) findProducts(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Product, error) {
	cursor, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, persistErr("find products", err)
	}

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, persistErr("decode products", err)
	}
	return products, nil
}

// SearchProducts runs a $text query and returns hits ordered by textScore
func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]models.ScoredProduct, error) {
	score := bson.M{"$meta": "textScore"}
	opts := options.Find().
		SetProjection(bson.M{"score": score}).
		SetSort(bson.D{{Key: "score", Value: score}}).
		SetLimit(int64(limit))

	cursor, err := s.products.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, opts)
	if err != nil {
		return nil, persistErr("search products", err)
	}

	hits := []models.ScoredProduct{}
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, persistErr("decode search results", err)
	}
	return hits, nil
}

// SaveProduct inserts or replaces a product
func (s *Store) SaveProduct(ctx context.Context, product *models.Product) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.products.ReplaceOne(ctx, bson.M{"_id": product.ID}, product, opts); err != nil {
		return persistErr("save product", err)
	}
	return nil
}

// SetProductCategoryAncestors stamps closure on every product filed directly
// under categoryID and reports how many documents changed
func (s *Store) SetProductCategoryAncestors(ctx context.Context, categoryID string, closure []string) (int64, error) {
	result, err := s.products.UpdateMany(ctx,
		bson.M{"category._id": categoryID},
		bson.M{"$set": bson.M{"category.ancestors": closure}})
	if err != nil {
		return 0, persistErr("restamp products", err)
	}
	return result.ModifiedCount, nil
}
