package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SortMode selects the order of a category listing.
type SortMode int

const (
	SortNameAsc SortMode = iota
	SortPriceAsc
	SortPriceDesc
)

// ParseSortMode maps the ?price query parameter: "1" ascending, "-1"
// descending, anything else sorts by name.
func ParseSortMode(price string) SortMode {
	switch price {
	case "1":
		return SortPriceAsc
	case "-1":
		return SortPriceDesc
	default:
		return SortNameAsc
	}
}

func (m SortMode) String() string {
	switch m {
	case SortPriceAsc:
		return "price_asc"
	case SortPriceDesc:
		return "price_desc"
	default:
		return "name_asc"
	}
}

// CatalogIndex serves category and product reads.
type CatalogIndex struct {
	repo   CatalogRepository
	logger *zap.Logger
}

// NewCatalogIndex creates a new catalog index
func NewCatalogIndex(repo CatalogRepository) *CatalogIndex {
	return &CatalogIndex{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// GetCategory returns models.ErrNotFound for an unknown id
func (ci *CatalogIndex) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return ci.repo.GetCategory(ctx, id)
}

// ListChildren returns the direct children of parentID ordered by id.
func (ci *CatalogIndex) ListChildren(ctx context.Context, parentID string) ([]models.Category, error) {
	children, err := ci.repo.ListCategoriesByParent(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", parentID, err)
	}

	slices.SortFunc(children, func(a, b models.Category) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return children, nil
}

// GetProduct returns models.ErrNotFound for an unknown id
func (ci *CatalogIndex) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return ci.repo.GetProduct(ctx, id)
}

// ListProductsByCategory returns every product filed under categoryID or one
// of its descendants.
func (ci *CatalogIndex) ListProductsByCategory(ctx context.Context, categoryID string, mode SortMode) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogIndex.ListProductsByCategory",
		attribute.String("category_id", categoryID),
		attribute.String("sort", mode.String()))
	defer span.End()

	if _, err := ci.repo.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}

	candidates, err := ci.repo.ListProductsByAncestor(ctx, categoryID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list products for %s: %w", categoryID, err)
	}

	products := make([]models.Product, 0, len(candidates))
	for i := range candidates {
		if candidates[i].InCategory(categoryID) {
			products = append(products, candidates[i])
		}
	}
	if dropped := len(candidates) - len(products); dropped > 0 {
		ci.logger.Warn("Repository returned products outside the category",
			zap.String("category_id", categoryID),
			zap.Int("dropped", dropped))
	}

	SortProducts(products, mode)
	return products, nil
}

// SortProducts orders products in place. Ties are broken by id so the
// result does not depend on repository order.
func SortProducts(products []models.Product, mode SortMode) {
	slices.SortFunc(products, func(a, b models.Product) int {
		var c int
		switch mode {
		case SortPriceAsc:
			c = cmp.Compare(a.Price.Amount, b.Price.Amount)
		case SortPriceDesc:
			c = cmp.Compare(b.Price.Amount, a.Price.Amount)
		default:
			c = cmp.Compare(a.Name, b.Name)
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
