package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
)

// MaxSearchResults caps every search response.
const MaxSearchResults = 10

// SearchRanker wraps the repository's text search.
type SearchRanker struct {
	repo CatalogRepository
}

// NewSearchRanker creates a new search ranker
func NewSearchRanker(repo CatalogRepository) *SearchRanker {
	return &SearchRanker{repo: repo}
}

// Search returns at most MaxSearchResults hits, best score first. A blank
// query returns an empty result without touching the repository.
func (sr *SearchRanker) Search(ctx context.Context, query string) ([]models.ScoredProduct, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.ScoredProduct{}, nil
	}

	ctx, span := util.StartSpan(ctx, "SearchRanker.Search", attribute.String("query", query))
	defer span.End()

	hits, err := sr.repo.SearchProducts(ctx, query, MaxSearchResults)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	// stable, so equal scores keep the repository's order
	slices.SortStableFunc(hits, func(a, b models.ScoredProduct) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(hits) > MaxSearchResults {
		hits = hits[:MaxSearchResults]
	}
	return hits, nil
}
