package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// RecomputeReport counts what a recomputation rewrote.
type RecomputeReport struct {
	Categories int   `json:"categories"`
	Products   int64 `json:"products"`
}

// AncestorMaintainer keeps Category.Ancestors and the denormalized
// Product.Category.Ancestors consistent with parent links.
type AncestorMaintainer struct {
	repo   CatalogWriter
	logger *zap.Logger
}

// NewAncestorMaintainer creates a new ancestor maintainer
func NewAncestorMaintainer(repo CatalogWriter) *AncestorMaintainer {
	return &AncestorMaintainer{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

type categoryTree struct {
	byID     map[string]*models.Category
	children map[string][]string
}

func buildTree(categories []models.Category) *categoryTree {
	t := &categoryTree{
		byID:     make(map[string]*models.Category, len(categories)),
		children: make(map[string][]string),
	}
	for i := range categories {
		c := &categories[i]
		t.byID[c.ID] = c
		if c.Parent != nil {
			t.children[*c.Parent] = append(t.children[*c.Parent], c.ID)
		}
	}
	for _, ids := range t.children {
		sort.Strings(ids)
	}
	return t
}

// subtree returns id and all of its descendants, parents before children.
func (t *categoryTree) subtree(id string) []string {
	order := []string{id}
	seen := map[string]bool{id: true}
	for i := 0; i < len(order); i++ {
		for _, child := range t.children[order[i]] {
			if !seen[child] {
				seen[child] = true
				order = append(order, child)
			}
		}
	}
	return order
}

// ancestorsOf derives a category's ancestors from its parent, which must
// already be up to date.
func (t *categoryTree) ancestorsOf(c *models.Category) []string {
	if c.Parent == nil {
		return []string{}
	}
	parent, ok := t.byID[*c.Parent]
	if !ok {
		return []string{}
	}
	return parent.Closure()
}

// Reparent moves categoryID under newParent, or to the root when newParent is
// nil, and rewrites the closures of the moved subtree.
func (am *AncestorMaintainer) Reparent(ctx context.Context, categoryID string, newParent *string) (*RecomputeReport, error) {
	ctx, span := util.StartSpan(ctx, "AncestorMaintainer.Reparent", attribute.String("category_id", categoryID))
	defer span.End()

	categories, err := am.repo.ListCategories(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	tree := buildTree(categories)

	target, ok := tree.byID[categoryID]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", categoryID, models.ErrNotFound)
	}

	moved := tree.subtree(categoryID)
	if newParent != nil {
		if _, ok := tree.byID[*newParent]; !ok {
			return nil, &models.ValidationError{Field: "parent", Reason: fmt.Sprintf("category %s does not exist", *newParent)}
		}
		if slices.Contains(moved, *newParent) {
			return nil, &models.ValidationError{
				Field:  "parent",
				Reason: fmt.Sprintf("moving %s under %s would create a cycle", categoryID, *newParent),
			}
		}
	}

	target.Parent = newParent
	report, err := am.rewrite(ctx, tree, moved, map[string]bool{categoryID: true})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	am.logger.Info("Category reparented",
		zap.String("category_id", categoryID),
		zap.String("parent", target.ParentID()),
		zap.Int("categories", report.Categories),
		zap.Int64("products", report.Products))
	return report, nil
}

// RecomputeAll rebuilds every closure from parent links, walking down from
// the roots. Nothing is written if the links contain a cycle.
func (am *AncestorMaintainer) RecomputeAll(ctx context.Context) (*RecomputeReport, error) {
	ctx, span := util.StartSpan(ctx, "AncestorMaintainer.RecomputeAll")
	defer span.End()

	categories, err := am.repo.ListCategories(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	tree := buildTree(categories)

	var roots []string
	for id, c := range tree.byID {
		if c.Parent == nil {
			roots = append(roots, id)
			continue
		}
		if _, ok := tree.byID[*c.Parent]; !ok {
			am.logger.Warn("Category has a dangling parent, treating as root",
				zap.String("category_id", id),
				zap.String("parent", *c.Parent))
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	var order []string
	reached := make(map[string]bool, len(tree.byID))
	for _, root := range roots {
		for _, id := range tree.subtree(root) {
			if !reached[id] {
				reached[id] = true
				order = append(order, id)
			}
		}
	}

	if len(order) != len(tree.byID) {
		var cyclic []string
		for id := range tree.byID {
			if !reached[id] {
				cyclic = append(cyclic, id)
			}
		}
		sort.Strings(cyclic)
		return nil, &models.ValidationError{
			Field:  "parent",
			Reason: "cycle among categories " + strings.Join(cyclic, ", "),
		}
	}

	report, err := am.rewrite(ctx, tree, order, nil)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	am.logger.Info("Category closures recomputed",
		zap.Int("categories", report.Categories),
		zap.Int64("products", report.Products))
	return report, nil
}

// rewrite recomputes ancestors for ids in order and restamps their
// products. Categories whose ancestors did not change are only written when
// listed in force.
func (am *AncestorMaintainer) rewrite(ctx context.Context, tree *categoryTree, ids []string, force map[string]bool) (*RecomputeReport, error) {
	report := &RecomputeReport{}
	for _, id := range ids {
		c := tree.byID[id]
		ancestors := tree.ancestorsOf(c)

		if force[id] || !slices.Equal(ancestors, c.Ancestors) {
			if err := am.repo.UpdateCategoryLinks(ctx, id, c.Parent, ancestors); err != nil {
				return report, fmt.Errorf("failed to update category %s: %w", id, err)
			}
			report.Categories++
			util.CategoryRecomputedTotal.Inc()
		}
		c.Ancestors = ancestors

		n, err := am.repo.SetProductCategoryAncestors(ctx, id, c.Closure())
		if err != nil {
			return report, fmt.Errorf("failed to restamp products of %s: %w", id, err)
		}
		report.Products += n
		util.ProductsRestampedTotal.Add(float64(n))
	}
	return report, nil
}
