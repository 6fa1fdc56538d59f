package service

import (
	"context"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func productIDs(products []models.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestListProductsByCategory_IncludesDescendants(t *testing.T) {
	ci := NewCatalogIndex(electronicsCatalog())

	products, err := ci.ListProductsByCategory(context.Background(), "Electronics", SortNameAsc)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"phone-1", "phone-2", "laptop-1"}, productIDs(products))
	assert.NotContains(t, productIDs(products), "bacon-1")
}

func TestListProductsByCategory_Leaf(t *testing.T) {
	ci := NewCatalogIndex(electronicsCatalog())

	products, err := ci.ListProductsByCategory(context.Background(), "Laptops", SortNameAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"laptop-1"}, productIDs(products))
}

func TestListProductsByCategory_UnknownCategory(t *testing.T) {
	ci := NewCatalogIndex(electronicsCatalog())

	_, err := ci.ListProductsByCategory(context.Background(), "Garden", SortNameAsc)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListProductsByCategory_EmptyIsNotAnError(t *testing.T) {
	catalog := electronicsCatalog()
	catalog.addCategory("Tablets", strPtr("Electronics"), "Electronics")
	ci := NewCatalogIndex(catalog)

	products, err := ci.ListProductsByCategory(context.Background(), "Tablets", SortNameAsc)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestListProductsByCategory_Sorting(t *testing.T) {
	catalog := electronicsCatalog()
	// same price as phone-1 to exercise the id tie-break
	catalog.addProduct("phone-0", "Zeta Phone", "Phones", 30000, 300)
	ci := NewCatalogIndex(catalog)
	ctx := context.Background()

	byName, err := ci.ListProductsByCategory(ctx, "Electronics", SortNameAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone-2", "phone-1", "laptop-1", "phone-0"}, productIDs(byName))

	asc, err := ci.ListProductsByCategory(ctx, "Electronics", SortPriceAsc)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone-0", "phone-1", "phone-2", "laptop-1"}, productIDs(asc))
	for i := 1; i < len(asc); i++ {
		assert.LessOrEqual(t, asc[i-1].Price.Amount, asc[i].Price.Amount)
	}

	desc, err := ci.ListProductsByCategory(ctx, "Electronics", SortPriceDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"laptop-1", "phone-2", "phone-0", "phone-1"}, productIDs(desc))
	for i := 1; i < len(desc); i++ {
		assert.GreaterOrEqual(t, desc[i-1].Price.Amount, desc[i].Price.Amount)
	}
}

func TestListChildren(t *testing.T) {
	catalog := electronicsCatalog()
	catalog.addCategory("Cameras", strPtr("Electronics"), "Electronics")
	ci := NewCatalogIndex(catalog)

	children, err := ci.ListChildren(context.Background(), "Electronics")
	require.NoError(t, err)

	ids := make([]string, 0, len(children))
	for _, c := range children {
		assert.Equal(t, "Electronics", c.ParentID())
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"Cameras", "Laptops", "Phones"}, ids)

	none, err := ci.ListChildren(context.Background(), "Bacon")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParseSortMode(t *testing.T) {
	assert.Equal(t, SortPriceAsc, ParseSortMode("1"))
	assert.Equal(t, SortPriceDesc, ParseSortMode("-1"))
	assert.Equal(t, SortNameAsc, ParseSortMode(""))
	assert.Equal(t, SortNameAsc, ParseSortMode("abc"))
}

func TestGetProduct(t *testing.T) {
	ci := NewCatalogIndex(electronicsCatalog())

	p, err := ci.GetProduct(context.Background(), "laptop-1")
	require.NoError(t, err)
	assert.Equal(t, "Gaming Laptop", p.Name)

	_, err = ci.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
