package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"storefront-service/internal/models"
)

func strPtr(s string) *string { return &s }

type fakeCatalog struct {
	mu          sync.Mutex
	categories  map[string]*models.Category
	products    map[string]*models.Product
	searchHits  []models.ScoredProduct
	searchCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		categories: make(map[string]*models.Category),
		products:   make(map[string]*models.Product),
	}
}

func (f *fakeCatalog) addCategory(id string, parent *string, ancestors ...string) {
	if ancestors == nil {
		ancestors = []string{}
	}
	f.categories[id] = &models.Category{ID: id, Parent: parent, Ancestors: ancestors}
}

func (f *fakeCatalog) addProduct(id, name string, categoryID string, amount int64, usd float64) {
	cat := f.categories[categoryID]
	f.products[id] = &models.Product{
		ID:       id,
		Name:     name,
		Category: models.ProductCategory{ID: categoryID, Ancestors: cat.Closure()},
		Price:    models.Price{Amount: amount, Currency: "USD"},
		Internal: models.ProductInternal{ApproximatePriceUSD: usd},
	}
}

func (f *fakeCatalog) GetCategory(_ context.Context, id string) (*models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, models.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (f *fakeCatalog) ListCategoriesByParent(_ context.Context, parentID string) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Category{}
	for _, c := range f.categories {
		if c.ParentID() == parentID && c.Parent != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListCategories(_ context.Context) ([]models.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Category, 0, len(f.categories))
	for _, c := range f.categories {
		cp := *c
		cp.Ancestors = append([]string{}, c.Ancestors...)
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeCatalog) UpdateCategoryLinks(_ context.Context, id string, parent *string, ancestors []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return models.ErrNotFound
	}
	c.Parent = parent
	c.Ancestors = append([]string{}, ancestors...)
	return nil
}

func (f *fakeCatalog) SetProductCategoryAncestors(_ context.Context, categoryID string, closure []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, p := range f.products {
		if p.Category.ID == categoryID {
			p.Category.Ancestors = append([]string{}, closure...)
			n++
		}
	}
	return n, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (f *fakeCatalog) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListProductsByAncestor(_ context.Context, categoryID string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Product{}
	for _, p := range f.products {
		if p.InCategory(categoryID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SearchProducts(_ context.Context, query string, limit int) ([]models.ScoredProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	out := []models.ScoredProduct{}
	for _, hit := range f.searchHits {
		if strings.Contains(strings.ToLower(hit.Name), strings.ToLower(query)) {
			out = append(out, hit)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]*models.User
	failClear error
	writes    int
}

func newFakeUsers(ids ...string) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*models.User)}
	for _, id := range ids {
		f.users[id] = &models.User{ID: id, Profile: models.Profile{Username: id}, Data: models.UserData{Cart: models.Cart{}}}
	}
	return f
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	out := *u
	out.Data.Cart = append(models.Cart{}, u.Data.Cart...)
	return &out, nil
}

func (f *fakeUsers) SetCart(_ context.Context, userID string, cart models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(cart) == 0 && f.failClear != nil {
		return f.failClear
	}
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	f.writes++
	u.Data.Cart = append(models.Cart{}, cart...)
	return nil
}

func (f *fakeUsers) cart(userID string) models.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(models.Cart{}, f.users[userID].Data.Cart...)
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*models.CheckoutRecord
	failGet error

	// failComplete makes the next n CompleteCheckout calls fail
	failComplete  int
	completeCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*models.CheckoutRecord)}
}

func (f *fakeLedger) CreateCheckout(_ context.Context, rec *models.CheckoutRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeLedger) GetCheckout(_ context.Context, userID, id string) (*models.CheckoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.UserID != userID {
		return nil, fmt.Errorf("checkout %s: %w", id, models.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeLedger) GetCheckoutByIdempotencyKey(_ context.Context, userID, key string) (*models.CheckoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	for _, rec := range f.records {
		if rec.UserID == userID && rec.IdempotencyKey != nil && *rec.IdempotencyKey == key {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) CompleteCheckout(_ context.Context, id string, status models.CheckoutStatus, chargeID, message *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	if f.failComplete > 0 {
		f.failComplete--
		return errors.New("ledger unavailable")
	}
	rec, ok := f.records[id]
	if !ok || rec.Status != models.CheckoutStatusCharging {
		return models.ErrNotFound
	}
	rec.Status = status
	rec.ChargeID = chargeID
	rec.Message = message
	return nil
}

func (f *fakeLedger) RecordCartClear(_ context.Context, id string, clearErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return models.ErrNotFound
	}
	rec.CartCleared = clearErr == nil
	rec.CartClearError = clearErr
	return nil
}

func (f *fakeLedger) only() *models.CheckoutRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		return rec
	}
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
	clears  []*models.CartClearFailedEvent
	repairs []*models.LedgerRepairEvent
	fail    bool
}

func (f *fakePublisher) record(eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	if f.fail {
		return errors.New("broker down")
	}
	return nil
}

func (f *fakePublisher) PublishCheckoutSettled(_ context.Context, e *models.CheckoutSettledEvent) error {
	return f.record(e.EventType)
}

func (f *fakePublisher) PublishCheckoutDeclined(_ context.Context, e *models.CheckoutDeclinedEvent) error {
	return f.record(e.EventType)
}

func (f *fakePublisher) PublishCheckoutFailed(_ context.Context, e *models.CheckoutFailedEvent) error {
	return f.record(e.EventType)
}

func (f *fakePublisher) PublishCartClearFailed(_ context.Context, e *models.CartClearFailedEvent) error {
	f.mu.Lock()
	f.clears = append(f.clears, e)
	f.mu.Unlock()
	return f.record(e.EventType)
}

func (f *fakePublisher) PublishLedgerRepair(_ context.Context, e *models.LedgerRepairEvent) error {
	f.mu.Lock()
	f.repairs = append(f.repairs, e)
	f.mu.Unlock()
	return f.record(e.EventType)
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.events...)
}

// electronicsCatalog is Electronics → {Phones, Laptops} plus an unrelated
// Bacon category.
func electronicsCatalog() *fakeCatalog {
	f := newFakeCatalog()
	f.addCategory("Electronics", nil)
	f.addCategory("Phones", strPtr("Electronics"), "Electronics")
	f.addCategory("Laptops", strPtr("Electronics"), "Electronics")
	f.addCategory("Bacon", nil)

	f.addProduct("phone-1", "Budget Phone", "Phones", 30000, 300)
	f.addProduct("phone-2", "Android Phone", "Phones", 45000, 450)
	f.addProduct("laptop-1", "Gaming Laptop", "Laptops", 200000, 2000)
	f.addProduct("bacon-1", "Thick Bacon", "Bacon", 900, 9)
	return f
}
