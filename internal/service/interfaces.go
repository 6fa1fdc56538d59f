package service

import (
	"context"

	"storefront-service/internal/models"
)

// CatalogRepository is the read side of the catalog document store.
type CatalogRepository interface {
	GetCategory(ctx context.Context, id string) (*models.Category, error)
	ListCategoriesByParent(ctx context.Context, parentID string) ([]models.Category, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProductsByAncestor(ctx context.Context, categoryID string) ([]models.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]models.ScoredProduct, error)
}

// CatalogWriter is what the AncestorMaintainer needs to rewrite closures.
type CatalogWriter interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	UpdateCategoryLinks(ctx context.Context, id string, parent *string, ancestors []string) error
	SetProductCategoryAncestors(ctx context.Context, categoryID string, closure []string) (int64, error)
}

// UserRepository persists users and the cart embedded in each user document.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	SetCart(ctx context.Context, userID string, cart models.Cart) error
}

// CheckoutLedger records every checkout attempt and its terminal outcome.
type CheckoutLedger interface {
	CreateCheckout(ctx context.Context, rec *models.CheckoutRecord) error
	GetCheckout(ctx context.Context, userID, id string) (*models.CheckoutRecord, error)
	GetCheckoutByIdempotencyKey(ctx context.Context, userID, key string) (*models.CheckoutRecord, error)
	CompleteCheckout(ctx context.Context, id string, status models.CheckoutStatus, chargeID, message *string) error
	RecordCartClear(ctx context.Context, id string, clearErr *string) error
}

// EventPublisher announces checkout outcomes.
type EventPublisher interface {
	PublishCheckoutSettled(ctx context.Context, event *models.CheckoutSettledEvent) error
	PublishCheckoutDeclined(ctx context.Context, event *models.CheckoutDeclinedEvent) error
	PublishCheckoutFailed(ctx context.Context, event *models.CheckoutFailedEvent) error
	PublishCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error
	PublishLedgerRepair(ctx context.Context, event *models.LedgerRepairEvent) error
}
