package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/lock"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// CartStore owns user carts. Cart writers take the per-user lock through
// lockUser so replace, checkout and reconciliation never interleave.
type CartStore struct {
	users    UserRepository
	catalog  CatalogRepository
	locker   lock.Locker
	lockWait time.Duration
	logger   *zap.Logger
}

// NewCartStore creates a new cart store
func NewCartStore(users UserRepository, catalog CatalogRepository, locker lock.Locker, lockWait time.Duration) *CartStore {
	return &CartStore{
		users:    users,
		catalog:  catalog,
		locker:   locker,
		lockWait: lockWait,
		logger:   util.GetLogger(),
	}
}

// ValidateCart checks line shape: a product id, quantity of at least one and
// no product listed twice.
func ValidateCart(cart models.Cart) error {
	seen := make(map[string]struct{}, len(cart))
	for i, line := range cart {
		field := fmt.Sprintf("cart[%d]", i)
		if line.Product == "" {
			return &models.ValidationError{Field: field + ".product", Reason: "product is required"}
		}
		if line.Quantity < 1 {
			return &models.ValidationError{Field: field + ".quantity", Reason: "quantity must be at least 1"}
		}
		if _, dup := seen[line.Product]; dup {
			return &models.ValidationError{Field: field + ".product", Reason: fmt.Sprintf("duplicate product %s", line.Product)}
		}
		seen[line.Product] = struct{}{}
	}
	return nil
}

// Get returns the user's cart, possibly empty.
func (cs *CartStore) Get(ctx context.Context, userID string) (models.Cart, error) {
	user, err := cs.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Data.Cart, nil
}

// Replace swaps the whole cart. An invalid cart is rejected before anything
// is written.
func (cs *CartStore) Replace(ctx context.Context, userID string, cart models.Cart) error {
	if err := ValidateCart(cart); err != nil {
		util.CartReplacementsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	unlock, err := cs.lockUser(ctx, userID)
	if err != nil {
		util.CartReplacementsTotal.WithLabelValues("busy").Inc()
		return err
	}
	defer unlock()

	if err := cs.users.SetCart(ctx, userID, cart); err != nil {
		util.CartReplacementsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to replace cart: %w", err)
	}

	util.CartReplacementsTotal.WithLabelValues("ok").Inc()
	cs.logger.Debug("Cart replaced", zap.String("user_id", userID), zap.Int("lines", len(cart)))
	return nil
}

// Populate resolves every line of the user's cart against the catalog.
func (cs *CartStore) Populate(ctx context.Context, userID string) ([]models.PopulatedLine, error) {
	cart, err := cs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cs.populateCart(ctx, cart)
}

// populateCart keeps cart order and fails with *models.BrokenReferenceError
// if any referenced product is gone.
func (cs *CartStore) populateCart(ctx context.Context, cart models.Cart) ([]models.PopulatedLine, error) {
	if len(cart) == 0 {
		return []models.PopulatedLine{}, nil
	}

	ids := make([]string, 0, len(cart))
	for _, line := range cart {
		ids = append(ids, line.Product)
	}

	products, err := cs.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]models.PopulatedLine, 0, len(cart))
	var missing []string
	for _, line := range cart {
		product, ok := byID[line.Product]
		if !ok {
			missing = append(missing, line.Product)
			continue
		}
		lines = append(lines, models.PopulatedLine{Product: product, Quantity: line.Quantity})
	}

	if len(missing) > 0 {
		return nil, &models.BrokenReferenceError{ProductIDs: missing}
	}
	return lines, nil
}

// Clear empties the cart. It does not take the user lock; callers that
// mutate under the lock already hold it.
func (cs *CartStore) Clear(ctx context.Context, userID string) error {
	if err := cs.users.SetCart(ctx, userID, models.Cart{}); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (cs *CartStore) lockUser(ctx context.Context, userID string) (lock.Unlock, error) {
	waitCtx, cancel := context.WithTimeout(ctx, cs.lockWait)
	defer cancel()

	start := time.Now()
	unlock, err := cs.locker.Lock(waitCtx, "cart:"+userID)
	util.UserLockWaitSeconds.Observe(time.Since(start).Seconds())

	if errors.Is(err, lock.ErrNotAcquired) || errors.Is(err, context.DeadlineExceeded) {
		cs.logger.Warn("Cart lock busy", zap.String("user_id", userID), zap.Duration("waited", time.Since(start)))
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrBusy)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return unlock, nil
}
