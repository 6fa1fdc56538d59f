package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-service/internal/models"

	"github.com/lib/pq"
)

// ErrDuplicateCheckout is returned when (user, idempotency key) already has a record.
var ErrDuplicateCheckout = errors.New("checkout already exists for idempotency key")

const uniqueViolation = "23505"

// CreateCheckout inserts a record in CHARGING state
func (s *Store) CreateCheckout(ctx context.Context, rec *models.CheckoutRecord) error {
	query := `
		INSERT INTO checkouts (id, user_id, idempotency_key, amount, currency, status, cart_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		rec.ID, rec.UserID, rec.IdempotencyKey, rec.Amount, rec.Currency, rec.Status, rec.CartSnapshot,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateCheckout
	}
	if err != nil {
		return fmt.Errorf("create checkout: %w: %w", models.ErrPersistence, err)
	}
	return nil
}

// GetCheckout retrieves a checkout owned by userID
func (s *Store) GetCheckout(ctx context.Context, userID, id string) (*models.CheckoutRecord, error) {
	var rec models.CheckoutRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM checkouts WHERE id = $1 AND user_id = $2", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkout %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout: %w: %w", models.ErrPersistence, err)
	}
	return &rec, nil
}

// GetCheckoutByIdempotencyKey returns nil, nil when no record exists
func (s *Store) GetCheckoutByIdempotencyKey(ctx context.Context, userID, key string) (*models.CheckoutRecord, error) {
	var rec models.CheckoutRecord
	err := s.db.GetContext(ctx, &rec,
		"SELECT * FROM checkouts WHERE user_id = $1 AND idempotency_key = $2", userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout by key: %w: %w", models.ErrPersistence, err)
	}
	return &rec, nil
}

// CompleteCheckout moves a CHARGING record to its terminal status. A record
// that is already terminal is left alone.
func (s *Store) CompleteCheckout(ctx context.Context, id string, status models.CheckoutStatus, chargeID, message *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("complete checkout: status %s is not terminal: %w", status, models.ErrValidation)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE checkouts
		SET status = $1, charge_id = $2, message = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		status, chargeID, message, id, models.CheckoutStatusCharging)
	if err != nil {
		return fmt.Errorf("complete checkout: %w: %w", models.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete checkout: %w: %w", models.ErrPersistence, err)
	}
	if rows == 0 {
		return fmt.Errorf("checkout %s in CHARGING: %w", id, models.ErrNotFound)
	}
	return nil
}

// RecordCartClear stores the outcome of clearing the cart after settlement.
// clearErr nil marks the cart as cleared.
func (s *Store) RecordCartClear(ctx context.Context, id string, clearErr *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE checkouts
		SET cart_cleared = $1, cart_clear_error = $2, updated_at = NOW()
		WHERE id = $3`,
		clearErr == nil, clearErr, id)
	if err != nil {
		return fmt.Errorf("record cart clear: %w: %w", models.ErrPersistence, err)
	}
	return nil
}
