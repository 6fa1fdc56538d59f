package store

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestStore(t *testing.T) *Store {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("Integration test - set INTEGRATION_TESTS=1")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("app"),
		postgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate())
	return store
}

func newRecord(userID string, key *string) *models.CheckoutRecord {
	return &models.CheckoutRecord{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: key,
		Amount:         30000,
		Currency:       "USD",
		Status:         models.CheckoutStatusCharging,
		CartSnapshot:   models.CartSnapshot{{Product: "bacon", Quantity: 2}},
	}
}

func TestCheckoutLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := newRecord("u1", nil)
	require.NoError(t, store.CreateCheckout(ctx, rec))
	assert.False(t, rec.CreatedAt.IsZero())

	chargeID := "ch_1"
	require.NoError(t, store.CompleteCheckout(ctx, rec.ID, models.CheckoutStatusSettled, &chargeID, nil))

	got, err := store.GetCheckout(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusSettled, got.Status)
	require.NotNil(t, got.ChargeID)
	assert.Equal(t, "ch_1", *got.ChargeID)
	assert.Equal(t, rec.CartSnapshot, got.CartSnapshot)
	assert.False(t, got.CartCleared)

	require.NoError(t, store.RecordCartClear(ctx, rec.ID, nil))
	got, err = store.GetCheckout(ctx, "u1", rec.ID)
	require.NoError(t, err)
	assert.True(t, got.CartCleared)

	// terminal records are not overwritten
	err = store.CompleteCheckout(ctx, rec.ID, models.CheckoutStatusFailed, nil, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetCheckout_OtherUser(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := newRecord("u1", nil)
	require.NoError(t, store.CreateCheckout(ctx, rec))

	_, err := store.GetCheckout(ctx, "u2", rec.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIdempotencyKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	key := "idem-1"

	missing, err := store.GetCheckoutByIdempotencyKey(ctx, "u1", key)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.CreateCheckout(ctx, newRecord("u1", &key)))

	err = store.CreateCheckout(ctx, newRecord("u1", &key))
	assert.ErrorIs(t, err, ErrDuplicateCheckout)

	// the key is scoped per user
	require.NoError(t, store.CreateCheckout(ctx, newRecord("u2", &key)))

	found, err := store.GetCheckoutByIdempotencyKey(ctx, "u1", key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u1", found.UserID)
}
