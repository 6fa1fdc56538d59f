package service

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settledAnomaly(t *testing.T, f *pipelineFixture, cart models.Cart) *models.CartClearFailedEvent {
	t.Helper()
	f.fill(t, "u1", cart)
	f.users.failClear = assert.AnError

	_, err := f.pipeline.Checkout(context.Background(), CheckoutRequest{UserID: "u1", Token: "tok_visa"})
	require.NoError(t, err)
	require.Len(t, f.publisher.clears, 1)

	f.users.failClear = nil
	return f.publisher.clears[0]
}

func TestReconcile_ClearsUnchangedCart(t *testing.T) {
	f := newPipelineFixture(t)
	event := settledAnomaly(t, f, models.Cart{{Product: "phone-1", Quantity: 1}})
	rc := NewCartReconciler(f.carts, f.ledger)

	outcome, err := rc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ReconcileCleared, outcome)
	assert.Empty(t, f.users.cart("u1"))
	assert.True(t, f.ledger.only().CartCleared)
	assert.Equal(t, 1, f.gateway.Calls())
}

func TestReconcile_LeavesEditedCart(t *testing.T) {
	f := newPipelineFixture(t)
	event := settledAnomaly(t, f, models.Cart{{Product: "phone-1", Quantity: 1}})
	edited := models.Cart{{Product: "phone-1", Quantity: 1}, {Product: "laptop-1", Quantity: 1}}
	f.fill(t, "u1", edited)
	rc := NewCartReconciler(f.carts, f.ledger)

	outcome, err := rc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ReconcileSuperseded, outcome)
	assert.Equal(t, edited, f.users.cart("u1"))

	rec := f.ledger.only()
	assert.False(t, rec.CartCleared)
	require.NotNil(t, rec.CartClearError)
	assert.Contains(t, *rec.CartClearError, ReconcileSuperseded)
}

func TestReconcile_AlreadyEmpty(t *testing.T) {
	f := newPipelineFixture(t)
	event := settledAnomaly(t, f, models.Cart{{Product: "phone-1", Quantity: 1}})
	require.NoError(t, f.carts.Clear(context.Background(), "u1"))
	rc := NewCartReconciler(f.carts, f.ledger)

	outcome, err := rc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ReconcileAlreadyDone, outcome)
	assert.True(t, f.ledger.only().CartCleared)
}

func TestReconcile_UserMissing(t *testing.T) {
	f := newPipelineFixture(t)
	event := settledAnomaly(t, f, models.Cart{{Product: "phone-1", Quantity: 1}})
	delete(f.users.users, "u1")
	rc := NewCartReconciler(f.carts, f.ledger)

	outcome, err := rc.Reconcile(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, ReconcileUserMissing, outcome)
}

func TestRepairLedger_AppliesDeferredOutcome(t *testing.T) {
	f := newPipelineFixture(t)
	f.pipeline.ledgerBackoff = time.Millisecond
	f.ledger.failComplete = 100
	f.fill(t, "u1", models.Cart{{Product: "phone-1", Quantity: 1}})

	result, err := f.pipeline.Checkout(context.Background(), CheckoutRequest{UserID: "u1", Token: "tok_visa"})
	require.NoError(t, err)
	require.Len(t, f.publisher.repairs, 1)
	assert.Equal(t, models.CheckoutStatusCharging, f.ledger.only().Status)

	f.ledger.failComplete = 0
	rc := NewCartReconciler(f.carts, f.ledger)

	outcome, err := rc.RepairLedger(context.Background(), f.publisher.repairs[0])
	require.NoError(t, err)
	assert.Equal(t, RepairApplied, outcome)

	rec, err := f.pipeline.Status(context.Background(), "u1", result.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, models.CheckoutStatusSettled, rec.Status)
	require.NotNil(t, rec.ChargeID)
	assert.Equal(t, result.ChargeID, *rec.ChargeID)

	// redelivery is harmless
	outcome, err = rc.RepairLedger(context.Background(), f.publisher.repairs[0])
	require.NoError(t, err)
	assert.Equal(t, RepairAlreadyRecorded, outcome)
	assert.Equal(t, 1, f.gateway.Calls())
}

func TestRepairLedger_Errors(t *testing.T) {
	f := newPipelineFixture(t)
	rc := NewCartReconciler(f.carts, f.ledger)

	_, err := rc.RepairLedger(context.Background(), &models.LedgerRepairEvent{
		CheckoutID: "c1",
		Status:     models.CheckoutStatusCharging,
	})
	assert.ErrorContains(t, err, "not terminal")

	f.ledger.failComplete = 1
	_, err = rc.RepairLedger(context.Background(), &models.LedgerRepairEvent{
		CheckoutID: "c1",
		Status:     models.CheckoutStatusFailed,
	})
	assert.ErrorContains(t, err, "ledger unavailable")
}
