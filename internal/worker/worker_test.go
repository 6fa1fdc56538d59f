package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMaintainer struct {
	err   error
	calls int
	last  *string
}

func (s *stubMaintainer) Reparent(_ context.Context, _ string, parent *string) (*service.RecomputeReport, error) {
	s.calls++
	s.last = parent
	if s.err != nil {
		return nil, s.err
	}
	return &service.RecomputeReport{Categories: 1, Products: 3}, nil
}

type stubReconciler struct {
	failures int
	calls    int
	repairs  []*models.LedgerRepairEvent
}

func (s *stubReconciler) Reconcile(context.Context, *models.CartClearFailedEvent) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", models.ErrBusy
	}
	return service.ReconcileCleared, nil
}

func (s *stubReconciler) RepairLedger(_ context.Context, event *models.LedgerRepairEvent) (string, error) {
	s.calls++
	if s.calls <= s.failures {
		return "", models.ErrPersistence
	}
	s.repairs = append(s.repairs, event)
	return service.RepairApplied, nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: body}
}

func TestCatalogWorker_AppliesCommand(t *testing.T) {
	m := &stubMaintainer{}
	w := NewCatalogWorker(nil, m)

	parent := "Computers"
	msg := message(t, &models.CategoryReparentedEvent{
		BaseEvent:  models.BaseEvent{EventID: "e1", EventType: models.EventTypeCategoryReparented},
		CategoryID: "Laptops",
		Parent:     &parent,
	})

	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	assert.Equal(t, 1, m.calls)
	require.NotNil(t, m.last)
	assert.Equal(t, "Computers", *m.last)
}

func TestCatalogWorker_RejectedCommandIsAcknowledged(t *testing.T) {
	m := &stubMaintainer{err: &models.ValidationError{Field: "parent", Reason: "cycle"}}
	w := NewCatalogWorker(nil, m)

	msg := message(t, &models.CategoryReparentedEvent{
		BaseEvent:  models.BaseEvent{EventType: models.EventTypeCategoryReparented},
		CategoryID: "Laptops",
	})
	assert.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
}

func TestCatalogWorker_StoreErrorIsReturned(t *testing.T) {
	m := &stubMaintainer{err: models.ErrPersistence}
	w := NewCatalogWorker(nil, m)

	msg := message(t, &models.CategoryReparentedEvent{
		BaseEvent:  models.BaseEvent{EventType: models.EventTypeCategoryReparented},
		CategoryID: "Laptops",
	})
	assert.ErrorIs(t, w.eventHandler.HandleMessage(context.Background(), msg), models.ErrPersistence)
}

func TestReconcileWorker_RetriesUntilSuccess(t *testing.T) {
	r := &stubReconciler{failures: 2}
	w := NewReconcileWorker(nil, r)
	w.backoff = time.Millisecond

	msg := message(t, &models.CartClearFailedEvent{
		BaseEvent:  models.BaseEvent{EventType: models.EventTypeCartClearFailed},
		CheckoutID: "c1",
		UserID:     "u1",
	})
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	assert.Equal(t, 3, r.calls)
}

func TestReconcileWorker_GivesUp(t *testing.T) {
	r := &stubReconciler{failures: 100}
	w := NewReconcileWorker(nil, r)
	w.backoff = time.Millisecond
	w.attempts = 3

	err := w.handleCartClearFailed(context.Background(), &models.CartClearFailedEvent{CheckoutID: "c1"})
	assert.True(t, errors.Is(err, models.ErrBusy))
	assert.Equal(t, 3, r.calls)
}

func TestReconcileWorker_StopsOnCancel(t *testing.T) {
	r := &stubReconciler{failures: 100}
	w := NewReconcileWorker(nil, r)
	w.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.handleCartClearFailed(ctx, &models.CartClearFailedEvent{CheckoutID: "c1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.calls)
}

func TestReconcileWorker_RoutesLedgerRepair(t *testing.T) {
	r := &stubReconciler{failures: 1}
	w := NewReconcileWorker(nil, r)
	w.backoff = time.Millisecond

	chargeID := "ch_1"
	msg := message(t, &models.LedgerRepairEvent{
		BaseEvent:  models.BaseEvent{EventType: models.EventTypeLedgerRepair},
		CheckoutID: "c1",
		UserID:     "u1",
		Status:     models.CheckoutStatusSettled,
		ChargeID:   &chargeID,
	})
	require.NoError(t, w.eventHandler.HandleMessage(context.Background(), msg))
	assert.Equal(t, 2, r.calls)
	require.Len(t, r.repairs, 1)
	assert.Equal(t, models.CheckoutStatusSettled, r.repairs[0].Status)
	assert.Equal(t, "ch_1", *r.repairs[0].ChargeID)
}

func TestReconcileWorker_LedgerRepairGivesUp(t *testing.T) {
	r := &stubReconciler{failures: 100}
	w := NewReconcileWorker(nil, r)
	w.backoff = time.Millisecond
	w.attempts = 2

	err := w.handleLedgerRepair(context.Background(), &models.LedgerRepairEvent{CheckoutID: "c1"})
	assert.ErrorIs(t, err, models.ErrPersistence)
	assert.Equal(t, 2, r.calls)
}
