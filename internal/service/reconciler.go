package service

import (
	"context"
	"errors"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Reconcile outcomes
const (
	ReconcileCleared     = "cleared"
	ReconcileAlreadyDone = "already_empty"
	ReconcileSuperseded  = "superseded"
	ReconcileUserMissing = "user_missing"

	RepairApplied         = "repaired"
	RepairAlreadyRecorded = "already_recorded"
)

// CartReconciler retries the cart clear of a settled checkout and applies
// terminal ledger writes the pipeline gave up on. It never touches payment.
type CartReconciler struct {
	carts  *CartStore
	ledger CheckoutLedger
	logger *zap.Logger
}

// NewCartReconciler creates a new cart reconciler
func NewCartReconciler(carts *CartStore, ledger CheckoutLedger) *CartReconciler {
	return &CartReconciler{
		carts:  carts,
		ledger: ledger,
		logger: util.GetLogger(),
	}
}

// Reconcile clears the cart only if it still equals the snapshot that was
// charged. A cart the customer has edited since is left alone.
func (cr *CartReconciler) Reconcile(ctx context.Context, event *models.CartClearFailedEvent) (string, error) {
	ctx, span := util.StartSpan(ctx, "CartReconciler.Reconcile")
	defer span.End()

	logger := cr.logger.With(
		zap.String("checkout_id", event.CheckoutID),
		zap.String("user_id", event.UserID))

	unlock, err := cr.carts.lockUser(ctx, event.UserID)
	if err != nil {
		return "", err
	}
	defer unlock()

	current, err := cr.carts.Get(ctx, event.UserID)
	if errors.Is(err, models.ErrNotFound) {
		logger.Warn("User gone, nothing to reconcile")
		cr.record(ctx, event.CheckoutID, ReconcileUserMissing, logger)
		return ReconcileUserMissing, nil
	}
	if err != nil {
		util.RecordError(span, err)
		return "", err
	}

	var outcome string
	switch {
	case len(current) == 0:
		outcome = ReconcileAlreadyDone
	case current.Equal(event.Cart):
		if err := cr.carts.Clear(ctx, event.UserID); err != nil {
			util.RecordError(span, err)
			return "", fmt.Errorf("reconcile checkout %s: %w", event.CheckoutID, err)
		}
		outcome = ReconcileCleared
	default:
		outcome = ReconcileSuperseded
	}

	cr.record(ctx, event.CheckoutID, outcome, logger)
	logger.Info("Cart reconciled", zap.String("outcome", outcome))
	return outcome, nil
}

func (cr *CartReconciler) record(ctx context.Context, checkoutID, outcome string, logger *zap.Logger) {
	util.CartReconciliationsTotal.WithLabelValues(outcome).Inc()

	var clearErr *string
	if outcome == ReconcileSuperseded || outcome == ReconcileUserMissing {
		msg := "reconcile: " + outcome
		clearErr = &msg
	}
	if err := cr.ledger.RecordCartClear(ctx, checkoutID, clearErr); err != nil {
		logger.Error("Failed to record reconcile outcome", zap.Error(err))
	}
}

// RepairLedger writes a deferred terminal outcome. A record that is already
// terminal is left as it is.
func (cr *CartReconciler) RepairLedger(ctx context.Context, event *models.LedgerRepairEvent) (string, error) {
	ctx, span := util.StartSpan(ctx, "CartReconciler.RepairLedger")
	defer span.End()

	if !event.Status.IsTerminal() {
		return "", fmt.Errorf("repair checkout %s: status %s is not terminal", event.CheckoutID, event.Status)
	}

	outcome := RepairApplied
	err := cr.ledger.CompleteCheckout(ctx, event.CheckoutID, event.Status, event.ChargeID, event.Message)
	if errors.Is(err, models.ErrNotFound) {
		outcome = RepairAlreadyRecorded
	} else if err != nil {
		util.RecordError(span, err)
		return "", fmt.Errorf("repair checkout %s: %w", event.CheckoutID, err)
	}

	util.LedgerRepairsTotal.WithLabelValues(outcome).Inc()
	cr.logger.Info("Checkout ledger repaired",
		zap.String("checkout_id", event.CheckoutID),
		zap.String("status", event.Status.String()),
		zap.String("outcome", outcome))
	return outcome, nil
}
