package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/broker"
	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

type reparenter interface {
	Reparent(ctx context.Context, categoryID string, newParent *string) (*service.RecomputeReport, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, event *models.CartClearFailedEvent) (string, error)
	RepairLedger(ctx context.Context, event *models.LedgerRepairEvent) (string, error)
}

// CatalogWorker applies category reparent commands
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	maintainer   reparenter
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer *broker.Consumer, maintainer reparenter) *CatalogWorker {
	w := &CatalogWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		maintainer:   maintainer,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCategoryReparented(w.handleReparented)
	return w
}

func (w *CatalogWorker) handleReparented(ctx context.Context, event *models.CategoryReparentedEvent) error {
	report, err := w.maintainer.Reparent(ctx, event.CategoryID, event.Parent)
	if errors.Is(err, models.ErrValidation) || errors.Is(err, models.ErrNotFound) {
		// rejected commands are not retried
		w.logger.Warn("Rejected reparent command",
			zap.String("event_id", event.EventID),
			zap.String("category_id", event.CategoryID),
			zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reparent %s: %w", event.CategoryID, err)
	}

	w.logger.Info("Applied reparent command",
		zap.String("event_id", event.EventID),
		zap.String("category_id", event.CategoryID),
		zap.Int("categories", report.Categories),
		zap.Int64("products", report.Products))
	return nil
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}

// ReconcileWorker retries cart clears that failed after a settled checkout
// and terminal ledger writes the pipeline gave up on
type ReconcileWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	reconciler   reconciler
	attempts     int
	backoff      time.Duration
	logger       *zap.Logger
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(consumer *broker.Consumer, reconciler reconciler) *ReconcileWorker {
	w := &ReconcileWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		reconciler:   reconciler,
		attempts:     5,
		backoff:      500 * time.Millisecond,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCartClearFailed(w.handleCartClearFailed)
	w.eventHandler.OnLedgerRepair(w.handleLedgerRepair)
	return w
}

func (w *ReconcileWorker) handleCartClearFailed(ctx context.Context, event *models.CartClearFailedEvent) error {
	err := w.retry(ctx, event.CheckoutID, func(ctx context.Context) (string, error) {
		return w.reconciler.Reconcile(ctx, event)
	})
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		util.CartReconciliationsTotal.WithLabelValues("gave_up").Inc()
		w.logger.Error("Giving up on cart clear anomaly",
			zap.String("checkout_id", event.CheckoutID),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return fmt.Errorf("reconcile checkout %s: %w", event.CheckoutID, err)
	}
	return nil
}

func (w *ReconcileWorker) handleLedgerRepair(ctx context.Context, event *models.LedgerRepairEvent) error {
	err := w.retry(ctx, event.CheckoutID, func(ctx context.Context) (string, error) {
		return w.reconciler.RepairLedger(ctx, event)
	})
	if errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		util.LedgerRepairsTotal.WithLabelValues("gave_up").Inc()
		w.logger.Error("Giving up on checkout ledger repair",
			zap.String("checkout_id", event.CheckoutID),
			zap.String("status", event.Status.String()),
			zap.Error(err))
		return fmt.Errorf("repair checkout %s: %w", event.CheckoutID, err)
	}
	return nil
}

// retry runs fn with doubling backoff, since the consumer moves past a
// message once a later one commits.
func (w *ReconcileWorker) retry(ctx context.Context, checkoutID string, fn func(context.Context) (string, error)) error {
	delay := w.backoff
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		var outcome string
		outcome, err = fn(ctx)
		if err == nil {
			w.logger.Info("Checkout anomaly resolved",
				zap.String("checkout_id", checkoutID),
				zap.String("outcome", outcome),
				zap.Int("attempt", attempt))
			return nil
		}

		w.logger.Warn("Reconcile attempt failed",
			zap.String("checkout_id", checkoutID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == w.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// Start starts the reconcile worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reconcile worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the reconcile worker
func (w *ReconcileWorker) Stop() error {
	w.logger.Info("Stopping reconcile worker")
	return w.consumer.Close()
}
