package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/payment"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutRequest carries one purchase attempt.
type CheckoutRequest struct {
	UserID         string
	Token          string
	IdempotencyKey string
}

// CheckoutResult is returned for a settled checkout.
type CheckoutResult struct {
	CheckoutID string
	ChargeID   string
	Amount     int64
	Currency   string
	Replayed   bool
}

// PipelineConfig holds the pipeline's tunables.
type PipelineConfig struct {
	PaymentTimeout    time.Duration
	ChargeDescription string
}

// CheckoutPipeline turns a user's cart into exactly one charge. States run
// populating, pricing, charging and end settled, declined or failed; only a
// settled checkout empties the cart.
type CheckoutPipeline struct {
	carts     *CartStore
	ledger    CheckoutLedger
	gateway   payment.Gateway
	publisher EventPublisher
	cfg       PipelineConfig
	logger    *zap.Logger

	ledgerAttempts int
	ledgerBackoff  time.Duration
}

// NewCheckoutPipeline creates a new checkout pipeline
func NewCheckoutPipeline(
	carts *CartStore,
	ledger CheckoutLedger,
	gateway payment.Gateway,
	publisher EventPublisher,
	cfg PipelineConfig,
) *CheckoutPipeline {
	return &CheckoutPipeline{
		carts:     carts,
		ledger:    ledger,
		gateway:   gateway,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),

		ledgerAttempts: 3,
		ledgerBackoff:  100 * time.Millisecond,
	}
}

// Checkout runs the pipeline for req. Errors wrap models.ErrUnauthenticated,
// ErrInvalidCart, ErrBusy, ErrPaymentDeclined (as *payment.DeclineError) or
// ErrGateway.
func (cp *CheckoutPipeline) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.UserID == "" {
		return nil, models.ErrUnauthenticated
	}

	ctx, span := util.StartSpan(ctx, "CheckoutPipeline.Checkout", attribute.String("user_id", req.UserID))
	defer span.End()

	unlock, err := cp.carts.lockUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if req.IdempotencyKey != "" {
		prior, err := cp.ledger.GetCheckoutByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil {
			util.RecordError(span, err)
			return nil, err
		}
		if prior != nil {
			cp.logger.Info("Replaying checkout outcome",
				zap.String("checkout_id", prior.ID),
				zap.String("status", prior.Status.String()))
			return replay(prior)
		}
	}

	// Populating
	cart, err := cp.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", models.ErrInvalidCart)
	}
	if err := ValidateCart(cart); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidCart, err)
	}

	lines, err := cp.carts.populateCart(ctx, cart)
	var broken *models.BrokenReferenceError
	if errors.As(err, &broken) {
		cp.logger.Warn("Checkout rejected: cart references missing products",
			zap.String("user_id", req.UserID),
			zap.Strings("product_ids", broken.ProductIDs))
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidCart, err)
	}
	if err != nil {
		return nil, err
	}

	// Pricing
	total := PriceTotal(lines)
	if total <= 0 {
		return nil, fmt.Errorf("%w: nothing to charge", models.ErrInvalidCart)
	}

	rec := &models.CheckoutRecord{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Amount:       total,
		Currency:     ChargeCurrency,
		Status:       models.CheckoutStatusCharging,
		CartSnapshot: models.CartSnapshot(cart),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		rec.IdempotencyKey = &key
	}
	if err := cp.ledger.CreateCheckout(ctx, rec); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}
	span.SetAttributes(attribute.String("checkout_id", rec.ID), attribute.Int64("amount", total))

	// Charging. From here on the client can no longer cancel the outcome.
	detached := context.WithoutCancel(ctx)
	util.CheckoutsStartedTotal.Inc()

	charge, chargeErr := cp.createCharge(detached, rec, req.Token)

	var decline *payment.DeclineError
	switch {
	case chargeErr == nil:
		return cp.settle(detached, rec, charge), nil
	case errors.As(chargeErr, &decline):
		cp.decline(detached, rec, decline)
		util.RecordError(span, chargeErr)
		return nil, fmt.Errorf("checkout %s: %w", rec.ID, decline)
	default:
		gwErr := asGatewayError(chargeErr)
		cp.fail(detached, rec, gwErr)
		util.RecordError(span, chargeErr)
		return nil, fmt.Errorf("checkout %s: %w", rec.ID, gwErr)
	}
}

// Status returns the ledger record of one of the user's checkouts.
func (cp *CheckoutPipeline) Status(ctx context.Context, userID, checkoutID string) (*models.CheckoutRecord, error) {
	if userID == "" {
		return nil, models.ErrUnauthenticated
	}
	return cp.ledger.GetCheckout(ctx, userID, checkoutID)
}

func (cp *CheckoutPipeline) createCharge(ctx context.Context, rec *models.CheckoutRecord, token string) (*models.Charge, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, cp.cfg.PaymentTimeout)
	defer cancel()

	start := time.Now()
	charge, err := cp.gateway.CreateCharge(chargeCtx, payment.ChargeRequest{
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		Source:         token,
		Description:    cp.cfg.ChargeDescription,
		IdempotencyKey: rec.ID,
	})
	// only a created charge may settle
	if err == nil && (charge == nil || charge.Status != models.ChargeStatusCreated) {
		status := "none"
		if charge != nil {
			status = charge.Status
		}
		charge, err = nil, &payment.GatewayError{Message: "unexpected charge status " + status}
	}
	util.PaymentGatewayLatency.WithLabelValues("create_charge", chargeOutcome(err)).Observe(time.Since(start).Seconds())

	if err != nil && chargeCtx.Err() != nil && !errors.Is(err, models.ErrPaymentDeclined) {
		ge := asGatewayError(err)
		ge.Timeout = true
		return nil, ge
	}
	return charge, err
}

func (cp *CheckoutPipeline) settle(ctx context.Context, rec *models.CheckoutRecord, charge *models.Charge) *CheckoutResult {
	logger := cp.logger.With(
		zap.String("checkout_id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.String("charge_id", charge.ID))

	util.CheckoutsSettledTotal.Inc()
	util.CheckoutAmountMinorUnits.Observe(float64(rec.Amount))

	chargeID := charge.ID
	cp.completeCheckout(ctx, rec, models.CheckoutStatusSettled, &chargeID, nil)

	if err := cp.carts.Clear(ctx, rec.UserID); err != nil {
		cp.cartClearFailed(ctx, rec, chargeID, err, logger)
	} else if err := cp.ledger.RecordCartClear(ctx, rec.ID, nil); err != nil {
		logger.Error("Failed to record cart clear", zap.Error(err))
	}

	cp.publish(ctx, func(ctx context.Context) error {
		return cp.publisher.PublishCheckoutSettled(ctx, &models.CheckoutSettledEvent{
			BaseEvent:  newBaseEvent(models.EventTypeCheckoutSettled),
			CheckoutID: rec.ID,
			UserID:     rec.UserID,
			ChargeID:   chargeID,
			Amount:     rec.Amount,
			Currency:   rec.Currency,
		})
	})

	logger.Info("Checkout settled", zap.Int64("amount", rec.Amount))
	return &CheckoutResult{
		CheckoutID: rec.ID,
		ChargeID:   chargeID,
		Amount:     rec.Amount,
		Currency:   rec.Currency,
	}
}

// cartClearFailed reports a settled checkout whose cart is still full. The
// charge stands; the anomaly goes to the log, metrics, ledger and bus.
func (cp *CheckoutPipeline) cartClearFailed(ctx context.Context, rec *models.CheckoutRecord, chargeID string, clearErr error, logger *zap.Logger) {
	util.CartClearAnomaliesTotal.Inc()
	logger.Error("Cart clear failed after settled charge", zap.Error(clearErr))

	reason := clearErr.Error()
	if err := cp.ledger.RecordCartClear(ctx, rec.ID, &reason); err != nil {
		logger.Error("Failed to record cart clear anomaly", zap.Error(err))
	}

	cp.publish(ctx, func(ctx context.Context) error {
		return cp.publisher.PublishCartClearFailed(ctx, &models.CartClearFailedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeCartClearFailed),
			CheckoutID: rec.ID,
			UserID:     rec.UserID,
			ChargeID:   chargeID,
			Cart:       models.Cart(rec.CartSnapshot),
			Reason:     reason,
		})
	})
}

func (cp *CheckoutPipeline) decline(ctx context.Context, rec *models.CheckoutRecord, decline *payment.DeclineError) {
	util.CheckoutsDeclinedTotal.Inc()
	cp.logger.Info("Checkout declined",
		zap.String("checkout_id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.String("decline_code", decline.DeclineCode))

	message := decline.Message
	cp.completeCheckout(ctx, rec, models.CheckoutStatusDeclined, nil, &message)

	cp.publish(ctx, func(ctx context.Context) error {
		return cp.publisher.PublishCheckoutDeclined(ctx, &models.CheckoutDeclinedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeCheckoutDeclined),
			CheckoutID: rec.ID,
			UserID:     rec.UserID,
			Amount:     rec.Amount,
			Reason:     message,
		})
	})
}

func (cp *CheckoutPipeline) fail(ctx context.Context, rec *models.CheckoutRecord, gwErr *payment.GatewayError) {
	reason := "gateway"
	if gwErr.Timeout {
		reason = "timeout"
	}
	util.CheckoutsFailedTotal.WithLabelValues(reason).Inc()
	cp.logger.Error("Checkout failed",
		zap.String("checkout_id", rec.ID),
		zap.String("user_id", rec.UserID),
		zap.Bool("timeout", gwErr.Timeout),
		zap.Error(gwErr))

	message := gwErr.Error()
	cp.completeCheckout(ctx, rec, models.CheckoutStatusFailed, nil, &message)

	cp.publish(ctx, func(ctx context.Context) error {
		return cp.publisher.PublishCheckoutFailed(ctx, &models.CheckoutFailedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeCheckoutFailed),
			CheckoutID: rec.ID,
			UserID:     rec.UserID,
			Amount:     rec.Amount,
			Reason:     message,
			Timeout:    gwErr.Timeout,
		})
	})
}

// completeCheckout writes the terminal outcome, retrying with backoff. When
// every attempt fails the outcome is published for the reconciler so the
// record does not stay CHARGING.
func (cp *CheckoutPipeline) completeCheckout(ctx context.Context, rec *models.CheckoutRecord, status models.CheckoutStatus, chargeID, message *string) {
	backoff := cp.ledgerBackoff
	var err error
	for attempt := 1; attempt <= cp.ledgerAttempts; attempt++ {
		if err = cp.ledger.CompleteCheckout(ctx, rec.ID, status, chargeID, message); err == nil {
			return
		}
		cp.logger.Warn("Failed to record checkout outcome",
			zap.String("checkout_id", rec.ID),
			zap.String("status", status.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == cp.ledgerAttempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			attempt = cp.ledgerAttempts
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	util.LedgerWriteFailuresTotal.Inc()
	cp.logger.Error("Giving up on checkout outcome write, requesting repair",
		zap.String("checkout_id", rec.ID),
		zap.String("status", status.String()),
		zap.Error(err))

	cp.publish(ctx, func(ctx context.Context) error {
		return cp.publisher.PublishLedgerRepair(ctx, &models.LedgerRepairEvent{
			BaseEvent:  newBaseEvent(models.EventTypeLedgerRepair),
			CheckoutID: rec.ID,
			UserID:     rec.UserID,
			Status:     status,
			ChargeID:   chargeID,
			Message:    message,
		})
	})
}

func (cp *CheckoutPipeline) publish(ctx context.Context, send func(context.Context) error) {
	if cp.publisher == nil {
		return
	}
	if err := send(ctx); err != nil {
		cp.logger.Error("Failed to publish checkout event", zap.Error(err))
	}
}

// replay turns a recorded outcome back into the result the first call got.
func replay(rec *models.CheckoutRecord) (*CheckoutResult, error) {
	message := ""
	if rec.Message != nil {
		message = *rec.Message
	}

	switch rec.Status {
	case models.CheckoutStatusSettled:
		result := &CheckoutResult{
			CheckoutID: rec.ID,
			Amount:     rec.Amount,
			Currency:   rec.Currency,
			Replayed:   true,
		}
		if rec.ChargeID != nil {
			result.ChargeID = *rec.ChargeID
		}
		return result, nil
	case models.CheckoutStatusDeclined:
		return nil, fmt.Errorf("checkout %s: %w", rec.ID, &payment.DeclineError{Code: "card_declined", Message: message})
	case models.CheckoutStatusFailed:
		return nil, fmt.Errorf("checkout %s: %w", rec.ID, &payment.GatewayError{Message: message})
	default:
		return nil, fmt.Errorf("checkout %s has no recorded outcome yet: %w", rec.ID, models.ErrBusy)
	}
}

func asGatewayError(err error) *payment.GatewayError {
	var ge *payment.GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	return &payment.GatewayError{Message: "create charge failed", Err: err}
}

func chargeOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrPaymentDeclined):
		return "declined"
	default:
		return "error"
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
