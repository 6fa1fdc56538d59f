package payment

import (
	"context"
	"errors"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerGateway stops calling the gateway after repeated infrastructure
// failures. Declines count as successes: the gateway answered.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*models.Charge]
}

// NewBreakerGateway wraps next. The breaker opens after failures consecutive
// gateway errors and checks again after openFor.
func NewBreakerGateway(name string, next Gateway, failures uint32, openFor time.Duration) *BreakerGateway {
	logger := util.GetLogger()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, models.ErrGateway)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			util.PaymentBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("Payment breaker state changed",
				zap.String("gateway", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	util.PaymentBreakerState.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	return &BreakerGateway{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[*models.Charge](settings),
	}
}

// CreateCharge forwards to the wrapped gateway unless the breaker is open.
func (b *BreakerGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*models.Charge, error) {
	charge, err := b.cb.Execute(func() (*models.Charge, error) {
		return b.next.CreateCharge(ctx, req)
	})
	return charge, b.translate(err)
}

// RetrieveCharge forwards to the wrapped gateway unless the breaker is open.
func (b *BreakerGateway) RetrieveCharge(ctx context.Context, id string) (*models.Charge, error) {
	charge, err := b.cb.Execute(func() (*models.Charge, error) {
		return b.next.RetrieveCharge(ctx, id)
	})
	return charge, b.translate(err)
}

func (b *BreakerGateway) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &GatewayError{Message: "payment gateway unavailable", Err: err}
	}
	return err
}

// State exposes the breaker state.
func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
