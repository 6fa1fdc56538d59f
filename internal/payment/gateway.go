// Package payment holds the contract the checkout pipeline needs from a
// payment gateway, plus the Stripe, mock and circuit-breaker implementations.
package payment

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
)

// ChargeRequest asks the gateway to move Amount minor units of Currency.
// IdempotencyKey is forwarded so a transport-level resend cannot double charge.
type ChargeRequest struct {
	Amount         int64
	Currency       string
	Source         string
	Description    string
	IdempotencyKey string
}

// Gateway creates and retrieves charges.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*models.Charge, error)
	RetrieveCharge(ctx context.Context, id string) (*models.Charge, error)
}

// DeclineError is a card-level rejection the customer can fix by using
// another payment source.
type DeclineError struct {
	Code        string
	DeclineCode string
	Message     string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("card declined: %s", e.Message)
}

func (e *DeclineError) Unwrap() error { return models.ErrPaymentDeclined }

// GatewayError is any failure other than a decline. Timeout marks outcomes
// where the charge may or may not exist on the gateway side.
type GatewayError struct {
	StatusCode int
	Message    string
	Timeout    bool
	Err        error
}

func (e *GatewayError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return "payment gateway: " + msg
}

func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{models.ErrGateway}
	}
	return []error{models.ErrGateway, e.Err}
}
