package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"storefront-service/internal/models"

	"github.com/google/uuid"
)

// Source tokens with fixed behaviour on the MockGateway. Any other non-empty
// token succeeds.
const (
	TokenDeclined     = "tok_chargeDeclined"
	TokenGatewayError = "tok_gatewayError"
	TokenTimeout      = "tok_timeout"
)

// MockGateway is an in-memory gateway for local runs and tests. Charges are
// kept so RetrieveCharge works, and a declined attempt is recorded with
// status DECLINED the way a real gateway keeps its own decline log.
type MockGateway struct {
	mu      sync.Mutex
	charges map[string]*models.Charge
	calls   int
}

// NewMockGateway creates an empty MockGateway
func NewMockGateway() *MockGateway {
	return &MockGateway{charges: make(map[string]*models.Charge)}
}

// CreateCharge answers according to the magic token in req.Source.
func (g *MockGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*models.Charge, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if req.Amount <= 0 {
		return nil, &GatewayError{StatusCode: 400, Message: "amount must be positive"}
	}

	id := fmt.Sprintf("ch_%s", strings.ReplaceAll(uuid.New().String(), "-", "")[:24])

	switch {
	case req.Source == "":
		return nil, &GatewayError{StatusCode: 400, Message: "missing payment source"}
	case strings.Contains(req.Source, TokenDeclined):
		g.store(&models.Charge{ID: id, Amount: req.Amount, Currency: req.Currency, Status: models.ChargeStatusDeclined})
		return nil, &DeclineError{Code: "card_declined", DeclineCode: "generic_decline", Message: "Your card was declined."}
	case req.Source == TokenGatewayError:
		return nil, &GatewayError{StatusCode: 500, Message: "upstream unavailable"}
	case req.Source == TokenTimeout:
		<-ctx.Done()
		return nil, &GatewayError{Message: "create charge timed out", Timeout: true, Err: ctx.Err()}
	}

	charge := &models.Charge{ID: id, Amount: req.Amount, Currency: req.Currency, Status: models.ChargeStatusCreated}
	g.store(charge)
	out := *charge
	return &out, nil
}

// RetrieveCharge returns a charge this gateway created.
func (g *MockGateway) RetrieveCharge(_ context.Context, id string) (*models.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	charge, ok := g.charges[id]
	if !ok {
		return nil, fmt.Errorf("charge %s: %w", id, models.ErrNotFound)
	}
	out := *charge
	return &out, nil
}

// Calls reports how many CreateCharge calls were made.
func (g *MockGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *MockGateway) store(c *models.Charge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[c.ID] = c
}
