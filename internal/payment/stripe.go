package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-service/internal/models"

	"github.com/go-resty/resty/v2"
)

// StripeGateway talks to the Stripe charges API.
type StripeGateway struct {
	client *resty.Client
}

type stripeCharge struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type stripeErrorEnvelope struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

// NewStripeGateway creates a client against baseURL. The client-wide timeout
// backs up whatever deadline the caller's context carries.
func NewStripeGateway(baseURL, secretKey string, timeout time.Duration) *StripeGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(secretKey, "").
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &StripeGateway{client: client}
}

// CreateCharge issues exactly one POST /v1/charges. It never retries.
func (g *StripeGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*models.Charge, error) {
	var charge stripeCharge
	var apiErr stripeErrorEnvelope

	r := g.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"amount":      strconv.FormatInt(req.Amount, 10),
			"currency":    strings.ToLower(req.Currency),
			"source":      req.Source,
			"description": req.Description,
		}).
		SetResult(&charge).
		SetError(&apiErr)
	if req.IdempotencyKey != "" {
		r.SetHeader("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := r.Post("/v1/charges")
	if err != nil {
		return nil, &GatewayError{Message: "create charge request failed", Timeout: isTimeout(err), Err: err}
	}

	if resp.IsError() {
		if apiErr.Error.Type == "card_error" {
			return nil, &DeclineError{
				Code:        apiErr.Error.Code,
				DeclineCode: apiErr.Error.DeclineCode,
				Message:     apiErr.Error.Message,
			}
		}
		return nil, &GatewayError{StatusCode: resp.StatusCode(), Message: errorMessage(apiErr, resp)}
	}

	out := toCharge(charge)
	switch out.Status {
	case models.ChargeStatusCreated:
		return out, nil
	case models.ChargeStatusDeclined:
		return nil, &DeclineError{Message: "charge failed"}
	default:
		return nil, &GatewayError{StatusCode: resp.StatusCode(), Message: "unexpected charge status " + charge.Status}
	}
}

// RetrieveCharge fetches an existing charge.
func (g *StripeGateway) RetrieveCharge(ctx context.Context, id string) (*models.Charge, error) {
	var charge stripeCharge
	var apiErr stripeErrorEnvelope

	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&charge).
		SetError(&apiErr).
		Get("/v1/charges/{id}")
	if err != nil {
		return nil, &GatewayError{Message: "retrieve charge request failed", Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("charge %s: %w", id, models.ErrNotFound)
	}
	if resp.IsError() {
		return nil, &GatewayError{StatusCode: resp.StatusCode(), Message: errorMessage(apiErr, resp)}
	}

	return toCharge(charge), nil
}

func toCharge(c stripeCharge) *models.Charge {
	status := models.ChargeStatusCreated
	switch c.Status {
	case "failed":
		status = models.ChargeStatusDeclined
	case "succeeded", "pending", "":
	default:
		status = models.ChargeStatusError
	}
	return &models.Charge{
		ID:       c.ID,
		Amount:   c.Amount,
		Currency: strings.ToUpper(c.Currency),
		Status:   status,
	}
}

func errorMessage(apiErr stripeErrorEnvelope, resp *resty.Response) string {
	if apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return resp.Status()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
