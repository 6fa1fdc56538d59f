package payment

import (
	"context"
	"testing"
	"time"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_Tokens(t *testing.T) {
	gw := NewMockGateway()
	ctx := context.Background()

	charge, err := gw.CreateCharge(ctx, ChargeRequest{Amount: 200000, Currency: "USD", Source: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusCreated, charge.Status)

	got, err := gw.RetrieveCharge(ctx, charge.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200000), got.Amount)

	_, err = gw.CreateCharge(ctx, ChargeRequest{Amount: 100, Currency: "USD", Source: TokenDeclined})
	assert.ErrorIs(t, err, models.ErrPaymentDeclined)

	_, err = gw.CreateCharge(ctx, ChargeRequest{Amount: 100, Currency: "USD", Source: TokenGatewayError})
	assert.ErrorIs(t, err, models.ErrGateway)

	assert.Equal(t, 3, gw.Calls())
}

func TestMockGateway_TimeoutHonoursContext(t *testing.T) {
	gw := NewMockGateway()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := gw.CreateCharge(ctx, ChargeRequest{Amount: 100, Currency: "USD", Source: TokenTimeout})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, gwErr.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
