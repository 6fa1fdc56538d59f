package api

import (
	"net/http"
	"strings"

	"storefront-service/internal/models"
	"storefront-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyKeyHeader makes a retried checkout replay the first outcome.
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutRequest is the body of POST /checkout
type CheckoutRequest struct {
	StripeToken string `json:"stripeToken"`
}

func (h *Handler) createCheckout(c *gin.Context) {
	user := currentUser(c)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if strings.TrimSpace(req.StripeToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stripeToken is required"})
		return
	}

	result, err := h.checkout.Checkout(c.Request.Context(), service.CheckoutRequest{
		UserID:         user.ID,
		Token:          req.StripeToken,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          result.ChargeID,
		"checkout_id": result.CheckoutID,
	})
}

func (h *Handler) getCheckout(c *gin.Context) {
	user := currentUser(c)

	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, models.ErrNotFound)
		return
	}

	rec, err := h.checkout.Status(c.Request.Context(), user.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout": rec})
}
