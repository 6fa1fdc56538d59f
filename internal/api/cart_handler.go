package api

import (
	"net/http"

	"storefront-service/internal/models"

	"github.com/gin-gonic/gin"
)

// ReplaceCartRequest is the body of PUT /me/cart
type ReplaceCartRequest struct {
	Data *struct {
		Cart *models.Cart `json:"cart"`
	} `json:"data"`
}

func (h *Handler) getMe(c *gin.Context) {
	user := currentUser(c)

	lines, err := h.carts.Populate(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": models.PopulatedUser{
		ID:      user.ID,
		Profile: user.Profile,
		Cart:    lines,
	}})
}

func (h *Handler) replaceCart(c *gin.Context) {
	user := currentUser(c)

	var req ReplaceCartRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Data == nil || req.Data.Cart == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No cart specified"})
		return
	}

	cart := *req.Data.Cart
	if err := h.carts.Replace(c.Request.Context(), user.ID, cart); err != nil {
		respondError(c, err)
		return
	}

	updated := *user
	updated.Data.Cart = cart
	c.JSON(http.StatusOK, gin.H{"user": updated})
}
