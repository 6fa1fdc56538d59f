package api

import (
	"errors"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UserIDHeader is set by the upstream auth gateway.
	UserIDHeader = "X-User-ID"

	userContextKey = "user"
)

// identityMiddleware attaches the user named by UserIDHeader. A missing
// header or an unknown user leaves the request anonymous.
func identityMiddleware(users service.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			c.Next()
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			util.GetLogger().Debug("Unknown user, continuing anonymously", zap.String("user_id", userID))
		case err != nil:
			respondError(c, err)
			c.Abort()
			return
		default:
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

// requireUser rejects anonymous requests with 401.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			respondError(c, models.ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}
