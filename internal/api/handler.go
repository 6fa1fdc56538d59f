package api

import (
	"context"
	"net/http"
	"time"

	"storefront-service/internal/service"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// HealthCheck is one dependency checked by /ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	catalog  *service.CatalogIndex
	search   *service.SearchRanker
	carts    *service.CartStore
	checkout *service.CheckoutPipeline
	users    service.UserRepository
	checks   []HealthCheck
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogIndex,
	search *service.SearchRanker,
	carts *service.CartStore,
	checkout *service.CheckoutPipeline,
	users service.UserRepository,
	checks ...HealthCheck,
) *Handler {
	return &Handler{
		catalog:  catalog,
		search:   search,
		carts:    carts,
		checkout: checkout,
		users:    users,
		checks:   checks,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(util.ServiceName))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(identityMiddleware(h.users))
	{
		v1.GET("/category/id/:id", h.getCategory)
		v1.GET("/category/parent/:id", h.listChildren)
		v1.GET("/product/id/:id", h.getProduct)
		v1.GET("/product/category/:id", h.listProductsByCategory)
		v1.GET("/product/search/:query", h.searchProducts)

		me := v1.Group("", requireUser())
		me.GET("/me", h.getMe)
		me.PUT("/me/cart", h.replaceCart)
		me.POST("/checkout", h.createCheckout)
		me.GET("/checkout/:id", h.getCheckout)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports 503 if any is down
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for _, p := range h.checks {
		if err := p.Check(ctx); err != nil {
			ready = false
			checks[p.Name] = err.Error()
			h.logger.Warn("Readiness check failed", zap.String("dependency", p.Name), zap.Error(err))
			continue
		}
		checks[p.Name] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}
