package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_started_total",
		Help: "Total number of checkout attempts that reached the charging step",
	})

	CheckoutsSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_settled_total",
		Help: "Total number of checkouts with a created charge",
	})

	CheckoutsDeclinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_declined_total",
		Help: "Total number of checkouts declined by the payment gateway",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutAmountMinorUnits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_amount_minor_units",
		Help:    "Charged totals in minor currency units",
		Buckets: prometheus.ExponentialBuckets(100, 4, 10),
	})

	CartClearAnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_clear_anomalies_total",
		Help: "Settled checkouts whose cart could not be cleared",
	})

	CartReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_reconciliations_total",
		Help: "Outcomes of retried cart clears after settled checkouts",
	}, []string{"outcome"})

	LedgerWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_ledger_write_failures_total",
		Help: "Terminal checkout outcomes that could not be written after retries",
	})

	LedgerRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_ledger_repairs_total",
		Help: "Outcomes of applying deferred terminal ledger writes",
	}, []string{"outcome"})

	CartReplacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_replacements_total",
		Help: "Cart replace requests by result",
	}, []string{"result"})

	UserLockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "user_lock_wait_seconds",
		Help:    "Time spent waiting for the per-user cart lock",
		Buckets: prometheus.DefBuckets,
	})

	PaymentGatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	PaymentBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "payment_breaker_state",
		Help: "Circuit breaker state per gateway (0 closed, 1 half-open, 2 open)",
	}, []string{"gateway"})

	CategoryRecomputedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "category_ancestors_recomputed_total",
		Help: "Categories whose ancestor closure was rewritten",
	})

	ProductsRestampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_ancestors_restamped_total",
		Help: "Products whose denormalized category ancestors were rewritten",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
