package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LeadsCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leads_captured_total",
		Help: "Total number of leads captured at the lead step",
	})

	CheckoutsPricedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_priced_total",
		Help: "Total number of checkouts priced at the address step",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkout steps",
	}, []string{"step", "reason"})

	CouponsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coupons_redeemed_total",
		Help: "Total number of coupon redemptions",
	})

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of completed orders",
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentDeclinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_declines_total",
		Help: "Total number of gateway declines",
	}, []string{"code"})

	PaymentRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_retries_total",
		Help: "Total number of payment retry attempts",
	})

	GatewayRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway calls",
		Buckets: prometheus.DefBuckets,
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
