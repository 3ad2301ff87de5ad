package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutInitiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_initiated_total",
		Help: "Checkout initiations by outcome.",
	}, []string{"outcome"})

	CheckoutFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_finalized_total",
		Help: "Checkout finalizations by outcome.",
	}, []string{"outcome"})

	PayPalRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paypal_request_duration_seconds",
		Help:    "Latency of outbound PayPal API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})
)
