// Package metrics holds the Prometheus collectors of the ticketing engine.
package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	purchases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_purchases_total",
			Help: "Purchase attempts by outcome (ok, a rejection code, or error)",
		},
		[]string{"outcome"},
	)

	purchaseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketing_purchase_duration_seconds",
			Help:    "Time spent validating and committing a purchase",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	commitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_commit_retries_total",
			Help: "Ledger commits retried after a write conflict",
		},
	)

	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_scans_total",
			Help: "Door scans by result",
		},
		[]string{"result"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_rate_limited_total",
			Help: "Requests refused by the rate limiter",
		},
		[]string{"scope"},
	)
)

// ObservePurchase records one purchase attempt.
func ObservePurchase(outcome string, d time.Duration) {
	purchases.WithLabelValues(outcome).Inc()
	purchaseDuration.Observe(d.Seconds())
}

func CommitRetried() { commitRetries.Inc() }

// ObserveScan records one scan result.
func ObserveScan(result string) { scans.WithLabelValues(result).Inc() }

func RateLimited(scope string) { rateLimited.WithLabelValues(scope).Inc() }

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
