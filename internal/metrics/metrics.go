package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_postings_total",
			Help: "Total number of ledger postings by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	postingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_posting_duration_seconds",
			Help:    "Duration of ledger postings",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_reconcile_total",
			Help: "Total number of deposit reconciliations by source and result",
		},
		[]string{"source", "result"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wallet_gateway_request_duration_seconds",
			Help:    "Duration of payment provider calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"operation", "outcome"},
	)

	webhookRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wallet_webhook_rejected_total",
			Help: "Total number of provider notifications rejected for a bad signature",
		},
	)
)

// ObservePosting records the outcome and latency of a ledger operation.
func ObservePosting(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	postingsTotal.WithLabelValues(operation, outcome).Inc()
	postingDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ObserveReconcile(source, result string) {
	reconcileTotal.WithLabelValues(source, result).Inc()
}

func ObserveGateway(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	gatewayDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func WebhookRejected() {
	webhookRejected.Inc()
}
