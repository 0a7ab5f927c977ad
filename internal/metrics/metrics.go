// Package metrics holds the Prometheus collectors of the order engine.
// Collectors register with the default registry and are served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restaurant_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_order_transitions_total",
			Help: "Order status transitions by outcome",
		},
		[]string{"from", "to", "result"},
	)

	couponRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_coupon_redemptions_total",
			Help: "Coupon redemption attempts by outcome",
		},
		[]string{"result"},
	)

	tableDriftCorrections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_table_drift_corrections_total",
			Help: "Table occupancy corrections made by reconciliation",
		},
		[]string{"from", "to"},
	)

	billsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restaurant_bills_total",
			Help: "Bill requests by mode (generated or replayed)",
		},
		[]string{"mode"},
	)
)

// RecordTransition counts one attempted order transition. result is
// "success" or the machine-readable error code.
func RecordTransition(from, to, result string) {
	orderTransitions.WithLabelValues(from, to, result).Inc()
}

// RecordRedemption counts one coupon redemption attempt.
func RecordRedemption(result string) {
	couponRedemptions.WithLabelValues(result).Inc()
}

// RecordDriftCorrection counts one table status repaired by reconcile.
func RecordDriftCorrection(from, to string) {
	tableDriftCorrections.WithLabelValues(from, to).Inc()
}

// RecordBill counts a bill request; replayed is true when stored figures
// were returned unchanged.
func RecordBill(replayed bool) {
	mode := "generated"
	if replayed {
		mode = "replayed"
	}
	billsGenerated.WithLabelValues(mode).Inc()
}
