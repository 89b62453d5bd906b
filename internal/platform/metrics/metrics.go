package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RequestsCreated     prometheus.Counter
	UnitsRegistered     prometheus.Counter
	UnitsReserved       prometheus.Counter
	UnitsExpired        prometheus.Counter
	FulfillmentOutcomes *prometheus.CounterVec
	SweepDurationMs     prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_created_total",
			Help: "Total number of blood requests created",
		}),
		UnitsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_units_registered_total",
			Help: "Total number of blood units registered from completed donations",
		}),
		UnitsReserved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_units_reserved_total",
			Help: "Total number of blood units reserved against requests",
		}),
		UnitsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_units_expired_total",
			Help: "Total number of blood units retired by the expiry sweep",
		}),
		FulfillmentOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_fulfillment_outcomes_total",
			Help: "Auto-fulfillment outcomes by result (full, partial, none)",
		}, []string{"outcome"}),
		SweepDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bloodlink_expiry_sweep_duration_ms",
			Help:    "Duration of expiry sweep runs in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
		}),
	}
}
