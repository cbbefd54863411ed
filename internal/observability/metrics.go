package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerMovements counts ledger applies by movement type and outcome kind.
	LedgerMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_movements_total",
			Help: "Total number of ledger apply calls",
		},
		[]string{"type", "status"},
	)

	LedgerApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_apply_duration_seconds",
			Help:    "Duration of ledger apply calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	// ServiceCalls counts deposit/order operations by outcome kind ("ok" on success).
	ServiceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_calls_total",
			Help: "Total number of deposit and order service calls",
		},
		[]string{"operation", "status"},
	)
)

// RegisterMetrics registers the collectors on reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{LedgerMovements, LedgerApplyDuration, ServiceCalls} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MetricsHandler serves the default gatherer.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
