package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RelationToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relation_toggles_total",
			Help: "Relation toggle calls by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	RelationToggleAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relation_toggle_attempts",
			Help:    "Store attempts needed per toggle call",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
		[]string{"kind"},
	)

	InvalidationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_failures_total",
			Help: "Events that could not be delivered to every notifier",
		},
		[]string{"type"},
	)
)

// Register adds every collector to the registerer.
func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		HttpRequestsTotal,
		HttpRequestDuration,
		RelationToggles,
		RelationToggleAttempts,
		InvalidationFailures,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
