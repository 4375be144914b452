// Package metrics exposes the broker's ambient Prometheus instrumentation:
// submission counts by outcome, subscription fan-out size, and sweeper
// activity. No file in the example pack exercises
// github.com/prometheus/client_golang directly (it appears only in the
// teacher's go.mod); this package gives that otherwise-unbound dependency a
// home, following the library's own promauto idiom.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the counters/histograms the broker updates as it runs.
type Registry struct {
	Submissions      *prometheus.CounterVec
	BroadcastedTo    prometheus.Histogram
	OffersStored     *prometheus.CounterVec
	OffersExpired    prometheus.Counter
	SweepDuration    prometheus.Histogram
	ValidationTimeMS prometheus.Histogram
}

// New registers and returns the broker's metric set against the default
// Prometheus registry.
func New() *Registry {
	return &Registry{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taralli",
			Subsystem: "broker",
			Name:      "submissions_total",
			Help:      "Count of broker submissions by kind and outcome.",
		}, []string{"kind", "outcome"}),
		BroadcastedTo: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taralli",
			Subsystem: "broker",
			Name:      "broadcasted_to",
			Help:      "Number of subscribers a request was fanned out to.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),
		OffersStored: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taralli",
			Subsystem: "broker",
			Name:      "offers_stored_total",
			Help:      "Count of offers persisted, by system id.",
		}, []string{"system_id"}),
		OffersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "taralli",
			Subsystem: "broker",
			Name:      "offers_expired_total",
			Help:      "Count of offer rows marked expired by the sweeper.",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taralli",
			Subsystem: "broker",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of each expiration sweep pass.",
		}),
		ValidationTimeMS: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taralli",
			Subsystem: "broker",
			Name:      "validation_duration_ms",
			Help:      "Wall time of intent validation in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
