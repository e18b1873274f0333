// Package metrics registers the Prometheus collectors shared across services.
// Component-local metrics (e.g. the discovery conflict counter) live next to
// the component; this package holds the cross-cutting ones main wires in.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-level Prometheus metrics.
type Metrics struct {
	IdentitiesCreated prometheus.Counter
	ProfilesCreated   prometheus.Counter
	PartialCreates    *prometheus.CounterVec
	Resolves          *prometheus.CounterVec
	ResolveDuration   prometheus.Histogram
}

// New creates and registers all application metrics.
func New() *Metrics {
	return &Metrics{
		IdentitiesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "didhub_identities_created_total",
			Help: "Total number of identities committed on the ledger",
		}),
		ProfilesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "didhub_profiles_created_total",
			Help: "Total number of profile creations completed end to end",
		}),
		PartialCreates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "didhub_partial_creates_total",
			Help: "Profile creations that stopped mid-sequence, by failed step",
		}, []string{"step"}),
		Resolves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "didhub_resolves_total",
			Help: "DID resolutions by outcome",
		}, []string{"outcome"}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "didhub_resolve_duration_seconds",
			Help:    "Latency of full DID resolution including content fetch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
