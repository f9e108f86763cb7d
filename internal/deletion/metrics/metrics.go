package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters for the deletion pipeline.
type Metrics struct {
	DeletionsCompleted prometheus.Counter
	DeletionsFailed    prometheus.Counter
	RetriesAttempted   prometheus.Counter
	PermanentFailures  prometheus.Counter
	IntentsPurged      prometheus.Counter
}

// New creates and registers the pipeline metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DeletionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lethe_deletions_completed_total",
			Help: "Deletion intents that reached the completed state.",
		}),
		DeletionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lethe_deletion_failures_total",
			Help: "Failed identity-store deletion attempts.",
		}),
		RetriesAttempted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lethe_deletion_retries_total",
			Help: "Deletion attempts made by the retry sweep.",
		}),
		PermanentFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lethe_deletion_permanent_failures_total",
			Help: "Intents escalated to permanent_error.",
		}),
		IntentsPurged: factory.NewCounter(prometheus.CounterOpts{
			Name: "lethe_intents_purged_total",
			Help: "Intent records removed by the retention sweep.",
		}),
	}
}
