package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks block version chain activity.
type Metrics struct {
	VersionsOpened    *prometheus.CounterVec
	VersionsFinalized *prometheus.CounterVec
	EnsureConflicts   prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VersionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_block_versions_opened_total",
			Help: "Block versions opened, by kind",
		}, []string{"kind"}),
		VersionsFinalized: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_block_versions_finalized_total",
			Help: "Block versions finalized, by kind and final status",
		}, []string{"kind", "status"}),
		EnsureConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_block_ensure_conflicts_total",
			Help: "EnsureOpenVersion retries caused by concurrent writers",
		}),
	}
}
