package integration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox relay activity.
type Metrics struct {
	RecordsAppended  prometheus.Counter
	RecordsPublished prometheus.Counter
	PublishFailures  prometheus.Counter
	DedupeSkips      prometheus.Counter
	Backlog          prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_outbox_records_appended_total",
			Help: "Outbox records appended from finalized block versions.",
		}),
		RecordsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_outbox_records_published_total",
			Help: "Outbox records delivered to the downstream sink.",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_outbox_publish_failures_total",
			Help: "Sink publish attempts that returned an error.",
		}),
		DedupeSkips: factory.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_outbox_dedupe_skips_total",
			Help: "Records skipped because another relay instance claimed them.",
		}),
		Backlog: factory.NewGauge(prometheus.GaugeOpts{
			Name: "caseflow_outbox_backlog",
			Help: "Unpublished outbox records observed on the last poll.",
		}),
	}
}
