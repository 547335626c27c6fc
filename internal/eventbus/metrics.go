package eventbus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks bus activity per event type and subscriber.
type Metrics struct {
	published *prometheus.CounterVec
	retried   *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_events_published_total",
			Help: "Events published to the in-process bus",
		}, []string{"event_type"}),
		retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_event_deliveries_retried_total",
			Help: "Subscriber deliveries that failed and were retried",
		}, []string{"event_type", "subscriber"}),
		failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_event_deliveries_failed_total",
			Help: "Subscriber deliveries that exhausted all retry attempts",
		}, []string{"event_type", "subscriber"}),
	}
}
