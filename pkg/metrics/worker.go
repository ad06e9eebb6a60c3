package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics counts SMS dispatch outcomes by event type.
type WorkerMetrics struct {
	Sent    *prometheus.CounterVec
	Failed  *prometheus.CounterVec
	Retried *prometheus.CounterVec
}

// NewWorkerMetrics registers the dispatch counters on the given registry.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		Sent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "savdo_sms_sent_total",
			Help: "SMS messages acknowledged by the gateway.",
		}, []string{"event_type"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "savdo_sms_failed_total",
			Help: "SMS dispatch attempts that exhausted retries.",
		}, []string{"event_type"}),
		Retried: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "savdo_sms_retried_total",
			Help: "SMS dispatch attempts retried after a transient error.",
		}, []string{"event_type"}),
	}
}
