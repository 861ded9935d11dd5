package automation

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *metrics
	metricsOnce   sync.Once
)

type metrics struct {
	dispatches *prometheus.CounterVec
	jobs       *prometheus.CounterVec
}

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		globalMetrics = &metrics{
			dispatches: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intent_dispatches_total",
					Help: "Automation dispatches by step and result",
				},
				[]string{"step", "result"}, // published, failed, skipped
			),
			jobs: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intent_jobs_handled_total",
					Help: "Jobs consumed by the worker by step and result",
				},
				[]string{"step", "result"}, // succeeded, failed, rejected
			),
		}
	})
	return globalMetrics
}
