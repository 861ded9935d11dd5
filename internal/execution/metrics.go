package execution

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
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
}

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		globalMetrics = &metrics{
			executions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intent_step_executions_total",
					Help: "Step execution outcomes by step and result",
				},
				[]string{"step", "result"},
			),
			duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "intent_step_duration_seconds",
					Help:    "Step runner duration",
					Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
				},
				[]string{"step"},
			),
			tokens: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intent_step_tokens_total",
					Help: "Tokens consumed by step",
				},
				[]string{"step"},
			),
		}
	})
	return globalMetrics
}
