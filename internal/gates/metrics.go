package gates

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
	runs *prometheus.CounterVec
}

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		globalMetrics = &metrics{
			runs: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intent_gate_runs_total",
					Help: "Gate evaluations by gate and status",
				},
				[]string{"gate", "status"},
			),
		}
	})
	return globalMetrics
}
