package audit

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
	entries *prometheus.CounterVec
}

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		globalMetrics = &metrics{
			entries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "intent_audit_entries_total",
					Help: "Audit entries by outcome",
				},
				[]string{"result"}, // written, dropped, failed
			),
		}
	})
	return globalMetrics
}
