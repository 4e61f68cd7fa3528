package taskgen

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Prometheus counters backing the task funnel, one
// counter vector labeled by analyzer and lifecycle stage, mirroring
// progress.metrics's per-session labeling approach.
type metrics struct {
	stage *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		stage: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "taskgen",
			Name:      "cards_total",
			Help:      "Total task cards per analyzer and funnel stage.",
		}, []string{"analyzer", "stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.stage)
	}
	return m
}

func (m *metrics) inc(analyzer, stage string) {
	m.stage.WithLabelValues(analyzer, stage).Inc()
}
