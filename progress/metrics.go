package progress

import "github.com/prometheus/client_golang/prometheus"

// metrics holds the Prometheus instruments backing a Tracker's
// heartbeat/state-change counters, the way hector's own observability
// stack pairs otel spans with prometheus counters for liveness signals.
type metrics struct {
	heartbeats   *prometheus.CounterVec
	stateChanges *prometheus.CounterVec
	phase        *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "progress",
			Name:      "heartbeats_total",
			Help:      "Total heartbeats recorded per session.",
		}, []string{"session_id"}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "progress",
			Name:      "state_changes_total",
			Help:      "Total state changes recorded per session.",
		}, []string{"session_id"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "progress",
			Name:      "phase_ordinal",
			Help:      "Ordinal of the scheduler phase the last heartbeat was emitted from.",
		}, []string{"session_id"}),
	}
	if reg != nil {
		reg.MustRegister(m.heartbeats, m.stateChanges, m.phase)
	}
	return m
}
