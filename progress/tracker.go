// Package progress implements the Progress & Stuck Detector from spec.md
// §4.4: a heartbeat/state-change model with an Alive/Making-progress/Stuck
// derived status.
package progress

import (
	"sync"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultStuckThreshold         = 5
	defaultMaxHeartbeatsInMemory  = 100
	defaultMaxStateChangesInMemory = 50
)

// Tracker records heartbeats and state-changes for one session and
// answers alive?/stuck? queries. It is written only by the scheduler and
// may be read concurrently; Status() returns a consistent snapshot.
type Tracker struct {
	mu sync.RWMutex

	sessionID      string
	stuckThreshold int
	maxHeartbeats  int
	maxStateChanges int

	heartbeats   []domain.Heartbeat
	stateChanges []domain.StateChange

	heartbeatCount   int
	stateChangeCount int

	metrics *metrics
}

// Option configures a Tracker at construction.
type Option func(*Tracker)

// WithStuckThreshold overrides the default stuck threshold (spec.md §4.4
// default N = 5).
func WithStuckThreshold(n int) Option {
	return func(t *Tracker) { t.stuckThreshold = n }
}

// NewTracker constructs a Tracker for one session, registering its
// instrumentation with reg (pass nil to skip Prometheus registration, as
// tests do to avoid collector-name collisions across cases).
func NewTracker(sessionID string, reg prometheus.Registerer, opts ...Option) *Tracker {
	t := &Tracker{
		sessionID:       sessionID,
		stuckThreshold:  defaultStuckThreshold,
		maxHeartbeats:   defaultMaxHeartbeatsInMemory,
		maxStateChanges: defaultMaxStateChangesInMemory,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.metrics = newMetrics(reg)
	return t
}

// Heartbeat records a heartbeat at the given iteration/phase.
func (t *Tracker) Heartbeat(iteration int, phase domain.Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hb := domain.Heartbeat{Iteration: iteration, Phase: phase, At: time.Now()}
	t.heartbeats = append(t.heartbeats, hb)
	t.heartbeatCount++
	if len(t.heartbeats) > t.maxHeartbeats {
		t.heartbeats = t.heartbeats[len(t.heartbeats)-t.maxHeartbeats:]
	}
	t.metrics.heartbeats.WithLabelValues(t.sessionID).Inc()
	t.metrics.phase.WithLabelValues(t.sessionID).Set(phaseOrdinal(phase))
}

// StateChange records that the session made forward progress.
func (t *Tracker) StateChange(typ domain.StateChangeType, data map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sc := domain.StateChange{Type: typ, Data: data, At: time.Now()}
	t.stateChanges = append(t.stateChanges, sc)
	t.stateChangeCount++
	if len(t.stateChanges) > t.maxStateChanges {
		t.stateChanges = t.stateChanges[len(t.stateChanges)-t.maxStateChanges:]
	}
	t.metrics.stateChanges.WithLabelValues(t.sessionID).Inc()
}

// Status returns a consistent snapshot of the tracker's current state.
func (t *Tracker) Status() domain.TrackerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := domain.TrackerStatus{
		Alive:        len(t.heartbeats) > 0,
		Heartbeats:   t.heartbeatCount,
		StateChanges: t.stateChangeCount,
		Stuck:        t.isStuckLocked(),
	}
	if len(t.heartbeats) > 0 {
		last := t.heartbeats[len(t.heartbeats)-1]
		status.Iteration = last.Iteration
		status.Phase = last.Phase
	}
	if len(t.stateChanges) > 0 {
		last := t.stateChanges[len(t.stateChanges)-1]
		status.LastChange = &last
	}
	return status
}

// IsStuck reports whether the last stuckThreshold heartbeats landed with no
// intervening StateChange.
func (t *Tracker) IsStuck() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isStuckLocked()
}

func (t *Tracker) isStuckLocked() bool {
	if len(t.heartbeats) < t.stuckThreshold {
		return false
	}
	window := t.heartbeats[len(t.heartbeats)-t.stuckThreshold:]
	if len(t.stateChanges) == 0 {
		return true
	}
	lastChange := t.stateChanges[len(t.stateChanges)-1].At
	return lastChange.Before(window[0].At)
}

// Reset clears all recorded heartbeats and state changes but keeps
// cumulative counters, per spec.md §4.4's memory-bound semantics.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.heartbeats = nil
	t.stateChanges = nil
}

func phaseOrdinal(p domain.Phase) float64 {
	order := []domain.Phase{
		domain.PhaseReflect, domain.PhaseMetaReflect, domain.PhasePlan,
		domain.PhaseConfidence, domain.PhaseExecute, domain.PhaseVerify,
		domain.PhaseOutcomeBind, domain.PhaseDiagnose, domain.PhaseFeedback,
		domain.PhaseStuckCheck, domain.PhasePersist,
	}
	for i, ph := range order {
		if ph == p {
			return float64(i)
		}
	}
	return -1
}
