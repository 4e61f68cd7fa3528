package domain

import "time"

// Phase names the scheduler step a heartbeat was emitted from.
type Phase string

const (
	PhaseReflect       Phase = "reflect"
	PhaseMetaReflect   Phase = "meta_reflect"
	PhasePlan          Phase = "plan"
	PhaseConfidence    Phase = "confidence_check"
	PhaseExecute       Phase = "execute"
	PhaseVerify        Phase = "verify"
	PhaseOutcomeBind   Phase = "outcome_bind"
	PhaseDiagnose      Phase = "diagnose_recover"
	PhaseFeedback      Phase = "planning_feedback"
	PhaseStuckCheck    Phase = "stuck_check"
	PhasePersist       Phase = "persist"
)

// Heartbeat is emitted once per scheduler phase transition.
type Heartbeat struct {
	Iteration int
	Phase     Phase
	At        time.Time
}

// StateChangeType distinguishes the kinds of progress-tracker state
// changes the scheduler reports. It is intentionally open (any non-empty
// string is accepted by the tracker) since tool-specific event names are
// numerous; only the ones the scheduler itself emits are named here.
type StateChangeType string

const (
	StateArtifactCreated StateChangeType = "artifact_created"
	StateToolSucceeded   StateChangeType = "tool_succeeded"
	StateStepAdvanced    StateChangeType = "step_advanced"
	StateRecoveryApplied StateChangeType = "recovery_applied"
)

// StateChange is emitted whenever the session makes forward progress.
type StateChange struct {
	Type StateChangeType
	Data map[string]any
	At   time.Time
}

// TrackerStatus is the ProgressTracker's `status()` snapshot.
type TrackerStatus struct {
	Alive            bool
	Iteration        int
	Phase            Phase
	Heartbeats       int
	StateChanges     int
	LastChange       *StateChange
	Stuck            bool
}
