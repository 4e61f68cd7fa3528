package eventlog

import "time"

// Actor identifies who produced a Record.
type Actor string

const (
	ActorAutonomous Actor = "autonomous"
	ActorUser       Actor = "user"
	ActorSystem     Actor = "system"
)

// Act names the kind of event a Record carries. The set is closed to the
// acts spec.md §6 requires; components must not invent private act names.
type Act string

const (
	ActIterationBegin               Act = "iteration_begin"
	ActReflection                   Act = "reflection"
	ActPlanningPhase                Act = "planning_phase"
	ActCheckpointCreated            Act = "checkpoint_created"
	ActCheckpointResolved           Act = "checkpoint_resolved"
	ActCheckpointExpired            Act = "checkpoint_expired"
	ActExecutionStep                Act = "execution_step"
	ActExecutionResult              Act = "execution_result"
	ActVerificationCheck            Act = "verification_check"
	ActMetaReflection               Act = "meta_reflection"
	ActPlanningFeedback             Act = "planning_feedback"
	ActConfidenceCalibrationRecord  Act = "confidence_calibration_record"
	ActErrorClassified              Act = "error_classified"
	ActDiagnosticReflection         Act = "diagnostic_reflection"
	ActRecoveryPlan                 Act = "recovery_plan"
	ActRecoveryAttemptResult        Act = "recovery_attempt_result"
	ActEpisodeWritten               Act = "episode_written"
	ActTaskAutoApproved             Act = "task_auto_approved"
	ActTaskBatchAction              Act = "task_batch_action"
	ActPreferenceAnalysis           Act = "preference_analysis"
	ActSessionTerminal              Act = "session_terminal"
)

// Record is one typed, append-only event on the ContextLog.
type Record struct {
	SessionID string         `json:"session_id"`
	Actor     Actor          `json:"actor"`
	Act       Act            `json:"act"`
	Iteration int            `json:"iteration,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	At        time.Time      `json:"at"`
}
