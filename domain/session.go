// Package domain holds the plain data types shared by every package in
// agentcore. None of these types carry business logic; the components in
// scheduler, planner, diagnostics, metacog, memory and checkpoint operate on
// them.
package domain

import "time"

// TaskType classifies the kind of work a session was opened for.
type TaskType string

const (
	TaskCodeGeneration TaskType = "code_generation"
	TaskAnalysis       TaskType = "analysis"
	TaskDebugging      TaskType = "debugging"
	TaskRefactoring    TaskType = "refactoring"
	TaskTesting        TaskType = "testing"
	TaskDocumentation  TaskType = "documentation"
	TaskOther          TaskType = "other"
)

// Outcome is a session's terminal (or in-flight) disposition.
type Outcome string

const (
	OutcomeRunning            Outcome = "running"
	OutcomeCompleted          Outcome = "completed"
	OutcomeStopped            Outcome = "stopped"
	OutcomeStuck              Outcome = "stuck"
	OutcomeNeedsClarification Outcome = "needs_clarification"
)

// Session is the unit of execution: one task driven through the iteration
// loop to a terminal outcome. It is owned exclusively by one scheduler and
// mutated only within an iteration boundary.
type Session struct {
	ID          string
	Task        string
	TaskType    TaskType
	MaxIter     int
	Iteration   int
	Progress    float64
	Confidence  float64
	Outcome     Outcome
	StopReason  string

	ActionHistory     []ActionHistoryEntry
	Artifacts         []Artifact
	Failures          []FailureRecord
	RecentReflections []Reflection // bounded to last 5
	PlanningFeedback  []PlanningFeedback // bounded to last 5

	ClarificationQuestions []string

	StuckCount      int
	RecoveryStreak  RecoveryStreak

	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecoveryStreak tracks consecutive recoveries attempted against the same
// error category, used to implement the confidence-decay edge case in
// spec.md §4.1.
type RecoveryStreak struct {
	Category string
	Count    int
}

// Artifact is a file or resource produced by a tool invocation.
type Artifact struct {
	Path string
	Kind string
}

// FailureRecord is a soft-failure retained for diagnostics and summaries.
type FailureRecord struct {
	Iteration int
	Tool      string
	Category  ErrorCategory
	Message   string
	At        time.Time
}

// ActionHistoryEntry records one iteration's proposed action and its
// observed result. Either Error or ResultSummary is set; both may be set
// only when a recovery attempt succeeded after an initial failure.
type ActionHistoryEntry struct {
	Iteration         int
	ReflectionIter    int // iteration number of the Reflection that proposed NextAction
	NextAction        string
	ToolsUsed         []string
	ResultSummary     string
	ArtifactsCreated  []Artifact
	Error             *ToolError
	PredictedProgress float64
	PredictedConf     float64
	ActualSuccess     bool
	Tokens            int
	At                time.Time
}

// SessionStats is an aggregated read-model over a session's action history,
// used by the scheduler when it writes session-terminal memory records. It is not part of
// spec.md's data model; it is a derived view computed on demand.
type SessionStats struct {
	Iterations    int
	Successes     int
	Failures      int
	Recoveries    int
	TotalTokens   int
	ArtifactCount int
}

// Stats computes a SessionStats snapshot from the session's action history.
func (s *Session) Stats() SessionStats {
	var st SessionStats
	st.Iterations = len(s.ActionHistory)
	for _, e := range s.ActionHistory {
		st.TotalTokens += e.Tokens
		st.ArtifactCount += len(e.ArtifactsCreated)
		if e.ActualSuccess {
			st.Successes++
		} else if e.Error != nil {
			st.Failures++
		}
	}
	st.Recoveries = len(s.Failures)
	return st
}
