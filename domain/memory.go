package domain

import "time"

// Episode is a persistent, searchable record of one finished session.
type Episode struct {
	ID            string
	TaskText      string
	TaskType      TaskType
	Success       bool
	Iterations    int
	ToolsUsed     []string
	Strategy      string
	Summary       string
	Confidence    float64
	Timestamp     time.Time
	FailureReason string // empty when Success
	ErrorCount    int
	Embedding     []float32
	VocabVersion  int
}

// SessionMemoryRecord is the append-only session-log shape written once,
// at terminal outcome.
type SessionMemoryRecord struct {
	TaskType           TaskType
	Success            bool
	Iterations         int
	ToolsUsed          []string
	FailedTools        []string
	ErrorCategories    []ErrorCategory
	RecoveriesAttempted int
	RecoveriesSucceeded int
	RepetitiveActions  bool
	Timestamp          time.Time
}

// PatternRecord aggregates past recoveries by (ErrorCategory, StrategyName).
type PatternRecord struct {
	Category      ErrorCategory
	StrategyName  string
	SuccessCount  int
	FailureCount  int
	AvgIterations float64
	Examples      []string
}

// RiskTolerance and DecisionSpeed classify an inferred UserProfile.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskExploratory  RiskTolerance = "exploratory"
	RiskAggressive   RiskTolerance = "aggressive"
)

type DecisionSpeed string

const (
	SpeedDeliberate DecisionSpeed = "deliberate"
	SpeedBalanced   DecisionSpeed = "balanced"
	SpeedQuick      DecisionSpeed = "quick"
)

// PreferencePattern is one named, frequency-scored behavioral pattern
// inferred for a user (e.g. "proactive_feedback", "high_alignment").
type PreferencePattern struct {
	Name      string
	Frequency float64
}

// UserProfile is the preference store's per-user inference output.
type UserProfile struct {
	UserID             string
	RiskTolerance      RiskTolerance
	RiskConfidence     float64
	DecisionSpeed      DecisionSpeed
	SpeedConfidence    float64
	Patterns           []PreferencePattern
	TotalDecisions     int
}
