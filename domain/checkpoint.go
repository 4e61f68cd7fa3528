package domain

import "time"

// DecisionType is the kind of decision a Checkpoint is suspending.
type DecisionType string

const (
	DecisionPlan      DecisionType = "plan"
	DecisionStrategy  DecisionType = "strategy"
	DecisionParameter DecisionType = "parameter"
	DecisionExecution DecisionType = "execution"
)

// DefaultThreshold returns the type-specific confidence threshold from
// spec.md §4.1/§4.7 below which a checkpoint is triggered.
func (d DecisionType) DefaultThreshold() float64 {
	switch d {
	case DecisionPlan:
		return 0.70
	case DecisionStrategy:
		return 0.70
	case DecisionParameter:
		return 0.75
	case DecisionExecution:
		return 0.90
	default:
		return 0.70
	}
}

// CheckpointOption is one candidate the user may select at a checkpoint.
type CheckpointOption struct {
	ID        string
	Label     string
	RiskLevel Level
	Steps     []PlanStep
}

// CheckpointResolution records how a pending checkpoint was resolved.
type CheckpointResolution struct {
	SelectedOptionID string
	Modified         bool
	UserID           string
	ResolvedAt       time.Time
}

// Checkpoint is a suspended decision awaiting human resolution.
type Checkpoint struct {
	ID                  string
	SessionID           string
	Iteration           int
	DecisionType        DecisionType
	PredictedConfidence float64
	Options             []CheckpointOption
	Resolution          *CheckpointResolution
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// IsResolved reports whether the checkpoint has already transitioned to
// resolved. Per spec.md §3 invariants, once resolved a checkpoint is never
// reopened.
func (c *Checkpoint) IsResolved() bool {
	return c.Resolution != nil
}

// IsExpired reports whether the checkpoint has passed its expiry without
// resolution.
func (c *Checkpoint) IsExpired(now time.Time) bool {
	return !c.IsResolved() && now.After(c.ExpiresAt)
}

// CalibrationRecord ties a predicted confidence to whether the user
// ultimately accepted the corresponding recommendation.
type CalibrationRecord struct {
	DecisionType        DecisionType
	PredictedConfidence float64
	UserAccepted        bool
	At                  time.Time
}

// FeedbackCategory classifies a Feedback entry.
type FeedbackCategory string

const (
	FeedbackDecision   FeedbackCategory = "decision"
	FeedbackApproval   FeedbackCategory = "approval"
	FeedbackCheckpoint FeedbackCategory = "checkpoint"
	FeedbackSystem     FeedbackCategory = "system"
	FeedbackGeneral    FeedbackCategory = "general"
)

// FeedbackContext correlates a Feedback entry back to the session/decision
// that prompted it.
type FeedbackContext struct {
	SessionID  string
	Iteration  int
	DecisionID string
}

// Feedback is one user-submitted note, optionally rated.
type Feedback struct {
	ID        string
	Category  FeedbackCategory
	Rating    *int // 1-5
	Reasoning string
	Suggestion string
	Tags      []string
	Context   FeedbackContext
	At        time.Time
}
