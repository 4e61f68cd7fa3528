package domain

// Assessment is the reflection's judgement of the session's state.
type Assessment string

const (
	AssessContinue           Assessment = "continue"
	AssessStuck              Assessment = "stuck"
	AssessComplete           Assessment = "complete"
	AssessNeedsClarification Assessment = "needs_clarification"
)

// Reflection is the LLM's assessment of current state and a proposal for
// the next action.
type Reflection struct {
	Iteration    int
	Assessment   Assessment
	Progress     float64
	Confidence   float64
	Reasoning    string
	NextAction   string
	Questions    []string // populated only when Assessment == needs_clarification
	Degraded     bool     // true when this reflection is a reused/cached one after LLM failure
}

// MetaReflection is a scored critique of a previous reflection against the
// observed outcome, computed one iteration later.
type MetaReflection struct {
	Iteration         int
	ProgressError     float64
	ConfidenceError   float64
	AssessmentCorrect bool
	OverallAccuracy   float64
}

// Score computes the weighted overall accuracy per spec.md §4.1 step 3:
// 0.4*progress + 0.3*confidence + 0.3*assessment.
func (m *MetaReflection) Score() float64 {
	assessmentTerm := 0.0
	if m.AssessmentCorrect {
		assessmentTerm = 1.0
	}
	progressTerm := 1.0 - m.ProgressError
	confidenceTerm := 1.0 - m.ConfidenceError
	m.OverallAccuracy = 0.4*progressTerm + 0.3*confidenceTerm + 0.3*assessmentTerm
	return m.OverallAccuracy
}

// ConfidenceErrorFor maps a reflection/outcome pair to the discrete
// confidence-error values named in spec.md §4.1: overconfident on failure
// ~0.8, underconfident on success ~0.3, well-calibrated ~0.1.
func ConfidenceErrorFor(predictedConfidence float64, succeeded bool) float64 {
	const highConfidence = 0.7
	const lowConfidence = 0.4
	switch {
	case !succeeded && predictedConfidence >= highConfidence:
		return 0.8
	case succeeded && predictedConfidence <= lowConfidence:
		return 0.3
	default:
		return 0.1
	}
}

// PlanningFeedback scores how well a chosen plan matched its observed
// execution, per spec.md §4.1 step 10.
type PlanningFeedback struct {
	Iteration           int
	PlanSucceeded       bool
	ToolsMatchedPlan    bool
	PredictedConfidence float64
	ConfidenceScore     float64
}

// CalibrationScoreFor implements the confidence_calibration mapping from
// spec.md §4.1 step 10: high+success -> 1.0, high+fail -> 0.2,
// low+success -> 0.5, low+fail -> 0.8.
func CalibrationScoreFor(predictedConfidence float64, succeeded bool) float64 {
	const highConfidence = 0.7
	high := predictedConfidence >= highConfidence
	switch {
	case high && succeeded:
		return 1.0
	case high && !succeeded:
		return 0.2
	case !high && succeeded:
		return 0.5
	default:
		return 0.8
	}
}
