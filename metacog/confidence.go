// Package metacog implements the Self-Evaluator and confidence-calibration
// machinery from spec.md §4.7: five-factor weighted confidence scoring per
// decision type, Expected Calibration Error, and threshold auto-adjustment.
package metacog

import "github.com/forgekeeper/agentcore/domain"

// Factors are the five inputs the confidence score weights, each in [0,1].
type Factors struct {
	OptionClarity        float64
	HistoricalSuccess    float64
	RiskAlignment        float64
	EffortCertainty      float64
	ContextCompleteness  float64
}

// factorWeights is the per-decision-type weighting table from spec.md §4.7.
type factorWeights struct {
	optionClarity, historicalSuccess, riskAlignment, effortCertainty, contextCompleteness float64
}

var weightsByType = map[domain.DecisionType]factorWeights{
	domain.DecisionPlan:      {0.25, 0.15, 0.20, 0.25, 0.15},
	domain.DecisionStrategy:  {0.30, 0.25, 0.20, 0.15, 0.10},
	domain.DecisionParameter: {0.20, 0.30, 0.15, 0.10, 0.25},
	domain.DecisionExecution: {0.15, 0.25, 0.35, 0.15, 0.10},
}

// Score computes the weighted confidence score for decisionType from f.
func Score(decisionType domain.DecisionType, f Factors) float64 {
	w, ok := weightsByType[decisionType]
	if !ok {
		w = weightsByType[domain.DecisionPlan]
	}
	return w.optionClarity*f.OptionClarity +
		w.historicalSuccess*f.HistoricalSuccess +
		w.riskAlignment*f.RiskAlignment +
		w.effortCertainty*f.EffortCertainty +
		w.contextCompleteness*f.ContextCompleteness
}

// Thresholds overrides decisionType.DefaultThreshold() per decision type.
// A zero field means "use the default" rather than "trigger on everything",
// so config layers that only set some keys still behave sensibly for the
// rest (spec.md §6's CheckpointThresholds).
type Thresholds struct {
	Plan      float64
	Strategy  float64
	Parameter float64
	Execution float64
}

// For returns the configured threshold for decisionType, falling back to
// decisionType.DefaultThreshold() when unset.
func (t Thresholds) For(decisionType domain.DecisionType) float64 {
	var v float64
	switch decisionType {
	case domain.DecisionPlan:
		v = t.Plan
	case domain.DecisionStrategy:
		v = t.Strategy
	case domain.DecisionParameter:
		v = t.Parameter
	case domain.DecisionExecution:
		v = t.Execution
	}
	if v <= 0 {
		return decisionType.DefaultThreshold()
	}
	return v
}

// NeedsCheckpoint reports whether score falls below decisionType's
// checkpoint threshold.
func NeedsCheckpoint(decisionType domain.DecisionType, score float64, thresholds Thresholds) bool {
	return score < thresholds.For(decisionType)
}
