package metacog

import (
	"testing"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/stretchr/testify/assert"
)

func TestScoreWeightsAreDecisionTypeSpecific(t *testing.T) {
	f := Factors{OptionClarity: 1, HistoricalSuccess: 0, RiskAlignment: 0, EffortCertainty: 0, ContextCompleteness: 0}
	planScore := Score(domain.DecisionPlan, f)
	strategyScore := Score(domain.DecisionStrategy, f)
	assert.InDelta(t, 0.25, planScore, 1e-9)
	assert.InDelta(t, 0.30, strategyScore, 1e-9)
}

func TestNeedsCheckpointThresholds(t *testing.T) {
	var none Thresholds
	assert.True(t, NeedsCheckpoint(domain.DecisionExecution, 0.82, none))
	assert.False(t, NeedsCheckpoint(domain.DecisionExecution, 0.95, none))
	assert.False(t, NeedsCheckpoint(domain.DecisionPlan, 0.70, none))
	assert.True(t, NeedsCheckpoint(domain.DecisionPlan, 0.69999, none))
}

func TestNeedsCheckpointHonorsConfiguredThresholdOverDefault(t *testing.T) {
	custom := Thresholds{Plan: 0.95}
	// 0.80 clears the 0.70 default but not a configured 0.95 threshold.
	assert.False(t, NeedsCheckpoint(domain.DecisionPlan, 0.80, Thresholds{}))
	assert.True(t, NeedsCheckpoint(domain.DecisionPlan, 0.80, custom))
}

func TestExpectedCalibrationErrorPerfectCalibration(t *testing.T) {
	records := []domain.CalibrationRecord{
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: false},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
		{PredictedConfidence: 0.9, UserAccepted: true},
	}
	// 9/10 accepted at predicted 0.9: |0.9 - 0.9| == 0
	assert.InDelta(t, 0.0, ExpectedCalibrationError(records), 1e-9)
}

func TestExpectedCalibrationErrorEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ExpectedCalibrationError(nil))
}

func TestAdjustThresholdMovesWithinBands(t *testing.T) {
	assert.InDelta(t, 0.75, AdjustThreshold(0.70, 0.95), 1e-9)
	assert.InDelta(t, 0.65, AdjustThreshold(0.70, 0.50), 1e-9)
	assert.InDelta(t, 0.70, AdjustThreshold(0.70, 0.80), 1e-9)
}

func TestAdjustThresholdClampsToUnitInterval(t *testing.T) {
	assert.Equal(t, 1.0, AdjustThreshold(0.98, 0.99))
	assert.Equal(t, 0.0, AdjustThreshold(0.02, 0.10))
}

func TestAcceptanceRateFiltersByDecisionType(t *testing.T) {
	records := []domain.CalibrationRecord{
		{DecisionType: domain.DecisionPlan, UserAccepted: true},
		{DecisionType: domain.DecisionPlan, UserAccepted: false},
		{DecisionType: domain.DecisionExecution, UserAccepted: true},
	}
	rate, n := AcceptanceRate(domain.DecisionPlan, records)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 0.5, rate, 1e-9)
}
