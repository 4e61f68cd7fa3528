package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var availableInfos = []tools.Info{{Name: "run_bash"}, {Name: "git"}, {Name: "read_file"}}

func TestGenerateFallsBackOnLLMError(t *testing.T) {
	alts, method := Generate(context.Background(), GenerateInput{
		NextAction:     "clone the repository",
		AvailableTools: availableInfos,
	}, func(ctx context.Context, in GenerateInput) ([]domain.Alternative, error) {
		return nil, errors.New("boom")
	})

	require.Len(t, alts, 3)
	assert.Equal(t, MethodHeuristicFallback, method)
}

func TestGenerateUsesLLMWhenDiverse(t *testing.T) {
	llmAlts := []domain.Alternative{
		{ID: "a", Name: "a", Steps: []domain.PlanStep{{Tool: "git"}}},
		{ID: "b", Name: "b", Steps: []domain.PlanStep{{Tool: "run_bash"}}},
		{ID: "c", Name: "c", Steps: []domain.PlanStep{{Tool: "read_file"}}},
	}
	alts, method := Generate(context.Background(), GenerateInput{
		NextAction:     "clone the repository",
		AvailableTools: availableInfos,
	}, func(ctx context.Context, in GenerateInput) ([]domain.Alternative, error) {
		return llmAlts, nil
	})

	assert.Equal(t, MethodLLMWithHistory, method)
	require.Len(t, alts, 3)
}

func TestGenerateSanitizesUnknownToolReferences(t *testing.T) {
	llmAlts := []domain.Alternative{
		{ID: "a", Name: "a", Steps: []domain.PlanStep{{Tool: "nonexistent_tool"}}},
		{ID: "b", Name: "b", Steps: []domain.PlanStep{{Tool: "run_bash"}}},
		{ID: "c", Name: "c", Steps: []domain.PlanStep{{Tool: "read_file"}}},
	}
	alts, _ := Generate(context.Background(), GenerateInput{
		AvailableTools: availableInfos,
	}, func(ctx context.Context, in GenerateInput) ([]domain.Alternative, error) {
		return llmAlts, nil
	})

	assert.Equal(t, "echo", alts[0].Steps[0].Tool)
}

func TestEstimateEffortScalesWithStepCountAndHistory(t *testing.T) {
	alt := domain.Alternative{
		ID: "x",
		Steps: []domain.PlanStep{
			{Tool: "write_file", Args: map[string]any{"path": "a", "content": "b"}},
			{Tool: "http_fetch"},
		},
	}
	est := EstimateEffort(alt, nil, nil, 10)
	assert.GreaterOrEqual(t, est.ComplexityScore, 0.0)
	assert.LessOrEqual(t, est.ComplexityScore, 10.0)
	assert.Greater(t, est.RiskScore, 0.0) // write_file + http_fetch both contribute risk
	assert.Equal(t, 1, est.IterMin)
	assert.Equal(t, 2, est.IterPoint)
}

func TestEstimateEffortUsesEpisodeIterationsWhenAvailable(t *testing.T) {
	alt := domain.Alternative{ID: "x", Steps: []domain.PlanStep{{Tool: "run_bash"}}}
	episodes := []domain.Episode{{Iterations: 2}, {Iterations: 4}, {Iterations: 6}}
	est := EstimateEffort(alt, nil, episodes, 10)
	assert.Equal(t, 2, est.IterMin)
	assert.Equal(t, 4, est.IterPoint)
	assert.Equal(t, 6, est.IterMax)
}

func TestCheckAlignmentHeuristicScoresKeywordOverlap(t *testing.T) {
	alt := domain.Alternative{ID: "a", Description: "clone the repository and run tests"}
	result := CheckAlignmentHeuristic(alt, "clone the repository")
	assert.Greater(t, result.Score, 0.0)
	assert.Equal(t, domain.AlignmentHeuristic, result.Method)
}

func TestCheckAlignmentHeuristicLowOverlapIsLowRelevance(t *testing.T) {
	alt := domain.Alternative{ID: "a", Description: "unrelated text with no match"}
	result := CheckAlignmentHeuristic(alt, "clone the repository and build artifacts")
	assert.Equal(t, domain.RelevanceLow, result.Relevance)
}

func TestEvaluateAllRanksHighestOverallFirstAndMarksChosen(t *testing.T) {
	alts := []domain.Alternative{
		{ID: "low", Name: "low", Confidence: 0.2},
		{ID: "high", Name: "high", Confidence: 0.9},
	}
	efforts := []domain.EffortEstimate{
		{AlternativeID: "low", ComplexityScore: 9, RiskScore: 9},
		{AlternativeID: "high", ComplexityScore: 1, RiskScore: 1},
	}
	aligns := []domain.AlignmentResult{
		{AlternativeID: "low", Score: 0.1},
		{AlternativeID: "high", Score: 0.9},
	}

	decision := EvaluateAll(context.Background(), alts, efforts, aligns, domain.DefaultEvaluatorWeights())

	require.Len(t, decision.Ranked, 2)
	assert.Equal(t, "high", decision.Ranked[0].Alternative.ID)
	assert.True(t, decision.Ranked[0].Chosen)
	assert.False(t, decision.Ranked[1].Chosen)
	assert.NotEmpty(t, decision.Justification)
}

func TestEvaluateAllNormalizesWeights(t *testing.T) {
	alts := []domain.Alternative{{ID: "only", Confidence: 0.5}}
	decision := EvaluateAll(context.Background(), alts, nil, nil, domain.EvaluatorWeights{Effort: 1, Risk: 1, Alignment: 1, Confidence: 1})
	sum := decision.Weights.Effort + decision.Weights.Risk + decision.Weights.Alignment + decision.Weights.Confidence
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPlanReturnsCachedResultOnlyAfterCommit(t *testing.T) {
	cache := NewCache()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	llm := func(ctx context.Context, in PlanInput) (domain.InstructionPlan, error) {
		calls++
		return domain.InstructionPlan{
			Approach: "do it",
			Steps: []domain.InstructionStep{
				{Tool: "run_bash"}, {Tool: "run_bash"}, {Tool: "run_bash"},
			},
		}, nil
	}

	in := PlanInput{TaskType: domain.TaskCodeGeneration, Action: "Build The Thing", ToolNames: []string{"run_bash"}}
	first, key := Plan(context.Background(), cache, now, in, llm)
	assert.False(t, first.FromCache)

	// Without a Commit, a never-executed plan must not be served from cache.
	second, _ := Plan(context.Background(), cache, now, PlanInput{TaskType: domain.TaskCodeGeneration, Action: "build   the thing", ToolNames: []string{"run_bash"}}, llm)
	assert.False(t, second.FromCache)
	assert.Equal(t, 2, calls)

	cache.Commit(key, first, now)
	third, _ := Plan(context.Background(), cache, now, PlanInput{TaskType: domain.TaskCodeGeneration, Action: "build   the thing", ToolNames: []string{"run_bash"}}, llm)
	assert.True(t, third.FromCache)
	assert.Equal(t, 2, calls)
}

func TestCommitNeverCachesAFallbackPlan(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	in := PlanInput{TaskType: domain.TaskCodeGeneration, Action: "do something", ToolNames: []string{"run_bash"}}
	plan, key := Plan(context.Background(), cache, now, in, nil)
	require.True(t, plan.FallbackUsed)

	cache.Commit(key, plan, now)
	again, _ := Plan(context.Background(), cache, now, in, nil)
	assert.False(t, again.FromCache)
}

func TestPlanFallsBackToHeuristicWhenLLMReturnsInvalidPlan(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	llm := func(ctx context.Context, in PlanInput) (domain.InstructionPlan, error) {
		return domain.InstructionPlan{Steps: []domain.InstructionStep{{Tool: "run_bash"}}}, nil // too few steps
	}
	plan, _ := Plan(context.Background(), cache, now, PlanInput{Action: "do something", ToolNames: []string{"run_bash"}}, llm)
	assert.True(t, plan.FallbackUsed)
	assert.GreaterOrEqual(t, len(plan.Steps), minInstructionSteps)
}

func TestPlanFallsBackToHeuristicWithNilLLM(t *testing.T) {
	plan, _ := Plan(context.Background(), nil, time.Now(), PlanInput{Action: "do something"}, nil)
	assert.True(t, plan.FallbackUsed)
}

func TestNormalizeActionCollapsesWhitespaceAndCase(t *testing.T) {
	assert.Equal(t, "clone the repo", NormalizeAction("  Clone   THE repo  "))
}

func TestToolSetHashIsOrderIndependent(t *testing.T) {
	a := ToolSetHash([]string{"git", "run_bash"})
	b := ToolSetHash([]string{"run_bash", "git"})
	assert.Equal(t, a, b)
}
