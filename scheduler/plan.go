package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/llms"
	"github.com/forgekeeper/agentcore/memory"
	"github.com/forgekeeper/agentcore/planner"
	"github.com/forgekeeper/agentcore/tools"
)

// preparedPlan bridges the Alternative Planner's domain.RankedDecision and
// the Task Planner's domain.InstructionPlan into the one shape steps 5-12
// of the iteration consume, since the two planning paths otherwise differ
// in structure.
type preparedPlan struct {
	steps               []domain.PlanStep
	verification        *domain.Verification
	decisionType        domain.DecisionType
	predictedConfidence float64
	riskScore           float64 // 0-10
	complexityScore     float64 // 0-10
	fallbackUsed        bool

	// ranked and effortByAlt are populated only on the Alternative Planner
	// path, so the confidence-check phase can offer the top alternatives
	// as checkpoint options instead of a single "proceed" option.
	ranked      []domain.RankedAlternative
	effortByAlt map[string]domain.EffortEstimate

	// cacheKey/cachePlan/cacheable are populated only on the Task Planner
	// path. cacheable is true when the plan was freshly produced (not
	// already served from cache) and was not a heuristic fallback, so the
	// scheduler commits it to the plan cache once it knows the plan's
	// execution succeeded (spec.md §4.3).
	cacheKey  planner.CacheKey
	cachePlan domain.InstructionPlan
	cacheable bool
}

func (s *Scheduler) planViaAlternatives(ctx context.Context, sess *domain.Session, refl domain.Reflection, toolInfos []tools.Info) preparedPlan {
	var episodes []domain.Episode
	if s.deps.Memory != nil {
		taskType := sess.TaskType
		for _, se := range s.deps.Memory.Episodes.Search(ctx, memory.SearchParams{Query: sess.Task, TaskType: &taskType, TopN: 5}) {
			episodes = append(episodes, se.Episode)
		}
	}

	alts, _ := planner.Generate(ctx, planner.GenerateInput{
		TaskGoal:        sess.Task,
		NextAction:      refl.NextAction,
		AvailableTools:  toolInfos,
		RecentFailures:  recentFailures(sess),
		SimilarEpisodes: episodes,
	}, s.llmGenerateAlternatives)

	efforts := make([]domain.EffortEstimate, len(alts))
	alignments := make([]domain.AlignmentResult, len(alts))
	effortByAlt := make(map[string]domain.EffortEstimate, len(alts))
	for i, alt := range alts {
		efforts[i] = planner.EstimateEffort(alt, sess.ActionHistory, episodes, sess.MaxIter)
		alignments[i] = planner.CheckAlignmentHeuristic(alt, sess.Task)
		effortByAlt[alt.ID] = efforts[i]
	}

	decision := planner.EvaluateAll(ctx, alts, efforts, alignments, s.cfg.EvaluatorWeights)

	var chosen domain.RankedAlternative
	for _, r := range decision.Ranked {
		if r.Chosen {
			chosen = r
			break
		}
	}
	effort := effortByAlt[chosen.Alternative.ID]

	return preparedPlan{
		steps:               chosen.Alternative.Steps,
		decisionType:        domain.DecisionStrategy,
		predictedConfidence: chosen.Alternative.Confidence,
		riskScore:           effort.RiskScore,
		complexityScore:     effort.ComplexityScore,
		fallbackUsed:        decision.Method == "heuristic_fallback",
		ranked:              decision.Ranked,
		effortByAlt:         effortByAlt,
	}
}

func (s *Scheduler) planViaTaskPlanner(ctx context.Context, sess *domain.Session, refl domain.Reflection, toolNames []string) preparedPlan {
	plan, key := planner.Plan(ctx, s.deps.PlanCache, s.deps.Now(), planner.PlanInput{
		TaskType:  sess.TaskType,
		Action:    refl.NextAction,
		ToolNames: toolNames,
	}, s.llmPlanFunc)

	return preparedPlan{
		steps:               stepsFromInstructions(plan.Steps),
		verification:        plan.Verification,
		decisionType:        domain.DecisionPlan,
		predictedConfidence: avgStepConfidence(plan.Steps),
		riskScore:           riskFromFallback(plan.FallbackUsed),
		complexityScore:     float64(len(plan.Steps)),
		fallbackUsed:        plan.FallbackUsed,
		cacheKey:            key,
		cachePlan:           plan,
		cacheable:           !plan.FromCache && !plan.FallbackUsed,
	}
}

// generatedAlternatives is the structured-output shape requested from the
// LLM for Alternative Generation.
type generatedAlternatives struct {
	Alternatives []domain.Alternative `json:"alternatives"`
}

func (s *Scheduler) llmGenerateAlternatives(ctx context.Context, in planner.GenerateInput) ([]domain.Alternative, error) {
	if s.deps.LLM == nil {
		return nil, fmt.Errorf("scheduler: no llm client configured")
	}
	resp, err := s.deps.LLM.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "Propose 3 to 5 meaningfully different alternative plans to accomplish the next action."},
		{Role: llms.RoleUser, Content: fmt.Sprintf("Goal: %s\nNext action: %s", in.TaskGoal, in.NextAction)},
	}, llms.Options{ResponseFormat: llms.FormatJSONSchema, Schema: llms.SchemaFor(generatedAlternatives{})})
	if err != nil || resp.JSON == "" {
		return nil, fmt.Errorf("scheduler: alternative generation: %w", err)
	}
	var g generatedAlternatives
	if jsonErr := json.Unmarshal([]byte(resp.JSON), &g); jsonErr != nil {
		return nil, jsonErr
	}
	return g.Alternatives, nil
}

func (s *Scheduler) llmPlanFunc(ctx context.Context, in planner.PlanInput) (domain.InstructionPlan, error) {
	if s.deps.LLM == nil {
		return domain.InstructionPlan{}, fmt.Errorf("scheduler: no llm client configured")
	}
	resp, err := s.deps.LLM.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "Produce a concrete, 3 to 7 step instruction plan for the given action using only the available tools."},
		{Role: llms.RoleUser, Content: fmt.Sprintf("Task type: %s\nAction: %s\nAvailable tools: %v", in.TaskType, in.Action, in.ToolNames)},
	}, llms.Options{ResponseFormat: llms.FormatJSONSchema, Schema: llms.SchemaFor(domain.InstructionPlan{})})
	if err != nil || resp.JSON == "" {
		return domain.InstructionPlan{}, fmt.Errorf("scheduler: instruction planning: %w", err)
	}
	var plan domain.InstructionPlan
	if jsonErr := json.Unmarshal([]byte(resp.JSON), &plan); jsonErr != nil {
		return domain.InstructionPlan{}, jsonErr
	}
	return plan, nil
}

func stepsFromInstructions(steps []domain.InstructionStep) []domain.PlanStep {
	out := make([]domain.PlanStep, len(steps))
	for i, st := range steps {
		out[i] = domain.PlanStep{
			Tool: st.Tool, Args: st.Args, ExpectedOutcome: st.ExpectedOutcome,
			ErrorHandling: st.ErrorHandling, Confidence: st.Confidence,
		}
	}
	return out
}

func avgStepConfidence(steps []domain.InstructionStep) float64 {
	if len(steps) == 0 {
		return 0
	}
	var sum float64
	for _, st := range steps {
		sum += st.Confidence
	}
	return sum / float64(len(steps))
}

// riskFromFallback gives the heuristic fallback plan a mid-band risk score
// since it has not been vetted against the task the way an LLM-produced
// plan has.
func riskFromFallback(fallbackUsed bool) float64 {
	if fallbackUsed {
		return 6
	}
	return 3
}
