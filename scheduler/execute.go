package scheduler

import (
	"context"

	"github.com/forgekeeper/agentcore/diagnostics"
	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/forgekeeper/agentcore/progress"
	"github.com/forgekeeper/agentcore/tools"
)

// execute steps through pp's plan one tool invocation at a time, stopping
// at the first unretried failure. A step whose ErrorHandling hint is
// non-empty is retried once in place, since PlanStep carries only a
// free-text fallback hint rather than a structured fallback step
// (spec.md §4.1 step 6).
func (s *Scheduler) execute(ctx context.Context, sess *domain.Session, tracker *progress.Tracker, pp preparedPlan) (execResult, error) {
	var res execResult

	for i, step := range pp.steps {
		s.emit(sess, eventlog.ActExecutionStep, map[string]any{"step": i, "tool": step.Tool})

		result, callErr := s.deps.Tools.Execute(ctx, tools.Invocation{ToolName: step.Tool, Args: step.Args})
		if callErr != nil && result.Error == nil {
			result.Error = &domain.ToolError{Tool: step.Tool, Message: callErr.Error()}
		}

		if !result.OK && step.ErrorHandling != "" {
			retried, retryErr := s.deps.Tools.Execute(ctx, tools.Invocation{ToolName: step.Tool, Args: step.Args})
			if retryErr != nil && retried.Error == nil {
				retried.Error = &domain.ToolError{Tool: step.Tool, Message: retryErr.Error()}
			}
			result = retried
		}

		res.toolsUsed = append(res.toolsUsed, step.Tool)
		s.emit(sess, eventlog.ActExecutionResult, map[string]any{"step": i, "ok": result.OK})

		if !result.OK {
			failedStep := step
			res.failedStep = &failedStep
			res.failure = result.Error
			return res, nil
		}

		res.artifacts = append(res.artifacts, result.Artifacts...)
		res.output = result.Output
		tracker.StateChange(domain.StateToolSucceeded, map[string]any{"tool": step.Tool})
		for _, a := range result.Artifacts {
			tracker.StateChange(domain.StateArtifactCreated, map[string]any{"path": a.Path})
		}
		tracker.StateChange(domain.StateStepAdvanced, map[string]any{"step": i})
	}

	res.allSucceeded = true
	return res, nil
}

// verify runs the plan's verification command (always via run_bash, per
// tools/bash.go's registered name) when every step succeeded and the plan
// declares one. A verification failure demotes the whole plan to failed.
func (s *Scheduler) verify(ctx context.Context, pp preparedPlan, res *execResult) {
	if !res.allSucceeded || pp.verification == nil {
		return
	}
	result, err := s.deps.Tools.Execute(ctx, tools.Invocation{
		ToolName: "run_bash",
		Args:     map[string]any{"command": pp.verification.CheckCommand},
	})
	if err == nil && result.OK {
		return
	}
	res.allSucceeded = false
	if result.Error != nil {
		res.failure = result.Error
	} else {
		res.failure = &domain.ToolError{Tool: "run_bash", Message: "verification command did not confirm success"}
	}
}

// diagnoseAndRecover classifies a plan failure, produces a diagnosis and
// recovery plan, boosts the primary strategy with any learned pattern, and
// applies the repeated-recovery confidence decay (spec.md §4.1 step 9,
// §4.5). Returns nil when res did not fail.
func (s *Scheduler) diagnoseAndRecover(ctx context.Context, sess *domain.Session, res execResult) *domain.RecoveryPlan {
	if res.allSucceeded || res.failure == nil {
		return nil
	}

	category := diagnostics.Classify(res.failure)
	s.emit(sess, eventlog.ActErrorClassified, map[string]any{"category": string(category)})

	toolName, args := "", map[string]any(nil)
	if res.failedStep != nil {
		toolName, args = res.failedStep.Tool, res.failedStep.Args
	}

	diagnosis := diagnostics.Reflect(ctx, s.deps.LLM, toolName, args, res.failure, category)
	s.emit(sess, eventlog.ActDiagnosticReflection, map[string]any{"root_cause": diagnosis.RootCauseDesc, "category": string(diagnosis.Category)})

	plan := diagnostics.Plan(category)
	if s.deps.Memory != nil {
		records := s.deps.Memory.Patterns.RecordsForCategory(category)
		if name, ok := diagnostics.BestStrategy(category, records); ok {
			for _, rec := range records {
				if rec.StrategyName == name {
					plan.Primary = diagnostics.Boost(plan.Primary, rec)
					break
				}
			}
		}
	}

	sess.Failures = append(sess.Failures, domain.FailureRecord{
		Iteration: sess.Iteration, Tool: toolName, Category: category, Message: res.failure.Message, At: s.deps.Now(),
	})

	if sess.RecoveryStreak.Category == string(category) {
		sess.RecoveryStreak.Count++
	} else {
		sess.RecoveryStreak = domain.RecoveryStreak{Category: string(category), Count: 1}
	}
	if sess.RecoveryStreak.Count >= 3 {
		plan.Primary.Confidence -= 0.1 * float64(sess.RecoveryStreak.Count-2)
		if plan.Primary.Confidence < 0 {
			plan.Primary.Confidence = 0
		}
	}

	s.emit(sess, eventlog.ActRecoveryPlan, map[string]any{
		"primary": plan.Primary.Name, "confidence": plan.Primary.Confidence, "fallbacks": len(plan.Fallbacks),
	})

	return &plan
}

func (s *Scheduler) recordPlanningFeedback(sess *domain.Session, refl domain.Reflection, pp preparedPlan, res execResult) {
	pf := domain.PlanningFeedback{
		Iteration:           sess.Iteration,
		PlanSucceeded:       res.allSucceeded,
		ToolsMatchedPlan:    toolsMatchPlan(pp.steps, res.toolsUsed),
		PredictedConfidence: pp.predictedConfidence,
		ConfidenceScore:     domain.CalibrationScoreFor(pp.predictedConfidence, res.allSucceeded),
	}
	sess.PlanningFeedback = appendBounded(sess.PlanningFeedback, pf, 5)
	s.emit(sess, eventlog.ActPlanningFeedback, map[string]any{
		"plan_succeeded": pf.PlanSucceeded, "tools_matched_plan": pf.ToolsMatchedPlan, "confidence_score": pf.ConfidenceScore,
	})
}

func toolsMatchPlan(steps []domain.PlanStep, used []string) bool {
	if len(steps) == 0 {
		return len(used) == 0
	}
	planned := make(map[string]bool, len(steps))
	for _, st := range steps {
		planned[st.Tool] = true
	}
	for _, u := range used {
		if !planned[u] {
			return false
		}
	}
	return true
}

// checkStuck escalates to OutcomeStuck after two consecutive iterations
// the progress tracker reports stuck, per spec.md §4.1 step 11.
func (s *Scheduler) checkStuck(sess *domain.Session, tracker *progress.Tracker) {
	if !tracker.IsStuck() {
		sess.StuckCount = 0
		return
	}
	sess.StuckCount++
	if sess.StuckCount >= 2 {
		sess.Outcome = domain.OutcomeStuck
		sess.StopReason = "stuck_no_progress"
	}
}
