package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/forgekeeper/agentcore/llms"
	"github.com/forgekeeper/agentcore/progress"
)

// loopState carries state that crosses iteration boundaries within one
// Run call but does not belong on the persisted Session: a recovery
// plan scheduled to run next iteration in place of a fresh reflection
// (spec.md §4.1 step 9's "skip reflection once").
type loopState struct {
	pendingRecovery *preparedPlan
}

// execResult is the scheduler's internal view of one plan's execution,
// bridging tools.Result across however many steps ran.
type execResult struct {
	toolsUsed    []string
	artifacts    []domain.Artifact
	output       string
	allSucceeded bool
	failedStep   *domain.PlanStep
	failure      *domain.ToolError
}

func (s *Scheduler) iterate(ctx context.Context, sess *domain.Session, tracker *progress.Tracker, ls *loopState) error {
	now := s.deps.Now()
	tracker.Heartbeat(sess.Iteration, domain.PhaseReflect)
	s.emit(sess, eventlog.ActIterationBegin, nil)

	if ls.pendingRecovery != nil {
		pp := *ls.pendingRecovery
		ls.pendingRecovery = nil
		refl := lastReflectionOrZero(sess)
		return s.runFromConfidenceCheck(ctx, sess, tracker, ls, refl, pp, now, false)
	}

	refl, err := s.reflect(ctx, sess)
	if err != nil {
		return err
	}
	s.emit(sess, eventlog.ActReflection, map[string]any{
		"assessment": string(refl.Assessment), "confidence": refl.Confidence, "degraded": refl.Degraded,
	})

	switch refl.Assessment {
	case domain.AssessComplete:
		sess.Outcome = domain.OutcomeCompleted
		sess.Progress = refl.Progress
		sess.Confidence = refl.Confidence
		sess.RecentReflections = appendBounded(sess.RecentReflections, refl, 5)
		return nil
	case domain.AssessNeedsClarification:
		sess.Outcome = domain.OutcomeNeedsClarification
		sess.ClarificationQuestions = refl.Questions
		sess.RecentReflections = appendBounded(sess.RecentReflections, refl, 5)
		return nil
	}

	if lastThreeSimilar(sess) {
		refl.NextAction = "try a fundamentally different approach than before: " + refl.NextAction
	}

	tracker.Heartbeat(sess.Iteration, domain.PhaseMetaReflect)
	if mr := s.metaReflect(sess); mr != nil {
		mr.Score()
		s.emit(sess, eventlog.ActMetaReflection, map[string]any{
			"iteration": mr.Iteration, "overall_accuracy": mr.OverallAccuracy, "assessment_correct": mr.AssessmentCorrect,
		})
	}

	tracker.Heartbeat(sess.Iteration, domain.PhasePlan)
	toolInfos := s.deps.Tools.ListTools()
	var pp preparedPlan
	if s.cfg.UseAlternativePlanner && refl.Confidence < s.cfg.DirectPlanThreshold {
		pp = s.planViaAlternatives(ctx, sess, refl, toolInfos)
	} else {
		pp = s.planViaTaskPlanner(ctx, sess, refl, toolNamesFrom(toolInfos))
	}
	s.emit(sess, eventlog.ActPlanningPhase, map[string]any{
		"decision_type": string(pp.decisionType), "fallback_used": pp.fallbackUsed, "steps": len(pp.steps),
	})

	return s.runFromConfidenceCheck(ctx, sess, tracker, ls, refl, pp, now, true)
}

// runFromConfidenceCheck executes steps 5-12 of the iteration sequence,
// shared by the fresh-reflection path and the post-recovery path that
// skips straight to a prepared plan.
func (s *Scheduler) runFromConfidenceCheck(ctx context.Context, sess *domain.Session, tracker *progress.Tracker, ls *loopState, refl domain.Reflection, pp preparedPlan, now time.Time, recordReflection bool) error {
	tracker.Heartbeat(sess.Iteration, domain.PhaseConfidence)
	if err := s.confidenceCheck(ctx, sess, refl, &pp); err != nil {
		return err
	}

	tracker.Heartbeat(sess.Iteration, domain.PhaseExecute)
	res, err := s.execute(ctx, sess, tracker, pp)
	if err != nil {
		return err
	}

	tracker.Heartbeat(sess.Iteration, domain.PhaseVerify)
	s.verify(ctx, pp, &res)
	if pp.verification != nil {
		s.emit(sess, eventlog.ActVerificationCheck, map[string]any{"passed": res.allSucceeded})
	}

	// A Task Planner plan is only worth reusing once its execution has
	// actually succeeded (spec.md §4.3); commit happens here, never at
	// planning time.
	if pp.cacheable && res.allSucceeded && s.deps.PlanCache != nil {
		s.deps.PlanCache.Commit(pp.cacheKey, pp.cachePlan, now)
	}

	tracker.Heartbeat(sess.Iteration, domain.PhaseOutcomeBind)
	entry := outcomeEntry(sess, refl, res, now)

	tracker.Heartbeat(sess.Iteration, domain.PhaseDiagnose)
	if recovery := s.diagnoseAndRecover(ctx, sess, res); recovery != nil {
		if recovery.Primary.Confidence > s.cfg.RecoveryConfidenceThreshold {
			ls.pendingRecovery = &preparedPlan{
				steps:               recovery.Primary.Steps,
				decisionType:        domain.DecisionExecution,
				predictedConfidence: recovery.Primary.Confidence,
			}
			s.emit(sess, eventlog.ActRecoveryAttemptResult, map[string]any{"applied": true, "strategy": recovery.Primary.Name})
		} else {
			s.emit(sess, eventlog.ActRecoveryAttemptResult, map[string]any{"applied": false, "strategy": recovery.Primary.Name})
		}
	}

	tracker.Heartbeat(sess.Iteration, domain.PhaseFeedback)
	s.recordPlanningFeedback(sess, refl, pp, res)
	s.emit(sess, eventlog.ActConfidenceCalibrationRecord, map[string]any{"predicted_confidence": pp.predictedConfidence})

	tracker.Heartbeat(sess.Iteration, domain.PhaseStuckCheck)
	s.checkStuck(sess, tracker)

	tracker.Heartbeat(sess.Iteration, domain.PhasePersist)
	if recordReflection {
		sess.RecentReflections = appendBounded(sess.RecentReflections, refl, 5)
	}
	sess.ActionHistory = append(sess.ActionHistory, entry)
	sess.Progress = refl.Progress
	sess.Confidence = refl.Confidence
	return nil
}

func lastReflectionOrZero(sess *domain.Session) domain.Reflection {
	if len(sess.RecentReflections) == 0 {
		return domain.Reflection{Iteration: sess.Iteration}
	}
	return sess.RecentReflections[len(sess.RecentReflections)-1]
}

// reflect calls the LLM for the iteration's Reflection, falling back to
// the most recent cached reflection (marked Degraded) when the call
// fails and a cached one exists, per spec.md §4.1 step 2.
func (s *Scheduler) reflect(ctx context.Context, sess *domain.Session) (domain.Reflection, error) {
	resp, err := s.deps.LLM.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "You assess an autonomous agent's task progress and propose the single next action."},
		{Role: llms.RoleUser, Content: reflectionPrompt(sess)},
	}, llms.Options{ResponseFormat: llms.FormatJSONSchema, Schema: llms.SchemaFor(domain.Reflection{})})

	if err == nil && resp.JSON != "" {
		var refl domain.Reflection
		if jsonErr := json.Unmarshal([]byte(resp.JSON), &refl); jsonErr == nil {
			refl.Iteration = sess.Iteration
			refl.Degraded = false
			return refl, nil
		}
	}

	if len(sess.RecentReflections) > 0 {
		cached := sess.RecentReflections[len(sess.RecentReflections)-1]
		cached.Iteration = sess.Iteration
		cached.Degraded = true
		return cached, nil
	}
	return domain.Reflection{}, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
}

func reflectionPrompt(sess *domain.Session) string {
	return fmt.Sprintf(
		"Task: %s\nTask type: %s\nIteration: %d of %d\nLast progress: %.2f\nRecent failures: %d\nAssess the current state (continue/stuck/complete/needs_clarification), estimate progress and confidence in [0,1], and propose the next concrete action.",
		sess.Task, sess.TaskType, sess.Iteration, sess.MaxIter, sess.Progress, len(sess.Failures),
	)
}

// metaReflect scores the previous iteration's reflection against its
// observed outcome. It requires both a prior reflection and a prior
// action-history entry, so it is a no-op on the session's first
// iteration (spec.md §4.1 step 3).
func (s *Scheduler) metaReflect(sess *domain.Session) *domain.MetaReflection {
	if len(sess.RecentReflections) == 0 || len(sess.ActionHistory) == 0 {
		return nil
	}
	prevRefl := sess.RecentReflections[len(sess.RecentReflections)-1]
	prevEntry := sess.ActionHistory[len(sess.ActionHistory)-1]

	actualProgress := 0.0
	if prevEntry.ActualSuccess {
		actualProgress = prevRefl.Progress
	}
	assessmentCorrect := prevEntry.ActualSuccess != (prevRefl.Assessment == domain.AssessStuck)

	return &domain.MetaReflection{
		Iteration:         prevRefl.Iteration,
		ProgressError:     math.Abs(prevRefl.Progress - actualProgress),
		ConfidenceError:   domain.ConfidenceErrorFor(prevRefl.Confidence, prevEntry.ActualSuccess),
		AssessmentCorrect: assessmentCorrect,
	}
}

func outcomeEntry(sess *domain.Session, refl domain.Reflection, res execResult, now time.Time) domain.ActionHistoryEntry {
	entry := domain.ActionHistoryEntry{
		Iteration:         sess.Iteration,
		ReflectionIter:    refl.Iteration,
		NextAction:        refl.NextAction,
		ToolsUsed:         res.toolsUsed,
		ArtifactsCreated:  res.artifacts,
		PredictedProgress: refl.Progress,
		PredictedConf:     refl.Confidence,
		ActualSuccess:     res.allSucceeded,
		At:                now,
	}
	if res.allSucceeded {
		entry.ResultSummary = res.output
	} else {
		entry.Error = res.failure
	}
	return entry
}
