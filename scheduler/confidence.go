package scheduler

import (
	"context"

	"github.com/forgekeeper/agentcore/checkpoint"
	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/forgekeeper/agentcore/memory"
	"github.com/forgekeeper/agentcore/metacog"
)

// confidenceCheck scores pp against metacog's five factors and, when the
// score falls below the decision type's threshold, creates and resolves a
// checkpoint before execution proceeds (spec.md §4.1 step 5 / §4.7).
func (s *Scheduler) confidenceCheck(ctx context.Context, sess *domain.Session, refl domain.Reflection, pp *preparedPlan) error {
	factors := metacog.Factors{
		OptionClarity:       optionClarity(pp),
		HistoricalSuccess:   s.historicalSuccessRate(ctx, sess),
		RiskAlignment:       1 - pp.riskScore/10,
		EffortCertainty:     effortCertainty(pp),
		ContextCompleteness: refl.Confidence,
	}
	score := metacog.Score(pp.decisionType, factors)
	pp.predictedConfidence = score

	if !metacog.NeedsCheckpoint(pp.decisionType, score, s.cfg.CheckpointThresholds) || s.deps.Checkpoints == nil {
		return nil
	}

	options := checkpointOptionsFor(pp)
	cp := checkpoint.New(sess.ID, sess.Iteration, pp.decisionType, score, options, s.deps.NewID(), s.deps.Now(), s.cfg.CheckpointTTL)

	if err := s.deps.Checkpoints.Checkpoints.Create(cp); err != nil {
		return err
	}
	s.emit(sess, eventlog.ActCheckpointCreated, map[string]any{
		"checkpoint_id": cp.ID, "decision_type": string(pp.decisionType), "score": score, "options": len(cp.Options),
	})

	resolution, selected, err := s.resolveCheckpoint(ctx, cp)
	if err != nil {
		return err
	}

	resolved, err := s.deps.Checkpoints.Checkpoints.Resolve(cp.ID, resolution)
	if err != nil {
		return err
	}

	accepted := len(resolved.Options) > 0 && resolution.SelectedOptionID == resolved.Options[0].ID
	if err := s.deps.Checkpoints.Calibration.Record(domain.CalibrationRecord{
		DecisionType:        pp.decisionType,
		PredictedConfidence: score,
		UserAccepted:        accepted,
		At:                  s.deps.Now(),
	}); err != nil {
		return err
	}
	if s.deps.Memory != nil && resolution.UserID != "" {
		_ = s.deps.Memory.Preferences.RecordDecision(resolution.UserID, accepted, true, false, resolution.Modified)
	}

	s.emit(sess, eventlog.ActCheckpointResolved, map[string]any{
		"checkpoint_id": cp.ID, "selected_option": resolution.SelectedOptionID, "accepted_safest": accepted,
	})

	if selected != nil {
		pp.steps = selected.Steps
	}
	return nil
}

// resolveCheckpoint defers to deps.Checkpointer when one is wired; in
// headless operation it auto-resolves to Options[0], the lowest-risk
// option since checkpoint.New already sorts ascending by risk.
func (s *Scheduler) resolveCheckpoint(ctx context.Context, cp domain.Checkpoint) (domain.CheckpointResolution, *domain.CheckpointOption, error) {
	if s.deps.Checkpointer != nil {
		res, err := s.deps.Checkpointer.Resolve(ctx, cp)
		if err != nil {
			return domain.CheckpointResolution{}, nil, err
		}
		return res, optionByID(cp.Options, res.SelectedOptionID), nil
	}

	if len(cp.Options) == 0 {
		return domain.CheckpointResolution{UserID: "system-auto", ResolvedAt: s.deps.Now()}, nil, nil
	}
	chosen := cp.Options[0]
	return domain.CheckpointResolution{SelectedOptionID: chosen.ID, UserID: "system-auto", ResolvedAt: s.deps.Now()}, &chosen, nil
}

func optionByID(opts []domain.CheckpointOption, id string) *domain.CheckpointOption {
	for i, o := range opts {
		if o.ID == id {
			return &opts[i]
		}
	}
	return nil
}

func checkpointOptionsFor(pp *preparedPlan) []domain.CheckpointOption {
	if len(pp.ranked) > 0 {
		n := len(pp.ranked)
		if n > 3 {
			n = 3
		}
		out := make([]domain.CheckpointOption, n)
		for i := 0; i < n; i++ {
			alt := pp.ranked[i].Alternative
			level := domain.LevelMedium
			if e, ok := pp.effortByAlt[alt.ID]; ok {
				level = e.RiskLevel
			}
			out[i] = domain.CheckpointOption{ID: alt.ID, Label: alt.Name, RiskLevel: level, Steps: alt.Steps}
		}
		return out
	}
	return []domain.CheckpointOption{
		{ID: "proceed", Label: "proceed with plan", RiskLevel: domain.ComplexityLevelFor(pp.riskScore), Steps: pp.steps},
	}
}

func optionClarity(pp *preparedPlan) float64 {
	switch {
	case pp.fallbackUsed:
		return 0.4
	case len(pp.steps) >= 3:
		return 0.8
	default:
		return 0.5
	}
}

func effortCertainty(pp *preparedPlan) float64 {
	if pp.fallbackUsed {
		return 0.3
	}
	return 0.7
}

func (s *Scheduler) historicalSuccessRate(ctx context.Context, sess *domain.Session) float64 {
	if s.deps.Memory == nil {
		return 0.5
	}
	taskType := sess.TaskType
	results := s.deps.Memory.Episodes.Search(ctx, memory.SearchParams{Query: sess.Task, TaskType: &taskType, TopN: 10})
	if len(results) == 0 {
		return 0.5
	}
	succeeded := 0
	for _, r := range results {
		if r.Episode.Success {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(results))
}

func (s *Scheduler) emit(sess *domain.Session, act eventlog.Act, payload map[string]any) {
	if s.deps.Events == nil {
		return
	}
	_ = s.deps.Events.Append(eventlog.Record{
		SessionID: sess.ID, Actor: eventlog.ActorAutonomous, Act: act,
		Iteration: sess.Iteration, Payload: payload, At: s.deps.Now(),
	})
}
