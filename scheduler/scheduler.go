// Package scheduler implements the Iteration Scheduler from spec.md §4.1:
// the outer control loop that drives one Session from its first reflection
// to a terminal Outcome, phase by phase, grounded on hector's
// llmagent.Flow.Run/runOneStep outer-loop shape (pkg/agent/llmagent/flow.go)
// generalized from a chat reasoning loop to the reflect/plan/execute/
// diagnose cycle this spec describes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forgekeeper/agentcore/checkpoint"
	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/forgekeeper/agentcore/llms"
	"github.com/forgekeeper/agentcore/memory"
	"github.com/forgekeeper/agentcore/metacog"
	"github.com/forgekeeper/agentcore/planner"
	"github.com/forgekeeper/agentcore/progress"
	"github.com/forgekeeper/agentcore/tools"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrSessionAborted is returned from Run when ctx is cancelled before the
// session reached a terminal outcome.
var ErrSessionAborted = errors.New("scheduler: session aborted")

// ErrLLMUnavailable is returned from Run when the reflection phase's LLM
// call fails with no cached reflection to fall back to.
var ErrLLMUnavailable = errors.New("scheduler: llm unavailable")

// Config tunes the scheduler's thresholds. Zero numeric fields and zero
// EvaluatorWeights are replaced by DefaultConfig's values at New;
// UseAlternativePlanner is used as given, and zero CheckpointThresholds
// fields fall back inside metacog.
type Config struct {
	// StuckThreshold is the number of heartbeats with no state change
	// before progress.Tracker reports stuck (spec.md §4.4, default 5).
	StuckThreshold int

	// DirectPlanThreshold is the reflection confidence below which the
	// Alternative Planner runs instead of the Task Planner directly
	// (spec.md §4.1 step 4). Open Question resolved in DESIGN.md at 0.70,
	// matching DecisionPlan/DecisionStrategy's checkpoint threshold.
	DirectPlanThreshold float64

	// RecoveryConfidenceThreshold is the minimum RecoveryPlan.Primary
	// confidence the scheduler will apply automatically (spec.md §4.1
	// step 9, default 0.6).
	RecoveryConfidenceThreshold float64

	// CheckpointTTL bounds how long a checkpoint waits for resolution
	// before ExpirePending reports it.
	CheckpointTTL time.Duration

	// CheckpointThresholds overrides metacog's per-decision-type default
	// checkpoint thresholds (spec.md §6's configurable CheckpointThresholds).
	// Fields left at zero fall back to domain.DecisionType.DefaultThreshold.
	CheckpointThresholds metacog.Thresholds

	// EvaluatorWeights are passed through to planner.EvaluateAll.
	EvaluatorWeights domain.EvaluatorWeights

	// UseAlternativePlanner gates step 4's branch entirely; false always
	// runs the Task Planner directly regardless of confidence.
	UseAlternativePlanner bool
}

// DefaultConfig returns the scheduler's spec.md-derived defaults.
func DefaultConfig() Config {
	return Config{
		StuckThreshold:              5,
		DirectPlanThreshold:         0.70,
		RecoveryConfidenceThreshold: 0.6,
		CheckpointTTL:               24 * time.Hour,
		EvaluatorWeights:            domain.DefaultEvaluatorWeights(),
		UseAlternativePlanner:       true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StuckThreshold <= 0 {
		c.StuckThreshold = d.StuckThreshold
	}
	if c.DirectPlanThreshold <= 0 {
		c.DirectPlanThreshold = d.DirectPlanThreshold
	}
	if c.RecoveryConfidenceThreshold <= 0 {
		c.RecoveryConfidenceThreshold = d.RecoveryConfidenceThreshold
	}
	if c.CheckpointTTL <= 0 {
		c.CheckpointTTL = d.CheckpointTTL
	}
	if c.EvaluatorWeights == (domain.EvaluatorWeights{}) {
		c.EvaluatorWeights = d.EvaluatorWeights
	}
	return c
}

// CheckpointResolver resolves a pending decision checkpoint, typically by
// surfacing it to a human and blocking on their response. The scheduler
// treats it as just another external collaborator, the same way it treats
// llms.Client and tools.Executor, rather than building goroutine-suspension
// machinery into the loop itself.
type CheckpointResolver interface {
	Resolve(ctx context.Context, cp domain.Checkpoint) (domain.CheckpointResolution, error)
}

// Deps bundles the scheduler's collaborators.
type Deps struct {
	LLM         llms.Client
	Tools       tools.Executor
	Memory      *memory.Store
	Checkpoints *checkpoint.Store
	Events      *eventlog.Log
	PlanCache   *planner.Cache

	// Checkpointer resolves checkpoints needing human input. When nil, the
	// scheduler runs headless and auto-resolves to the lowest-risk option
	// (Options[0], since checkpoint.New already sorts ascending by risk)
	// under UserID "system-auto" — an Open Question resolution recorded in
	// DESIGN.md, since spec.md specifies suspension but not headless
	// behavior.
	Checkpointer CheckpointResolver

	Registry prometheus.Registerer

	Now   func() time.Time
	NewID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	return d
}

// Scheduler drives sessions through the twelve-step iteration sequence.
type Scheduler struct {
	cfg  Config
	deps Deps
}

// New constructs a Scheduler.
func New(cfg Config, deps Deps) *Scheduler {
	return &Scheduler{cfg: cfg.withDefaults(), deps: deps.withDefaults()}
}

// Run drives sess to a terminal Outcome, mutating it in place at each
// iteration boundary. It returns ErrSessionAborted on external
// cancellation and ErrLLMUnavailable when reflection cannot proceed; any
// other error is a collaborator failure the caller should treat as fatal
// to the session.
func (s *Scheduler) Run(ctx context.Context, sess *domain.Session) error {
	if sess.Outcome == "" {
		sess.Outcome = domain.OutcomeRunning
	}
	if sess.Metadata == nil {
		sess.Metadata = map[string]string{}
	}

	tracker := progress.NewTracker(sess.ID, s.deps.Registry, progress.WithStuckThreshold(s.cfg.StuckThreshold))
	ls := &loopState{}

	for sess.Outcome == domain.OutcomeRunning {
		if ctx.Err() != nil {
			sess.Outcome = domain.OutcomeStopped
			sess.StopReason = "session_aborted"
			s.persistTerminal(ctx, sess)
			return ErrSessionAborted
		}
		if sess.Iteration >= sess.MaxIter {
			sess.Outcome = domain.OutcomeStopped
			sess.StopReason = "max_iterations_reached"
			break
		}

		if err := s.iterate(ctx, sess, tracker, ls); err != nil {
			if errors.Is(err, ErrLLMUnavailable) {
				sess.Outcome = domain.OutcomeStopped
				sess.StopReason = "llm_unavailable"
				s.persistTerminal(ctx, sess)
				return err
			}
			return fmt.Errorf("scheduler: iteration %d: %w", sess.Iteration, err)
		}

		if sess.Outcome == domain.OutcomeRunning {
			sess.Iteration++
		}
	}

	s.persistTerminal(ctx, sess)
	return nil
}

// persistTerminal writes the session-terminal memory records once sess has
// left OutcomeRunning. It is a no-op if sess never left it (defensive: Run
// always reaches a terminal outcome before returning).
func (s *Scheduler) persistTerminal(ctx context.Context, sess *domain.Session) {
	if sess.Outcome == domain.OutcomeRunning || s.deps.Memory == nil {
		return
	}

	now := s.deps.Now()
	stats := sess.Stats()
	succeeded := sess.Outcome == domain.OutcomeCompleted

	summary, _ := s.deps.Memory.SummarizeForEpisode(sessionSummaryText(sess))

	_ = s.deps.Memory.Sessions.Write(domain.SessionMemoryRecord{
		TaskType:            sess.TaskType,
		Success:             succeeded,
		Iterations:          stats.Iterations,
		ToolsUsed:           toolsUsedAcross(sess),
		FailedTools:         failedToolsAcross(sess),
		ErrorCategories:     errorCategoriesAcross(sess),
		RecoveriesAttempted: len(sess.Failures),
		RecoveriesSucceeded: recoveriesSucceeded(sess),
		RepetitiveActions:   sess.StuckCount > 0,
		Timestamp:           now,
	})

	_ = s.deps.Memory.Episodes.Write(ctx, domain.Episode{
		ID:            s.deps.NewID(),
		TaskText:      sess.Task,
		TaskType:      sess.TaskType,
		Success:       succeeded,
		Iterations:    stats.Iterations,
		ToolsUsed:     toolsUsedAcross(sess),
		Strategy:      lastStrategyUsed(sess),
		Summary:       summary,
		Confidence:    sess.Confidence,
		Timestamp:     now,
		FailureReason: sess.StopReason,
		ErrorCount:    stats.Failures,
	})

	if s.deps.Events != nil {
		_ = s.deps.Events.Append(eventlog.Record{
			SessionID: sess.ID,
			Actor:     eventlog.ActorAutonomous,
			Act:       eventlog.ActSessionTerminal,
			Iteration: sess.Iteration,
			Payload:   map[string]any{"outcome": string(sess.Outcome), "stop_reason": sess.StopReason},
			At:        now,
		})
	}
}
