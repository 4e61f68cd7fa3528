// Package builder wires one Scheduler bundle per workspace from a loaded
// config.Config: the tool registry, memory and checkpoint stores, the
// event log, the task-generation board, and the scheduler itself. It plays
// the role hector's cmd/hector wiring (session/runtime construction in
// main.go's ServeCmd.Run) plays for a whole A2A server, scaled down to one
// workspace directory and one scheduler.
package builder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/forgekeeper/agentcore/checkpoint"
	"github.com/forgekeeper/agentcore/config"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/forgekeeper/agentcore/llms"
	"github.com/forgekeeper/agentcore/memory"
	"github.com/forgekeeper/agentcore/metacog"
	"github.com/forgekeeper/agentcore/planner"
	"github.com/forgekeeper/agentcore/scheduler"
	"github.com/forgekeeper/agentcore/taskgen"
	"github.com/forgekeeper/agentcore/tools"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// defaultToolDefinitions enables every built-in tool against the
// workspace, matching hector's --tools=all zero-config shorthand.
func defaultToolDefinitions() []tools.Definition {
	return []tools.Definition{
		{Name: "run_bash", Type: "bash", Enabled: true},
		{Name: "read_file", Type: "read_file", Enabled: true},
		{Name: "write_file", Type: "write_file", Enabled: true},
		{Name: "read_dir", Type: "read_dir", Enabled: true},
		{Name: "git", Type: "git", Enabled: true},
		{Name: "http_fetch", Type: "http_fetch", Enabled: true},
	}
}

// Bundle holds every collaborator a Scheduler needs, plus the handles
// callers must Close on shutdown.
type Bundle struct {
	Config      *config.Config
	Tools       *tools.Registry
	Memory      *memory.Store
	Checkpoints *checkpoint.Store
	Events      *eventlog.Log
	TaskGen     *taskgen.Board
	PlanCache   *planner.Cache
	Scheduler   *scheduler.Scheduler

	watcher *config.Watcher
	tracer  *sdktrace.TracerProvider
}

// Option customizes Build beyond config.Config's fields.
type Option func(*options)

type options struct {
	toolDefs     []tools.Definition
	checkpointer scheduler.CheckpointResolver
	registerer   prometheus.Registerer
}

// WithToolDefinitions overrides the default full built-in tool set.
func WithToolDefinitions(defs []tools.Definition) Option {
	return func(o *options) { o.toolDefs = defs }
}

// WithCheckpointResolver wires a human-facing (or any non-headless)
// checkpoint resolver. Omitted, the scheduler runs headless.
func WithCheckpointResolver(r scheduler.CheckpointResolver) Option {
	return func(o *options) { o.checkpointer = r }
}

// WithRegisterer overrides the Prometheus registerer every metrics-backed
// collaborator registers into. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Build opens every substore rooted under workspaceDir/.agentcore and
// assembles a Bundle ready to drive sessions. llm must not be nil; network-
// backed providers are outside this module's scope (see llms.StaticClient),
// so callers supply whichever llms.Client implementation fits their
// deployment, and Build wraps it in a retry decorator.
func Build(ctx context.Context, workspaceDir string, cfg *config.Config, llm llms.Client, opts ...Option) (*Bundle, error) {
	if llm == nil {
		return nil, fmt.Errorf("builder: llm client is required")
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("builder: invalid config: %w", err)
	}

	o := options{toolDefs: defaultToolDefinitions(), registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	tp := setupTracing(nil)
	stateDir := filepath.Join(workspaceDir, ".agentcore")

	ws, err := tools.NewWorkspace(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("builder: workspace: %w", err)
	}
	toolRegistry, err := tools.BuildFromDefinitions(o.toolDefs, ws)
	if err != nil {
		return nil, fmt.Errorf("builder: tools: %w", err)
	}

	memStore, err := memory.Open(ctx, filepath.Join(stateDir, "memory"))
	if err != nil {
		return nil, fmt.Errorf("builder: memory: %w", err)
	}

	cpStore, err := checkpoint.Open(filepath.Join(stateDir, "checkpoints"), checkpoint.Options{
		MaxFeedbackEntries: cfg.Feedback.MaxEntries,
	})
	if err != nil {
		memStore.Close()
		return nil, fmt.Errorf("builder: checkpoints: %w", err)
	}

	events, err := eventlog.Open(filepath.Join(stateDir, "events.jsonl"))
	if err != nil {
		memStore.Close()
		cpStore.Close()
		return nil, fmt.Errorf("builder: events: %w", err)
	}

	board := taskgen.New(taskgen.Config{
		AutoApproveEnabled: cfg.TaskGen.AutoApproveEnabled,
		MinConfidence:      cfg.TaskGen.MinConfidence,
		TrustedAnalyzers:   cfg.TaskGen.TrustedAnalyzers,
		BatchMax:           cfg.TaskGen.BatchMax,
	}, events, o.registerer)

	planCache := planner.NewCache()

	sched := scheduler.New(scheduler.Config{
		StuckThreshold:              cfg.Scheduler.StuckThreshold,
		DirectPlanThreshold:         cfg.Scheduler.DirectPlanThreshold,
		RecoveryConfidenceThreshold: cfg.Scheduler.RecoveryConfidenceThreshold,
		CheckpointTTL:               cfg.Scheduler.CheckpointTTL,
		UseAlternativePlanner:       cfg.Scheduler.UseAlternativePlanner,
		CheckpointThresholds: metacog.Thresholds{
			Plan:      cfg.Checkpoints.Plan,
			Strategy:  cfg.Checkpoints.Strategy,
			Parameter: cfg.Checkpoints.Parameter,
			Execution: cfg.Checkpoints.Execution,
		},
	}, scheduler.Deps{
		LLM:          llms.NewRetrying(llm, 2),
		Tools:        toolRegistry,
		Memory:       memStore,
		Checkpoints:  cpStore,
		Events:       events,
		PlanCache:    planCache,
		Checkpointer: o.checkpointer,
		Registry:     o.registerer,
	})

	return &Bundle{
		Config:      cfg,
		Tools:       toolRegistry,
		Memory:      memStore,
		Checkpoints: cpStore,
		Events:      events,
		TaskGen:     board,
		PlanCache:   planCache,
		Scheduler:   sched,
		tracer:      tp,
	}, nil
}

// WatchConfig starts hot-reloading configPath in the background, pushing
// TaskGen changes into b.TaskGen on every reload. The returned error is
// only a setup failure; reload errors are logged, not returned, matching
// config.Watcher's own behavior.
func (b *Bundle) WatchConfig(ctx context.Context, configPath string) error {
	w, err := config.NewWatcher(configPath, func(cfg *config.Config) {
		b.Config = cfg
		b.TaskGen.UpdateConfig(taskgen.Config{
			AutoApproveEnabled: cfg.TaskGen.AutoApproveEnabled,
			MinConfidence:      cfg.TaskGen.MinConfidence,
			TrustedAnalyzers:   cfg.TaskGen.TrustedAnalyzers,
			BatchMax:           cfg.TaskGen.BatchMax,
		})
	})
	if err != nil {
		return fmt.Errorf("builder: config watcher: %w", err)
	}
	b.watcher = w
	go w.Start(ctx)
	return nil
}

// Close releases every substore and stops the config watcher, if started.
// It returns the first error encountered but always attempts every close.
func (b *Bundle) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.watcher != nil {
		record(b.watcher.Close())
	}
	record(shutdownTracing(context.Background(), b.tracer))
	record(b.Events.Close())
	record(b.Checkpoints.Close())
	record(b.Memory.Close())
	return firstErr
}
