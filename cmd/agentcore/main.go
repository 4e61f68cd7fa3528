// Command agentcore runs one autonomous task to completion, or validates
// a configuration file, grounded on hector's cmd/hector Kong-based CLI
// (cmd/hector/main.go's CLI struct and per-command Run methods) scaled
// down to this module's single-workspace scheduler.
//
// Usage:
//
//	agentcore run --workspace . --task "add unit tests for parser" --config agentcore.yaml
//	agentcore validate --config agentcore.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/forgekeeper/agentcore/builder"
	"github.com/forgekeeper/agentcore/config"
	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/llms"
)

// CLI defines agentcore's command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Run one task to completion."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// RunCmd drives one Session through the scheduler to a terminal outcome.
type RunCmd struct {
	Workspace string `short:"w" help:"Workspace root directory." default:"."`
	Config    string `short:"c" help:"Path to config file." type:"path"`
	Task      string `help:"Task description." required:""`
	TaskType  string `name:"task-type" help:"One of code_generation, analysis, debugging, refactoring, testing, documentation, other." default:"other"`
	MaxIter   int    `name:"max-iterations" help:"Overrides config max_iterations when > 0."`
	Watch     bool   `help:"Hot-reload the config file while the task runs."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	_ = config.LoadEnvFiles()

	cfg, err := loadOrDefault(c.Config)
	if err != nil {
		return err
	}
	if c.MaxIter > 0 {
		cfg.MaxIterations = c.MaxIter
	}

	llm := &llms.StaticClient{Name: "static"}

	b, err := builder.Build(ctx, c.Workspace, cfg, llm)
	if err != nil {
		return fmt.Errorf("build bundle: %w", err)
	}
	defer b.Close()

	if c.Watch && c.Config != "" {
		if err := b.WatchConfig(ctx, c.Config); err != nil {
			slog.Error("config watch disabled", "error", err)
		}
	}

	now := time.Now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Task:      c.Task,
		TaskType:  domain.TaskType(c.TaskType),
		MaxIter:   cfg.MaxIterations,
		Outcome:   domain.OutcomeRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	slog.Info("starting session", "id", sess.ID, "task", sess.Task, "max_iterations", sess.MaxIter)

	runErr := b.Scheduler.Run(ctx, sess)

	slog.Info("session finished", "id", sess.ID, "outcome", sess.Outcome, "stop_reason", sess.StopReason, "iterations", sess.Iteration)

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	if sess.Outcome != domain.OutcomeCompleted {
		return fmt.Errorf("session ended in %s: %s", sess.Outcome, sess.StopReason)
	}
	return nil
}

// ValidateCmd checks a config file parses and validates without running
// anything.
type ValidateCmd struct {
	Config string `short:"c" help:"Path to config file." required:"" type:"path"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	fmt.Printf("config valid: max_iterations=%d workspace=%s\n", cfg.MaxIterations, cfg.Workspace)
	return nil
}

func loadOrDefault(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	return config.Load(path)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("Autonomous agent iteration core"),
		kong.UsageOnError(),
	)

	level := slog.LevelInfo
	switch cli.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
