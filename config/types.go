package config

import (
	"fmt"
	"time"
)

// Config is the single entry point for agentcore's configuration,
// grounded on hector's config.Config: one struct per concern, each with
// its own Validate/SetDefaults, composed under one top-level type.
type Config struct {
	Version   string `yaml:"version,omitempty"`
	Workspace string `yaml:"workspace,omitempty"`

	MaxIterations int `yaml:"max_iterations,omitempty"`

	Scheduler   SchedulerConfig      `yaml:"scheduler,omitempty"`
	Checkpoints CheckpointThresholds `yaml:"checkpoints,omitempty"`
	Planning    PlanningConfig       `yaml:"planning,omitempty"`
	Feedback    FeedbackConfig       `yaml:"feedback,omitempty"`
	TaskGen     TaskGenConfig        `yaml:"taskgen,omitempty"`
	Memory      MemoryConfig         `yaml:"memory,omitempty"`
}

var _ section = (*Config)(nil)

// Validate checks every section in turn, matching hector's Config.Validate
// fan-out to each provider/agent's own Validate.
func (c *Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be >= 0, got %d", c.MaxIterations)
	}
	sections := map[string]section{
		"scheduler":   &c.Scheduler,
		"checkpoints": &c.Checkpoints,
		"planning":    &c.Planning,
		"feedback":    &c.Feedback,
		"taskgen":     &c.TaskGen,
		"memory":      &c.Memory,
	}
	for name, s := range sections {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// SetDefaults fills every zero-valued field across all sections.
func (c *Config) SetDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = 50
	}
	c.Scheduler.SetDefaults()
	c.Checkpoints.SetDefaults()
	c.Planning.SetDefaults()
	c.Feedback.SetDefaults()
	c.TaskGen.SetDefaults()
	c.Memory.SetDefaults()
}

// SchedulerConfig mirrors scheduler.Config's tunables so the wiring layer
// can build one straight from decoded YAML.
type SchedulerConfig struct {
	DirectPlanThreshold         float64       `yaml:"direct_plan_threshold,omitempty"`
	RecoveryConfidenceThreshold float64       `yaml:"recovery_confidence_threshold,omitempty"`
	StuckThreshold              int           `yaml:"stuck_threshold,omitempty"`
	CheckpointTTL               time.Duration `yaml:"checkpoint_ttl,omitempty"`
	UseAlternativePlanner       bool          `yaml:"use_alternative_planner"`
}

var _ section = (*SchedulerConfig)(nil)

func (c *SchedulerConfig) Validate() error {
	if c.DirectPlanThreshold < 0 || c.DirectPlanThreshold > 1 {
		return fmt.Errorf("direct_plan_threshold must be in [0,1], got %v", c.DirectPlanThreshold)
	}
	if c.RecoveryConfidenceThreshold < 0 || c.RecoveryConfidenceThreshold > 1 {
		return fmt.Errorf("recovery_confidence_threshold must be in [0,1], got %v", c.RecoveryConfidenceThreshold)
	}
	if c.StuckThreshold <= 0 {
		return fmt.Errorf("stuck_threshold must be > 0, got %d", c.StuckThreshold)
	}
	return nil
}

func (c *SchedulerConfig) SetDefaults() {
	if c.DirectPlanThreshold == 0 {
		c.DirectPlanThreshold = 0.70
	}
	if c.RecoveryConfidenceThreshold == 0 {
		c.RecoveryConfidenceThreshold = 0.6
	}
	if c.StuckThreshold == 0 {
		c.StuckThreshold = 5
	}
	if c.CheckpointTTL == 0 {
		c.CheckpointTTL = 24 * time.Hour
	}
	// UseAlternativePlanner's zero value (false) is not a "use the
	// default" marker like the numeric fields, since false is itself a
	// valid, distinguishable configuration. Callers that want the
	// alternative planner on by default construct SchedulerConfig via
	// DefaultSchedulerConfig rather than a decoded zero value.
}

// DefaultSchedulerConfig returns scheduler's spec-derived defaults,
// including UseAlternativePlanner=true, which SetDefaults cannot fill in
// since its zero value is meaningful.
func DefaultSchedulerConfig() SchedulerConfig {
	c := SchedulerConfig{UseAlternativePlanner: true}
	c.SetDefaults()
	return c
}

// CheckpointThresholds are spec.md §6's per-decision-type confidence
// floors. domain.DecisionType.DefaultThreshold carries the same numbers
// as compiled-in constants; builder.Build passes this block to the
// scheduler as its checkpoint thresholds, so loaded values take the place
// of those constants when checkpoints are triggered.
type CheckpointThresholds struct {
	Plan      float64 `yaml:"plan,omitempty"`
	Strategy  float64 `yaml:"strategy,omitempty"`
	Parameter float64 `yaml:"parameter,omitempty"`
	Execution float64 `yaml:"execution,omitempty"`
}

var _ section = (*CheckpointThresholds)(nil)

func (c *CheckpointThresholds) Validate() error {
	for name, v := range map[string]float64{"plan": c.Plan, "strategy": c.Strategy, "parameter": c.Parameter, "execution": c.Execution} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s threshold must be in [0,1], got %v", name, v)
		}
	}
	return nil
}

func (c *CheckpointThresholds) SetDefaults() {
	if c.Plan == 0 {
		c.Plan = 0.70
	}
	if c.Strategy == 0 {
		c.Strategy = 0.70
	}
	if c.Parameter == 0 {
		c.Parameter = 0.75
	}
	if c.Execution == 0 {
		c.Execution = 0.90
	}
}

// PlanningConfig holds the Task Planner's LLM-call budget and cache
// settings. It is decoded, defaulted and validated, but builder.Build does
// not pass it on: the planner's time budget and cache TTL are constants in
// package planner, and fallback and caching are always on.
type PlanningConfig struct {
	TimeoutMS       int  `yaml:"timeout_ms,omitempty"`
	FallbackEnabled bool `yaml:"fallback_enabled"`
	CacheEnabled    bool `yaml:"cache_enabled"`
	CacheTTLSeconds int  `yaml:"cache_ttl_seconds,omitempty"`
}

var _ section = (*PlanningConfig)(nil)

func (c *PlanningConfig) Validate() error {
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be > 0, got %d", c.TimeoutMS)
	}
	return nil
}

func (c *PlanningConfig) SetDefaults() {
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 3000
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 604800
	}
}

// FeedbackConfig bounds checkpoint.FeedbackStore.
type FeedbackConfig struct {
	MaxEntries    int  `yaml:"max_entries,omitempty"`
	RequireRating bool `yaml:"require_rating"`
}

var _ section = (*FeedbackConfig)(nil)

func (c *FeedbackConfig) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max_entries must be > 0, got %d", c.MaxEntries)
	}
	return nil
}

func (c *FeedbackConfig) SetDefaults() {
	if c.MaxEntries == 0 {
		c.MaxEntries = 5000
	}
}

// TaskGenConfig decodes directly into taskgen.Config; kept as a separate
// type here (rather than importing taskgen) so package config has no
// dependency on the domain-stack packages it configures.
type TaskGenConfig struct {
	AutoApproveEnabled bool     `yaml:"auto_approve_enabled"`
	MinConfidence      float64  `yaml:"min_confidence,omitempty"`
	TrustedAnalyzers   []string `yaml:"trusted_analyzers,omitempty"`
	BatchMax           int      `yaml:"batch_max,omitempty"`
}

var _ section = (*TaskGenConfig)(nil)

func (c *TaskGenConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0,1], got %v", c.MinConfidence)
	}
	if c.BatchMax <= 0 {
		return fmt.Errorf("batch_max must be > 0, got %d", c.BatchMax)
	}
	return nil
}

func (c *TaskGenConfig) SetDefaults() {
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.9
	}
	if c.BatchMax == 0 {
		c.BatchMax = 50
	}
}

// MemoryConfig holds the episodic store's embedding settings. It is
// decoded, defaulted and validated, but builder.Build does not pass it on:
// the embedding dimension and re-embed threshold are constants in package
// memory.
type MemoryConfig struct {
	EmbeddingDimension int `yaml:"embedding_dimension,omitempty"`
	ReembedInterval    int `yaml:"reembed_interval,omitempty"`
}

var _ section = (*MemoryConfig)(nil)

func (c *MemoryConfig) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be > 0, got %d", c.EmbeddingDimension)
	}
	if c.ReembedInterval <= 0 {
		return fmt.Errorf("reembed_interval must be > 0, got %d", c.ReembedInterval)
	}
	return nil
}

func (c *MemoryConfig) SetDefaults() {
	if c.EmbeddingDimension == 0 {
		c.EmbeddingDimension = 384
	}
	if c.ReembedInterval == 0 {
		c.ReembedInterval = 10
	}
}
