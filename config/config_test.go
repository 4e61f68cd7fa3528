package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaultsFillsEveryZeroValuedSection(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.Equal(t, ".", cfg.Workspace)
	assert.Equal(t, 50, cfg.MaxIterations)
	assert.Equal(t, 0.70, cfg.Scheduler.DirectPlanThreshold)
	assert.Equal(t, 5, cfg.Scheduler.StuckThreshold)
	assert.Equal(t, 0.70, cfg.Checkpoints.Plan)
	assert.Equal(t, 0.90, cfg.Checkpoints.Execution)
	assert.Equal(t, 3000, cfg.Planning.TimeoutMS)
	assert.Equal(t, 604800, cfg.Planning.CacheTTLSeconds)
	assert.Equal(t, 5000, cfg.Feedback.MaxEntries)
	assert.Equal(t, 0.9, cfg.TaskGen.MinConfidence)
	assert.Equal(t, 50, cfg.TaskGen.BatchMax)
	assert.Equal(t, 384, cfg.Memory.EmbeddingDimension)
	assert.Equal(t, 10, cfg.Memory.ReembedInterval)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	cfg.Scheduler.DirectPlanThreshold = 1.5

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler")
}

func TestValidateRejectsNegativeMaxIterations(t *testing.T) {
	cfg := &Config{MaxIterations: -1}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestDefaultSchedulerConfigEnablesAlternativePlanner(t *testing.T) {
	c := DefaultSchedulerConfig()
	assert.True(t, c.UseAlternativePlanner)
	assert.Equal(t, 0.70, c.DirectPlanThreshold)
}

func TestLoadFromStringDecodesYAMLIntoConfig(t *testing.T) {
	yamlContent := `
workspace: /tmp/work
max_iterations: 25
scheduler:
  direct_plan_threshold: 0.8
taskgen:
  auto_approve_enabled: true
  trusted_analyzers: lint-bot,sec-bot
`
	cfg, err := LoadFromString(yamlContent)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/work", cfg.Workspace)
	assert.Equal(t, 25, cfg.MaxIterations)
	assert.Equal(t, 0.8, cfg.Scheduler.DirectPlanThreshold)
	assert.True(t, cfg.TaskGen.AutoApproveEnabled)
	assert.Equal(t, []string{"lint-bot", "sec-bot"}, cfg.TaskGen.TrustedAnalyzers)
	// defaults still fill fields the YAML left unset
	assert.Equal(t, 50, cfg.TaskGen.BatchMax)
}

func TestLoadFromStringExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("AGENTCORE_WORKSPACE", "/env/work")

	cfg, err := LoadFromString("workspace: ${AGENTCORE_WORKSPACE}\n")

	require.NoError(t, err)
	assert.Equal(t, "/env/work", cfg.Workspace)
}

func TestLoadFromStringAppliesEnvVarDefault(t *testing.T) {
	cfg, err := LoadFromString("workspace: ${AGENTCORE_MISSING_VAR:-/default/work}\n")

	require.NoError(t, err)
	assert.Equal(t, "/default/work", cfg.Workspace)
}

func TestLoadFromStringRejectsInvalidConfig(t *testing.T) {
	_, err := LoadFromString("max_iterations: -5\n")
	require.Error(t, err)
}

func TestLoadReadsFileFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_iterations: 10\n"), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxIterations)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestExpandEnvStringSupportsAllThreeForms(t *testing.T) {
	t.Setenv("FOO", "bar")

	assert.Equal(t, "bar", expandEnvString("$FOO"))
	assert.Equal(t, "bar", expandEnvString("${FOO}"))
	assert.Equal(t, "bar", expandEnvString("${FOO:-baz}"))
	assert.Equal(t, "baz", expandEnvString("${MISSING_VAR_XYZ:-baz}"))
	assert.Equal(t, "no vars here", expandEnvString("no vars here"))
}

func TestLoadEnvFilesToleratesMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	assert.NoError(t, LoadEnvFiles())
}
