package builder

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgekeeper/agentcore/config"
	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/llms"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeReflectionResponse() llms.Response {
	b, _ := json.Marshal(domain.Reflection{
		Assessment: domain.AssessComplete, Progress: 1.0, Confidence: 0.95,
		Reasoning: "done",
	})
	return llms.Response{JSON: string(b)}
}

func TestBuildCreatesStateDirectoriesAndBundle(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	llm := &llms.StaticClient{Name: "test", Responses: []llms.Response{completeReflectionResponse()}}

	b, err := Build(context.Background(), dir, cfg, llm)
	require.NoError(t, err)
	defer b.Close()

	assert.DirExists(t, filepath.Join(dir, ".agentcore", "memory"))
	assert.DirExists(t, filepath.Join(dir, ".agentcore", "checkpoints"))
	assert.FileExists(t, filepath.Join(dir, ".agentcore", "events.jsonl"))
	assert.NotNil(t, b.Scheduler)
	assert.NotNil(t, b.TaskGen)
}

func TestBuildRejectsNilLLM(t *testing.T) {
	dir := t.TempDir()
	_, err := Build(context.Background(), dir, &config.Config{}, nil)
	require.Error(t, err)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{MaxIterations: -1}
	llm := &llms.StaticClient{Name: "test"}
	_, err := Build(context.Background(), dir, cfg, llm)
	require.Error(t, err)
}

func TestBuiltSchedulerRunsSessionToCompletion(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	llm := &llms.StaticClient{Name: "test", Responses: []llms.Response{completeReflectionResponse()}}

	b, err := Build(context.Background(), dir, cfg, llm)
	require.NoError(t, err)
	defer b.Close()

	sess := &domain.Session{ID: uuid.NewString(), Task: "say hi", TaskType: domain.TaskOther, MaxIter: 10, Outcome: domain.OutcomeRunning}
	err = b.Scheduler.Run(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, sess.Outcome)
}

func TestWatchConfigPushesReloadIntoTaskGenBoard(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	llm := &llms.StaticClient{Name: "test"}

	b, err := Build(context.Background(), dir, cfg, llm)
	require.NoError(t, err)
	defer b.Close()

	configPath := filepath.Join(dir, "agentcore.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("taskgen:\n  auto_approve_enabled: false\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, b.WatchConfig(ctx, configPath))

	// WatchConfig only needs to have set up without error; the debounced
	// reload path itself is not exercised here.
	assert.NotNil(t, b.TaskGen)
}
