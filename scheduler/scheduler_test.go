package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/forgekeeper/agentcore/llms"
	"github.com/forgekeeper/agentcore/progress"
	"github.com/forgekeeper/agentcore/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	queue []func() (llms.Response, error)
	calls int
}

func (f *fakeLLM) Chat(ctx context.Context, msgs []llms.Message, opts llms.Options) (llms.Response, error) {
	i := f.calls
	f.calls++
	if len(f.queue) == 0 {
		return llms.Response{}, errors.New("fakeLLM: no responses queued")
	}
	if i >= len(f.queue) {
		i = len(f.queue) - 1
	}
	return f.queue[i]()
}

func (f *fakeLLM) ChatStreaming(ctx context.Context, msgs []llms.Message, opts llms.Options) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

func reflectionResponse(assessment domain.Assessment, progress, confidence float64, nextAction string) func() (llms.Response, error) {
	return func() (llms.Response, error) {
		b, _ := json.Marshal(domain.Reflection{
			Assessment: assessment, Progress: progress, Confidence: confidence,
			NextAction: nextAction, Reasoning: "test reflection",
		})
		return llms.Response{JSON: string(b)}, nil
	}
}

func errorResponse() func() (llms.Response, error) {
	return func() (llms.Response, error) { return llms.Response{}, errors.New("llm unavailable") }
}

type fakeTools struct {
	results map[string]tools.Result
	calls   []string
}

func (f *fakeTools) Execute(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	f.calls = append(f.calls, inv.ToolName)
	if r, ok := f.results[inv.ToolName]; ok {
		return r, nil
	}
	return tools.Result{OK: true, Output: "ok"}, nil
}

func (f *fakeTools) ListTools() []tools.Info {
	return []tools.Info{{Name: "run_bash"}, {Name: "write_file"}}
}

func (f *fakeTools) GetTool(name string) (tools.Tool, bool) { return nil, false }

type fakeCheckpointer struct {
	selectID string
	err      error
}

func (f *fakeCheckpointer) Resolve(ctx context.Context, cp domain.Checkpoint) (domain.CheckpointResolution, error) {
	if f.err != nil {
		return domain.CheckpointResolution{}, f.err
	}
	id := f.selectID
	if id == "" && len(cp.Options) > 0 {
		id = cp.Options[0].ID
	}
	return domain.CheckpointResolution{SelectedOptionID: id, UserID: "tester", ResolvedAt: time.Now()}, nil
}

func newTestScheduler(llm llms.Client, tl tools.Executor) *Scheduler {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(Config{}, Deps{
		LLM:   llm,
		Tools: tl,
		Now:   func() time.Time { return fixed },
		NewID: func() string { return "fixed-id" },
	})
}

func TestRunCompletesOnFirstReflectionComplete(t *testing.T) {
	llm := &fakeLLM{queue: []func() (llms.Response, error){
		reflectionResponse(domain.AssessComplete, 1.0, 0.95, ""),
	}}
	sched := newTestScheduler(llm, &fakeTools{})
	sess := &domain.Session{ID: "s1", Task: "finish the thing", TaskType: domain.TaskOther, MaxIter: 5}

	err := sched.Run(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCompleted, sess.Outcome)
	assert.InDelta(t, 1.0, sess.Progress, 1e-9)
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	llm := &fakeLLM{queue: []func() (llms.Response, error){
		reflectionResponse(domain.AssessContinue, 0.3, 0.8, "run step one"),
		errorResponse(), // task planner's LLM call falls back to heuristic plan
		reflectionResponse(domain.AssessContinue, 0.5, 0.8, "run step two"),
		errorResponse(),
	}}
	sched := newTestScheduler(llm, &fakeTools{})
	sess := &domain.Session{ID: "s2", Task: "do a thing", TaskType: domain.TaskOther, MaxIter: 2}

	err := sched.Run(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeStopped, sess.Outcome)
	assert.Equal(t, "max_iterations_reached", sess.StopReason)
	assert.Equal(t, 2, sess.Iteration)
	assert.Len(t, sess.ActionHistory, 2)
}

func TestRunNeedsClarificationIsTerminal(t *testing.T) {
	llm := &fakeLLM{queue: []func() (llms.Response, error){
		func() (llms.Response, error) {
			b, _ := json.Marshal(domain.Reflection{
				Assessment: domain.AssessNeedsClarification,
				Questions:  []string{"which directory should I use?"},
			})
			return llms.Response{JSON: string(b)}, nil
		},
	}}
	sched := newTestScheduler(llm, &fakeTools{})
	sess := &domain.Session{ID: "s3", Task: "ambiguous task", TaskType: domain.TaskOther, MaxIter: 5}

	err := sched.Run(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNeedsClarification, sess.Outcome)
	assert.Equal(t, []string{"which directory should I use?"}, sess.ClarificationQuestions)
}

func TestRunReturnsLLMUnavailableWithNoCachedReflection(t *testing.T) {
	llm := &fakeLLM{queue: []func() (llms.Response, error){errorResponse()}}
	sched := newTestScheduler(llm, &fakeTools{})
	sess := &domain.Session{ID: "s4", Task: "task", TaskType: domain.TaskOther, MaxIter: 5}

	err := sched.Run(context.Background(), sess)

	assert.ErrorIs(t, err, ErrLLMUnavailable)
	assert.Equal(t, domain.OutcomeStopped, sess.Outcome)
	assert.Equal(t, "llm_unavailable", sess.StopReason)
}

func TestRunFallsBackToCachedReflectionOnLLMFailure(t *testing.T) {
	llm := &fakeLLM{queue: []func() (llms.Response, error){
		reflectionResponse(domain.AssessContinue, 0.2, 0.3, "first action"),
		errorResponse(),
		errorResponse(), // iteration 1's reflection call fails; cached reflection is reused
	}}
	sched := newTestScheduler(llm, &fakeTools{})
	sess := &domain.Session{ID: "s5", Task: "task", TaskType: domain.TaskOther, MaxIter: 2}

	err := sched.Run(context.Background(), sess)

	require.NoError(t, err)
	require.NotEmpty(t, sess.RecentReflections)
	last := sess.RecentReflections[len(sess.RecentReflections)-1]
	assert.True(t, last.Degraded)
}

func TestRunAbortsOnCancelledContext(t *testing.T) {
	sched := newTestScheduler(&fakeLLM{}, &fakeTools{})
	sess := &domain.Session{ID: "s6", Task: "task", TaskType: domain.TaskOther, MaxIter: 5}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sched.Run(ctx, sess)

	assert.ErrorIs(t, err, ErrSessionAborted)
	assert.Equal(t, domain.OutcomeStopped, sess.Outcome)
	assert.Equal(t, "session_aborted", sess.StopReason)
}

func TestResolveCheckpointHeadlessPicksLowestRiskOption(t *testing.T) {
	sched := newTestScheduler(&fakeLLM{}, &fakeTools{})
	cp := domain.Checkpoint{
		ID: "cp1",
		Options: []domain.CheckpointOption{
			{ID: "low", RiskLevel: domain.LevelLow},
			{ID: "high", RiskLevel: domain.LevelHigh},
		},
	}

	res, opt, err := sched.resolveCheckpoint(context.Background(), cp)

	require.NoError(t, err)
	assert.Equal(t, "low", res.SelectedOptionID)
	assert.Equal(t, "system-auto", res.UserID)
	require.NotNil(t, opt)
	assert.Equal(t, "low", opt.ID)
}

func TestResolveCheckpointUsesWiredCheckpointer(t *testing.T) {
	sched := New(Config{}, Deps{
		LLM: &fakeLLM{}, Tools: &fakeTools{},
		Checkpointer: &fakeCheckpointer{selectID: "high"},
	})
	cp := domain.Checkpoint{
		ID: "cp2",
		Options: []domain.CheckpointOption{
			{ID: "low", RiskLevel: domain.LevelLow},
			{ID: "high", RiskLevel: domain.LevelHigh},
		},
	}

	res, opt, err := sched.resolveCheckpoint(context.Background(), cp)

	require.NoError(t, err)
	assert.Equal(t, "high", res.SelectedOptionID)
	require.NotNil(t, opt)
	assert.Equal(t, "high", opt.ID)
}

func TestExecuteRetriesOnceThenSucceeds(t *testing.T) {
	calls := 0
	tl := &fakeToolsFunc{fn: func(inv tools.Invocation) (tools.Result, error) {
		calls++
		if calls == 1 {
			return tools.Result{OK: false, Error: &domain.ToolError{Tool: inv.ToolName, Message: "transient"}}, nil
		}
		return tools.Result{OK: true, Output: "recovered"}, nil
	}}
	sched := New(Config{}, Deps{LLM: &fakeLLM{}, Tools: tl, Now: time.Now})
	tracker := progress.NewTracker("s", nil)

	res, err := sched.execute(context.Background(), &domain.Session{}, tracker, preparedPlan{
		steps: []domain.PlanStep{{Tool: "run_bash", ErrorHandling: "retry once"}},
	})

	require.NoError(t, err)
	assert.True(t, res.allSucceeded)
	assert.Equal(t, 2, calls)
}

func TestExecuteStopsAtFirstUnretriedFailure(t *testing.T) {
	tl := &fakeTools{results: map[string]tools.Result{
		"run_bash": {OK: false, Error: &domain.ToolError{Tool: "run_bash", Message: "boom"}},
	}}
	sched := New(Config{}, Deps{LLM: &fakeLLM{}, Tools: tl, Now: time.Now})
	tracker := progress.NewTracker("s", nil)

	res, err := sched.execute(context.Background(), &domain.Session{}, tracker, preparedPlan{
		steps: []domain.PlanStep{{Tool: "run_bash"}, {Tool: "write_file"}},
	})

	require.NoError(t, err)
	assert.False(t, res.allSucceeded)
	require.NotNil(t, res.failedStep)
	assert.Equal(t, "run_bash", res.failedStep.Tool)
	assert.Equal(t, []string{"run_bash"}, tl.calls)
}

func TestVerifyDemotesSuccessOnFailingCheckCommand(t *testing.T) {
	tl := &fakeTools{results: map[string]tools.Result{
		"run_bash": {OK: false, Error: &domain.ToolError{Tool: "run_bash", Message: "assertion failed"}},
	}}
	sched := New(Config{}, Deps{LLM: &fakeLLM{}, Tools: tl, Now: time.Now})
	res := execResult{allSucceeded: true}

	sched.verify(context.Background(), preparedPlan{verification: &domain.Verification{CheckCommand: "test -f out.txt"}}, &res)

	assert.False(t, res.allSucceeded)
	require.NotNil(t, res.failure)
}

func TestDiagnoseAndRecoverAppliesRepeatedStreakDecay(t *testing.T) {
	sched := New(Config{}, Deps{LLM: nil, Tools: &fakeTools{}, Now: time.Now})
	sess := &domain.Session{ID: "s"}
	failure := execResult{allSucceeded: false, failure: &domain.ToolError{Tool: "run_bash", Name: "ETIMEDOUT", Message: "timed out"}}

	var last *domain.RecoveryPlan
	for i := 0; i < 3; i++ {
		sess.Iteration = i
		last = sched.diagnoseAndRecover(context.Background(), sess, failure)
		require.NotNil(t, last)
	}

	assert.Equal(t, 3, sess.RecoveryStreak.Count)
	assert.Equal(t, "timeout", sess.RecoveryStreak.Category)
	assert.Less(t, last.Primary.Confidence, 0.5)
}

func TestCheckStuckEscalatesAfterTwoConsecutiveStuckIterations(t *testing.T) {
	sched := New(Config{StuckThreshold: 1}, Deps{LLM: &fakeLLM{}, Tools: &fakeTools{}, Now: time.Now})
	tracker := progress.NewTracker("s", nil, progress.WithStuckThreshold(1))
	tracker.Heartbeat(0, domain.PhaseReflect)

	sess := &domain.Session{Outcome: domain.OutcomeRunning}
	sched.checkStuck(sess, tracker)
	assert.Equal(t, 1, sess.StuckCount)
	assert.Equal(t, domain.OutcomeRunning, sess.Outcome)

	tracker.Heartbeat(1, domain.PhaseReflect)
	sched.checkStuck(sess, tracker)
	assert.Equal(t, domain.OutcomeStuck, sess.Outcome)
	assert.Equal(t, "stuck_no_progress", sess.StopReason)
}

func TestToolsMatchPlanDetectsMismatch(t *testing.T) {
	steps := []domain.PlanStep{{Tool: "run_bash"}, {Tool: "write_file"}}
	assert.True(t, toolsMatchPlan(steps, []string{"run_bash"}))
	assert.False(t, toolsMatchPlan(steps, []string{"run_bash", "http_fetch"}))
}

func TestLastThreeSimilarDetectsDuplicateProposals(t *testing.T) {
	sess := &domain.Session{ActionHistory: []domain.ActionHistoryEntry{
		{NextAction: "Run the tests", ActualSuccess: false},
		{NextAction: "run the tests", ActualSuccess: false},
		{NextAction: "RUN THE TESTS", ActualSuccess: false},
	}}
	assert.True(t, lastThreeSimilar(sess))

	sess.ActionHistory[2].ActualSuccess = true
	assert.False(t, lastThreeSimilar(sess))
}

func TestEventsAreAppendedDuringRun(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.Open(dir + "/events.jsonl")
	require.NoError(t, err)
	defer log.Close()

	llm := &fakeLLM{queue: []func() (llms.Response, error){
		reflectionResponse(domain.AssessComplete, 1.0, 0.9, ""),
	}}
	sched := New(Config{}, Deps{LLM: llm, Tools: &fakeTools{}, Events: log, Now: time.Now, NewID: func() string { return "id" }})
	sess := &domain.Session{ID: "s7", Task: "task", TaskType: domain.TaskOther, MaxIter: 3}

	require.NoError(t, sched.Run(context.Background(), sess))

	records, err := eventlog.Pull(dir+"/events.jsonl", "s7")
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, eventlog.ActIterationBegin, records[0].Act)
}

// fakeToolsFunc lets a test drive tools.Executor.Execute by closure instead
// of a static per-name result table, for sequencing-sensitive assertions.
type fakeToolsFunc struct {
	fn func(tools.Invocation) (tools.Result, error)
}

func (f *fakeToolsFunc) Execute(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	return f.fn(inv)
}
func (f *fakeToolsFunc) ListTools() []tools.Info             { return []tools.Info{{Name: "run_bash"}} }
func (f *fakeToolsFunc) GetTool(name string) (tools.Tool, bool) { return nil, false }
