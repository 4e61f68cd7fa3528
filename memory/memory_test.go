package memory

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "forgekeeper-memory-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestVectorizerEmbedIsSelfSimilar(t *testing.T) {
	v := NewVectorizer()
	v.Observe("clone the repository and list files")
	vec, _ := v.Embed("clone the repository and list files")
	assert.InDelta(t, 1.0, CosineSimilarity(vec, vec), 1e-6)
}

func TestVectorizerDistinctTextsAreLessSimilarThanIdentical(t *testing.T) {
	v := NewVectorizer()
	v.Observe("clone the repository")
	v.Observe("format the source code with gofmt")

	a, _ := v.Embed("clone the repository")
	b, _ := v.Embed("format the source code with gofmt")
	self, _ := v.Embed("clone the repository")

	assert.Greater(t, CosineSimilarity(a, self), CosineSimilarity(a, b))
}

func TestVectorizerThresholdCrossedAfterEnoughNewTerms(t *testing.T) {
	v := NewVectorizer()
	assert.False(t, v.NewTermThresholdCrossed(reembedThreshold))
	for i := 0; i < reembedThreshold; i++ {
		v.Observe(randomWord(i))
	}
	assert.True(t, v.NewTermThresholdCrossed(reembedThreshold))
	v.MarkReembedded()
	assert.False(t, v.NewTermThresholdCrossed(reembedThreshold))
}

func randomWord(i int) string {
	words := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "india", "juliet", "kilo"}
	return words[i%len(words)]
}

func TestSessionLogWriteThenReadAllRoundTrips(t *testing.T) {
	dir := tempDir(t)
	log, err := OpenSessionLog(dir)
	require.NoError(t, err)
	defer log.Close()

	rec := domain.SessionMemoryRecord{TaskType: domain.TaskCodeGeneration, Success: true, Iterations: 3, Timestamp: time.Now()}
	require.NoError(t, log.Write(rec))

	all, err := log.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.TaskCodeGeneration, all[0].TaskType)
}

func TestEpisodicStoreWriteAndSearchReturnsMatchingTaskType(t *testing.T) {
	dir := tempDir(t)
	ctx := context.Background()
	store, err := OpenEpisodicStore(ctx, dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Write(ctx, domain.Episode{
		ID: "e1", TaskText: "clone the repository and list the README", TaskType: domain.TaskCodeGeneration, Success: true, Timestamp: time.Now(),
	}))
	require.NoError(t, store.Write(ctx, domain.Episode{
		ID: "e2", TaskText: "format source files with a linter", TaskType: domain.TaskRefactoring, Success: true, Timestamp: time.Now(),
	}))

	codeType := domain.TaskCodeGeneration
	results := store.Search(ctx, SearchParams{Query: "clone the repository", TaskType: &codeType, MinScore: 0})
	require.NotEmpty(t, results)
	assert.Equal(t, "e1", results[0].Episode.ID)
}

func TestEpisodicStoreSearchRespectsTopNCeiling(t *testing.T) {
	dir := tempDir(t)
	ctx := context.Background()
	store, err := OpenEpisodicStore(ctx, dir)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 25; i++ {
		require.NoError(t, store.Write(ctx, domain.Episode{ID: randomWord(i) + string(rune('a'+i)), TaskText: "repeat task text", Timestamp: time.Now()}))
	}

	results := store.Search(ctx, SearchParams{Query: "repeat task text", TopN: 100, MinScore: 0})
	assert.LessOrEqual(t, len(results), maxTopN)
}

func TestEpisodicStoreReopenReplaysExistingEpisodes(t *testing.T) {
	dir := tempDir(t)
	ctx := context.Background()
	store, err := OpenEpisodicStore(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, store.Write(ctx, domain.Episode{ID: "e1", TaskText: "persisted episode", Timestamp: time.Now()}))
	require.NoError(t, store.Close())

	reopened, err := OpenEpisodicStore(ctx, dir)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Len(t, reopened.All(), 1)
}

func TestPreferenceStoreInfersConservativeRiskTolerance(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenPreferenceStore(dir)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.RecordDecision("user-1", true, false, false, false))
	}

	profile := store.Profile("user-1")
	assert.Equal(t, domain.RiskConservative, profile.RiskTolerance)
	assert.Equal(t, 10, profile.TotalDecisions)
}

func TestPreferenceStoreBelowMinDecisionsLeavesRiskUnset(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenPreferenceStore(dir)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordDecision("user-2", true, false, false, false))
	}
	profile := store.Profile("user-2")
	assert.Equal(t, domain.RiskTolerance(""), profile.RiskTolerance)
}

func TestPreferenceStoreInfersDeliberateDecisionSpeed(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenPreferenceStore(dir)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordDecision("user-3", false, true, true, false))
	}
	profile := store.Profile("user-3")
	assert.Equal(t, domain.SpeedDeliberate, profile.DecisionSpeed)
}

func TestPreferenceStoreDetectsProactiveFeedbackPattern(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenPreferenceStore(dir)
	require.NoError(t, err)
	defer store.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.RecordDecision("user-4", false, false, false, i < 5))
	}
	profile := store.Profile("user-4")
	found := false
	for _, p := range profile.Patterns {
		if p.Name == "proactive_feedback" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPatternStoreAggregatesOutcomesByCategoryAndStrategy(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenPatternStore(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.RecordOutcome(domain.ErrTimeout, "retry-with-backoff", true, 2, "ex1"))
	require.NoError(t, store.RecordOutcome(domain.ErrTimeout, "retry-with-backoff", true, 4, "ex2"))
	require.NoError(t, store.RecordOutcome(domain.ErrTimeout, "retry-with-backoff", false, 6, ""))

	recs := store.RecordsForCategory(domain.ErrTimeout)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].SuccessCount)
	assert.Equal(t, 1, recs[0].FailureCount)
	assert.InDelta(t, 4.0, recs[0].AvgIterations, 1e-9)
	assert.Len(t, recs[0].Examples, 2)
}

func TestPatternStoreReopenReplaysAggregates(t *testing.T) {
	dir := tempDir(t)
	store, err := OpenPatternStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.RecordOutcome(domain.ErrNetwork, "retry", true, 1, ""))
	require.NoError(t, store.Close())

	reopened, err := OpenPatternStore(dir)
	require.NoError(t, err)
	defer reopened.Close()
	recs := reopened.RecordsForCategory(domain.ErrNetwork)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].SuccessCount)
}

func TestTokenCounterCountsNonEmptyText(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)
	assert.Greater(t, tc.Count("the quick brown fox jumps over the lazy dog"), 0)
}

func TestTokenCounterTruncateToBudgetShrinksLongText(t *testing.T) {
	tc, err := NewTokenCounter()
	require.NoError(t, err)

	long := ""
	for i := 0; i < 2000; i++ {
		long += "word "
	}
	truncated := tc.TruncateToBudget(long, 10)
	assert.LessOrEqual(t, tc.Count(truncated), 10)
}

func TestStoreSummarizeForEpisodeRespectsBudget(t *testing.T) {
	dir := tempDir(t)
	store, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer store.Close()

	summary, tokenCount := store.SummarizeForEpisode("a short completed task summary")
	assert.NotEmpty(t, summary)
	assert.LessOrEqual(t, tokenCount, summaryTokenBudget)
}

func TestStoreEnableChromemBackendAcceleratesSearch(t *testing.T) {
	dir := tempDir(t)
	ctx := context.Background()
	store, err := Open(ctx, dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnableChromemBackend(dir))
	require.NoError(t, store.Episodes.Write(ctx, domain.Episode{
		ID: "e1", TaskText: "clone the repository and inspect files", Timestamp: time.Now(),
	}))

	results := store.Episodes.Search(ctx, SearchParams{Query: "clone the repository", MinScore: 0})
	require.NotEmpty(t, results)
	assert.Equal(t, "e1", results[0].Episode.ID)
}

func TestStoreOpenWiresAllFourSubstores(t *testing.T) {
	dir := tempDir(t)
	store, err := Open(context.Background(), dir)
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store.Sessions)
	assert.NotNil(t, store.Episodes)
	assert.NotNil(t, store.Preferences)
	assert.NotNil(t, store.Patterns)
}
