package taskgen

import (
	"testing"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoard(cfg Config) *Board {
	b := New(cfg, nil, nil)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }
	return b
}

func TestGenerateAutoApprovesTrustedHighConfidence(t *testing.T) {
	b := newTestBoard(Config{AutoApproveEnabled: true, MinConfidence: 0.9, TrustedAnalyzers: []string{"lint-bot"}})

	card := b.Generate(domain.TaskCard{ID: "t1", Analyzer: "lint-bot", Confidence: 0.95})

	assert.Equal(t, domain.TaskCardApproved, card.Status)
	assert.True(t, card.AutoApproved)
}

func TestGenerateDoesNotAutoApproveUntrustedAnalyzer(t *testing.T) {
	b := newTestBoard(Config{AutoApproveEnabled: true, MinConfidence: 0.9, TrustedAnalyzers: []string{"lint-bot"}})

	card := b.Generate(domain.TaskCard{ID: "t2", Analyzer: "unknown-bot", Confidence: 0.99})

	assert.Equal(t, domain.TaskCardGenerated, card.Status)
	assert.False(t, card.AutoApproved)
}

func TestGenerateDoesNotAutoApproveBelowConfidence(t *testing.T) {
	b := newTestBoard(Config{AutoApproveEnabled: true, MinConfidence: 0.9, TrustedAnalyzers: []string{"lint-bot"}})

	card := b.Generate(domain.TaskCard{ID: "t3", Analyzer: "lint-bot", Confidence: 0.5})

	assert.Equal(t, domain.TaskCardGenerated, card.Status)
	assert.False(t, card.AutoApproved)
}

func TestGenerateDoesNotAutoApproveWhenDisabled(t *testing.T) {
	b := newTestBoard(Config{AutoApproveEnabled: false, MinConfidence: 0.9, TrustedAnalyzers: []string{"lint-bot"}})

	card := b.Generate(domain.TaskCard{ID: "t4", Analyzer: "lint-bot", Confidence: 0.99})

	assert.Equal(t, domain.TaskCardGenerated, card.Status)
}

func TestBatchApproveRejectsOversizedBatch(t *testing.T) {
	b := newTestBoard(Config{BatchMax: 2})
	b.Generate(domain.TaskCard{ID: "a"})
	b.Generate(domain.TaskCard{ID: "b"})
	b.Generate(domain.TaskCard{ID: "c"})

	_, err := b.BatchApprove([]string{"a", "b", "c"})

	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestBatchApproveStopsAtFirstUnknownID(t *testing.T) {
	b := newTestBoard(Config{BatchMax: 50})
	b.Generate(domain.TaskCard{ID: "a"})

	done, err := b.BatchApprove([]string{"a", "missing"})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"a"}, done)
	card, ok := b.Get("a")
	require.True(t, ok)
	assert.Equal(t, domain.TaskCardApproved, card.Status)
}

func TestActionableRequiresAllPrerequisitesCompleted(t *testing.T) {
	b := newTestBoard(Config{})
	b.Generate(domain.TaskCard{ID: "dep1"})
	b.Generate(domain.TaskCard{ID: "dep2"})
	card := domain.TaskCard{ID: "main", Prerequisites: []string{"dep1", "dep2"}}

	assert.False(t, b.Actionable(card))

	require.NoError(t, b.Approve("dep1"))
	require.NoError(t, b.Complete("dep1"))
	assert.False(t, b.Actionable(card))

	require.NoError(t, b.Approve("dep2"))
	require.NoError(t, b.Complete("dep2"))
	assert.True(t, b.Actionable(card))
}

func TestActionableTreatsUnknownPrerequisiteAsIncomplete(t *testing.T) {
	b := newTestBoard(Config{})
	card := domain.TaskCard{ID: "main", Prerequisites: []string{"never-generated"}}
	assert.False(t, b.Actionable(card))
}

func TestFunnelCountsAndHealthScore(t *testing.T) {
	b := New(Config{}, nil, nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return base }

	b.Generate(domain.TaskCard{ID: "1", Analyzer: "a"})
	b.Generate(domain.TaskCard{ID: "2", Analyzer: "a"})
	require.NoError(t, b.View("1"))
	require.NoError(t, b.Approve("1"))
	require.NoError(t, b.Complete("1"))

	counts := b.FunnelCounts(time.Hour)
	assert.Equal(t, 2, counts.Generated)
	assert.Equal(t, 1, counts.Viewed)
	assert.Equal(t, 1, counts.Approved)
	assert.Equal(t, 1, counts.Completed)

	// 0.3*(1/2) + 0.3*(1/2) + 0.4*(1/2) = 0.5
	assert.InDelta(t, 0.5, counts.HealthScore(), 1e-9)
}

func TestFunnelCountsExcludesEventsOutsideWindow(t *testing.T) {
	b := New(Config{}, nil, nil)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return old }
	b.Generate(domain.TaskCard{ID: "old", Analyzer: "a"})

	recent := old.Add(2 * time.Hour)
	b.now = func() time.Time { return recent }
	b.Generate(domain.TaskCard{ID: "new", Analyzer: "a"})

	counts := b.FunnelCounts(time.Hour)
	assert.Equal(t, 1, counts.Generated)
}

func TestViewIsNoOpOnceCardHasAdvanced(t *testing.T) {
	b := newTestBoard(Config{})
	b.Generate(domain.TaskCard{ID: "1"})
	require.NoError(t, b.Approve("1"))

	require.NoError(t, b.View("1"))

	card, _ := b.Get("1")
	assert.Equal(t, domain.TaskCardApproved, card.Status)
}
