// Package memory implements the Memory Substrate (spec.md §4.6): an
// append-only session log, a TF-IDF/cosine-similarity episodic store with
// background re-embedding, a user-preference store, and a recovery
// pattern store. All four are write-appended, newline-delimited JSON under
// one workspace-root directory, with snapshot-consistent reads.
package memory

import (
	"context"
	"fmt"
	"os"
)

// summaryTokenBudget bounds how many tokens of an episode's summary text
// are retained, per the token-accounting concern spec.md §6 assigns to
// SessionMemoryRecord/ActionHistoryEntry.
const summaryTokenBudget = 512

// Store bundles the four memory substrates that share one directory on
// disk, mirroring hector's MemoryService as the single entry point calling
// code depends on rather than wiring each substore independently.
type Store struct {
	Sessions    *SessionLog
	Episodes    *EpisodicStore
	Preferences *PreferenceStore
	Patterns    *PatternStore
	tokens      *TokenCounter
}

// Open creates dir if needed and opens all four substores within it.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memory: create directory %s: %w", dir, err)
	}

	sessions, err := OpenSessionLog(dir)
	if err != nil {
		return nil, err
	}
	episodes, err := OpenEpisodicStore(ctx, dir)
	if err != nil {
		sessions.Close()
		return nil, err
	}
	preferences, err := OpenPreferenceStore(dir)
	if err != nil {
		sessions.Close()
		episodes.Close()
		return nil, err
	}
	patterns, err := OpenPatternStore(dir)
	if err != nil {
		sessions.Close()
		episodes.Close()
		preferences.Close()
		return nil, err
	}

	tokens, err := NewTokenCounter()
	if err != nil {
		sessions.Close()
		episodes.Close()
		preferences.Close()
		patterns.Close()
		return nil, fmt.Errorf("memory: open token counter: %w", err)
	}

	return &Store{Sessions: sessions, Episodes: episodes, Preferences: preferences, Patterns: patterns, tokens: tokens}, nil
}

// EnableChromemBackend opens a chromem-go accelerated vector index under
// dir and wires it into the episodic store, replacing the linear TF-IDF
// scan for Search calls. It is only enabled by calling this method; no
// config key or builder step calls it.
func (s *Store) EnableChromemBackend(dir string) error {
	idx, err := OpenChromemIndex(dir)
	if err != nil {
		return err
	}
	s.Episodes.UseChromemIndex(idx)
	return nil
}

// SummarizeForEpisode truncates text to the summary token budget and
// reports the token count actually retained, used when constructing a
// domain.Episode's Summary field at session-terminal time.
func (s *Store) SummarizeForEpisode(text string) (summary string, tokenCount int) {
	summary = s.tokens.TruncateToBudget(text, summaryTokenBudget)
	return summary, s.tokens.Count(summary)
}

// Close closes every substore, returning the first error encountered.
func (s *Store) Close() error {
	var firstErr error
	for _, closer := range []func() error{s.Sessions.Close, s.Episodes.Close, s.Preferences.Close, s.Patterns.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
