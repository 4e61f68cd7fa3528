package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/forgekeeper/agentcore/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	episodicFile = "episodic_memory.jsonl"

	defaultTopN      = 5
	maxTopN          = 20
	defaultMinScore  = 0.3
	reembedThreshold = 10 // new vocabulary terms before a background re-embed
)

var tracer = otel.Tracer("forgekeeper/memory")

// SearchParams are the episodic store's search inputs, per spec.md §4.6.
type SearchParams struct {
	Query    string
	TopN     int // clamped to [1, maxTopN]; 0 means defaultTopN
	MinScore float64
	TaskType *domain.TaskType
	Success  *bool
}

// ScoredEpisode pairs an episode with its similarity score against a query.
type ScoredEpisode struct {
	Episode domain.Episode
	Score   float64
}

// EpisodicStore holds episodes with TF-IDF embeddings and serves
// cosine-similarity search. Write and search calls are snapshot-consistent:
// readers always see either the pre- or post-write episode slice, never a
// partial append.
type EpisodicStore struct {
	mu         sync.RWMutex
	episodes   []domain.Episode
	file       *appendOnlyFile
	path       string
	vectorizer *Vectorizer
	catalog    *Catalog
	chromem    *ChromemIndex // optional accelerated backend; nil uses the linear TF-IDF scan

	reembedGroup singleflight.Group
	generation   atomic.Int64
}

// UseChromemIndex wires an optional chromem-go backend into the store.
// Once set, Search consults it instead of the in-process linear scan,
// while Vectorizer-produced embeddings remain the vectors both paths
// index and query with.
func (s *EpisodicStore) UseChromemIndex(idx *ChromemIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chromem = idx
}

// OpenEpisodicStore opens (creating if needed) the episodic store and its
// sqlite accelerator under dir, replaying existing episodes and rebuilding
// the catalog index from them.
func OpenEpisodicStore(ctx context.Context, dir string) (*EpisodicStore, error) {
	path := filepath.Join(dir, episodicFile)
	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}

	existing, err := readJSONL[domain.Episode](path)
	if err != nil {
		f.close()
		return nil, err
	}

	vectorizer := NewVectorizer()
	for _, e := range existing {
		vectorizer.Observe(e.TaskText + " " + e.Summary)
	}

	catalog, err := OpenCatalog(dir)
	if err != nil {
		f.close()
		return nil, err
	}
	if err := catalog.Rebuild(ctx, existing); err != nil {
		f.close()
		catalog.Close()
		return nil, err
	}

	return &EpisodicStore{
		episodes:   existing,
		file:       f,
		path:       path,
		vectorizer: vectorizer,
		catalog:    catalog,
	}, nil
}

// Write appends and indexes one episode, embedding it against the current
// vocabulary. If enough new vocabulary terms have accumulated, a
// background re-embed of all stored episodes is kicked off, per spec.md
// §4.6 and §5's restart-on-write semantics.
func (s *EpisodicStore) Write(ctx context.Context, e domain.Episode) error {
	text := e.TaskText + " " + e.Summary
	s.vectorizer.Observe(text)
	embedding, version := s.vectorizer.Embed(text)
	e.Embedding = embedding
	e.VocabVersion = version

	s.mu.Lock()
	s.episodes = append(s.episodes, e)
	s.generation.Add(1)
	s.mu.Unlock()

	if err := s.file.append(e); err != nil {
		return err
	}
	if err := s.catalog.Insert(ctx, e); err != nil {
		return fmt.Errorf("memory: index episode in catalog: %w", err)
	}

	s.mu.RLock()
	chromemIdx := s.chromem
	s.mu.RUnlock()
	if chromemIdx != nil {
		meta := map[string]string{"task_type": string(e.TaskType), "success": fmt.Sprint(e.Success)}
		if err := chromemIdx.Upsert(ctx, e.ID, e.Embedding, meta, e.Summary); err != nil {
			return fmt.Errorf("memory: index episode in chromem: %w", err)
		}
	}

	if s.vectorizer.NewTermThresholdCrossed(reembedThreshold) {
		s.triggerReembed(context.Background())
	}
	return nil
}

// triggerReembed coalesces concurrent re-embed requests via singleflight
// (spec.md §5: "single-flight, one at a time") and restarts if a write
// lands mid-rebuild rather than embedding a stale snapshot.
func (s *EpisodicStore) triggerReembed(ctx context.Context) {
	go func() {
		_, _, _ = s.reembedGroup.Do("reembed", func() (any, error) {
			s.reembedOnce(ctx)
			return nil, nil
		})
	}()
}

func (s *EpisodicStore) reembedOnce(ctx context.Context) {
	for {
		startGen := s.generation.Load()

		s.mu.RLock()
		snapshot := append([]domain.Episode(nil), s.episodes...)
		s.mu.RUnlock()

		reembedded := make([]domain.Episode, len(snapshot))
		version := s.vectorizer.MarkReembedded()
		for i, e := range snapshot {
			vec, _ := s.vectorizer.Embed(e.TaskText + " " + e.Summary)
			e.Embedding = vec
			e.VocabVersion = version
			reembedded[i] = e
		}

		// A write landed while re-embedding; the rebuild restarts against
		// the newer vocabulary rather than committing a stale one.
		if s.generation.Load() != startGen {
			continue
		}

		s.mu.Lock()
		s.episodes = reembedded
		s.mu.Unlock()
		return
	}
}

// Search performs cosine-similarity search over the current in-memory
// episode set, honoring TopN/MinScore/TaskType/Success filters.
func (s *EpisodicStore) Search(ctx context.Context, params SearchParams) []ScoredEpisode {
	ctx, span := tracer.Start(ctx, "memory.episodic.search")
	defer span.End()
	span.SetAttributes(attribute.String("query", params.Query))

	topN := params.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	if topN > maxTopN {
		topN = maxTopN
	}
	minScore := params.MinScore
	if minScore <= 0 {
		minScore = defaultMinScore
	}

	queryVec, _ := s.vectorizer.Embed(params.Query)

	s.mu.RLock()
	candidates := append([]domain.Episode(nil), s.episodes...)
	chromemIdx := s.chromem
	s.mu.RUnlock()

	if chromemIdx != nil {
		if scored, ok := s.searchViaChromem(ctx, chromemIdx, queryVec, candidates, params, topN, minScore); ok {
			span.SetAttributes(attribute.Int("results_count", len(scored)))
			span.SetStatus(codes.Ok, "success via chromem")
			return scored
		}
	}

	// When task_type/success filters are set, the catalog answers which ids
	// match with an indexed query instead of a full scan, so the cosine
	// scoring loop below only ever runs over candidates that can pass.
	if params.TaskType != nil || params.Success != nil {
		if ids, err := s.catalog.MatchingIDs(ctx, params.TaskType, params.Success); err == nil {
			allowed := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				allowed[id] = struct{}{}
			}
			restricted := candidates[:0]
			for _, e := range candidates {
				if _, ok := allowed[e.ID]; ok {
					restricted = append(restricted, e)
				}
			}
			candidates = restricted
		}
	}

	scored := make([]ScoredEpisode, 0, len(candidates))
	for _, e := range candidates {
		if params.TaskType != nil && e.TaskType != *params.TaskType {
			continue
		}
		if params.Success != nil && e.Success != *params.Success {
			continue
		}
		score := CosineSimilarity(queryVec, e.Embedding)
		if score < minScore {
			continue
		}
		scored = append(scored, ScoredEpisode{Episode: e, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topN {
		scored = scored[:topN]
	}

	span.SetAttributes(attribute.Int("results_count", len(scored)))
	span.SetStatus(codes.Ok, "success")
	return scored
}

// searchViaChromem queries the chromem backend and resolves hits back to
// full episodes from candidates. It returns ok=false if chromem errors,
// letting the caller fall back to the linear scan rather than failing the
// whole search.
func (s *EpisodicStore) searchViaChromem(ctx context.Context, idx *ChromemIndex, queryVec []float32, candidates []domain.Episode, params SearchParams, topN int, minScore float64) ([]ScoredEpisode, bool) {
	filter := map[string]string{}
	if params.TaskType != nil {
		filter["task_type"] = string(*params.TaskType)
	}
	if params.Success != nil {
		filter["success"] = fmt.Sprint(*params.Success)
	}

	hits, err := idx.Query(ctx, queryVec, topN, filter)
	if err != nil {
		return nil, false
	}

	byID := make(map[string]domain.Episode, len(candidates))
	for _, e := range candidates {
		byID[e.ID] = e
	}

	scored := make([]ScoredEpisode, 0, len(hits))
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		if e, ok := byID[h.ID]; ok {
			scored = append(scored, ScoredEpisode{Episode: e, Score: h.Score})
		}
	}
	return scored, true
}

// All returns every stored episode, in write order.
func (s *EpisodicStore) All() []domain.Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Episode(nil), s.episodes...)
}

// Close closes the underlying file and catalog handles.
func (s *EpisodicStore) Close() error {
	if err := s.file.close(); err != nil {
		return err
	}
	return s.catalog.Close()
}
