package memory

import (
	"path/filepath"
	"sync"

	"github.com/forgekeeper/agentcore/domain"
)

const patternFile = "pattern_memory.jsonl"

// recoveryOutcome is one append-only pattern-store input: the result of
// one recovery-strategy attempt.
type recoveryOutcome struct {
	Category     domain.ErrorCategory `json:"category"`
	StrategyName string                `json:"strategy_name"`
	Succeeded    bool                  `json:"succeeded"`
	Iterations   int                   `json:"iterations"`
	Example      string                `json:"example"`
}

type patternKey struct {
	category domain.ErrorCategory
	strategy string
}

// PatternStore aggregates recovery outcomes into domain.PatternRecords,
// the input the Pattern Learner (package diagnostics) boosts strategy
// confidence from.
type PatternStore struct {
	mu   sync.RWMutex
	file *appendOnlyFile
	path string

	aggregates map[patternKey]*domain.PatternRecord
}

// OpenPatternStore opens (creating if needed) the pattern store under dir,
// replaying and aggregating existing outcomes.
func OpenPatternStore(dir string) (*PatternStore, error) {
	path := filepath.Join(dir, patternFile)
	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}
	existing, err := readJSONL[recoveryOutcome](path)
	if err != nil {
		f.close()
		return nil, err
	}

	store := &PatternStore{file: f, path: path, aggregates: make(map[patternKey]*domain.PatternRecord)}
	for _, o := range existing {
		store.fold(o)
	}
	return store, nil
}

// RecordOutcome appends one recovery outcome and folds it into the
// aggregate for its (category, strategy) pair.
func (p *PatternStore) RecordOutcome(category domain.ErrorCategory, strategyName string, succeeded bool, iterations int, example string) error {
	o := recoveryOutcome{Category: category, StrategyName: strategyName, Succeeded: succeeded, Iterations: iterations, Example: example}

	p.mu.Lock()
	p.fold(o)
	p.mu.Unlock()

	return p.file.append(o)
}

// fold must be called with p.mu held.
func (p *PatternStore) fold(o recoveryOutcome) {
	key := patternKey{category: o.Category, strategy: o.StrategyName}
	rec, ok := p.aggregates[key]
	if !ok {
		rec = &domain.PatternRecord{Category: o.Category, StrategyName: o.StrategyName}
		p.aggregates[key] = rec
	}

	totalBefore := rec.SuccessCount + rec.FailureCount
	if o.Succeeded {
		rec.SuccessCount++
	} else {
		rec.FailureCount++
	}
	totalAfter := rec.SuccessCount + rec.FailureCount

	// running mean of iterations across all recorded attempts
	rec.AvgIterations = (rec.AvgIterations*float64(totalBefore) + float64(o.Iterations)) / float64(totalAfter)

	if o.Example != "" {
		rec.Examples = append(rec.Examples, o.Example)
		if len(rec.Examples) > 5 {
			rec.Examples = rec.Examples[len(rec.Examples)-5:]
		}
	}
}

// RecordsForCategory returns every PatternRecord accumulated for category,
// a snapshot safe to pass to diagnostics.Boost/diagnostics.BestStrategy.
func (p *PatternStore) RecordsForCategory(category domain.ErrorCategory) []domain.PatternRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []domain.PatternRecord
	for key, rec := range p.aggregates {
		if key.category == category {
			out = append(out, *rec)
		}
	}
	return out
}

// Close closes the underlying file.
func (p *PatternStore) Close() error {
	return p.file.close()
}
