package checkpoint

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

const ledgerFile = "checkpoints.jsonl"

// Ledger manages Checkpoint lifecycle: create, resolve, expire. Persistence
// is event-sourced rather than plain append-only: each mutation appends the
// checkpoint's full current state, and replay keeps only the last record
// per ID, the same "replay wins by key" idea hector's Storage.Save applies
// to a session's pending_executions map, here expressed as a ledger file
// instead of session state.
type Ledger struct {
	mu   sync.RWMutex
	file *appendOnlyFile
	path string

	byID map[string]domain.Checkpoint
}

func openLedger(dir string) (*Ledger, error) {
	path := dir + "/" + ledgerFile
	records, err := readJSONL[domain.Checkpoint](path)
	if err != nil {
		return nil, err
	}

	f, err := openAppendOnly(path)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Checkpoint, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	return &Ledger{file: f, path: path, byID: byID}, nil
}

// New constructs a pending Checkpoint with its options ordered low-risk
// first, per spec.md §4.1's "checkpoint created with options ordered by
// risk" example.
func New(sessionID string, iteration int, decisionType domain.DecisionType, predictedConfidence float64, options []domain.CheckpointOption, id string, now time.Time, ttl time.Duration) domain.Checkpoint {
	sorted := make([]domain.CheckpointOption, len(options))
	copy(sorted, options)
	sort.SliceStable(sorted, func(i, j int) bool {
		return riskRank(sorted[i].RiskLevel) < riskRank(sorted[j].RiskLevel)
	})

	return domain.Checkpoint{
		ID:                  id,
		SessionID:           sessionID,
		Iteration:           iteration,
		DecisionType:        decisionType,
		PredictedConfidence: predictedConfidence,
		Options:             sorted,
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
}

func riskRank(l domain.Level) int {
	switch l {
	case domain.LevelLow:
		return 0
	case domain.LevelMedium:
		return 1
	case domain.LevelHigh:
		return 2
	default:
		return 3
	}
}

// Create persists a new pending checkpoint.
func (l *Ledger) Create(cp domain.Checkpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[cp.ID]; exists {
		return fmt.Errorf("checkpoint: %s already exists", cp.ID)
	}
	if err := l.file.append(cp); err != nil {
		return err
	}
	l.byID[cp.ID] = cp
	slog.Debug("checkpoint created", "id", cp.ID, "session_id", cp.SessionID, "decision_type", cp.DecisionType)
	return nil
}

// Resolve records the user's chosen option for a pending checkpoint. Per
// spec.md §3's invariant, a checkpoint once resolved is never reopened —
// superseded only by a brand new checkpoint.
func (l *Ledger) Resolve(id string, res domain.CheckpointResolution) (domain.Checkpoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp, ok := l.byID[id]
	if !ok {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint: %s not found", id)
	}
	if cp.IsResolved() {
		return domain.Checkpoint{}, fmt.Errorf("checkpoint: %s already resolved", id)
	}

	cp.Resolution = &res
	if err := l.file.append(cp); err != nil {
		return domain.Checkpoint{}, err
	}
	l.byID[id] = cp
	slog.Debug("checkpoint resolved", "id", id, "selected_option", res.SelectedOptionID, "modified", res.Modified)
	return cp, nil
}

// Get returns a checkpoint by ID.
func (l *Ledger) Get(id string) (domain.Checkpoint, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp, ok := l.byID[id]
	return cp, ok
}

// Pending returns every unresolved, unexpired checkpoint as of now.
func (l *Ledger) Pending(now time.Time) []domain.Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Checkpoint, 0, len(l.byID))
	for _, cp := range l.byID {
		if !cp.IsResolved() && !cp.IsExpired(now) {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ExpirePending returns every unresolved checkpoint whose ExpiresAt has
// passed as of now, without mutating the checkpoint itself — expiry is a
// computed property (Checkpoint.IsExpired), not a stored transition, so
// repeated calls are idempotent and the caller decides what to log.
func (l *Ledger) ExpirePending(now time.Time) []domain.Checkpoint {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Checkpoint
	for _, cp := range l.byID {
		if !cp.IsResolved() && cp.IsExpired(now) {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (l *Ledger) close() error {
	return l.file.close()
}
