// Package taskgen implements the Telemetry-Driven Task Generation
// lifecycle from spec.md §4.8: external analyzers turn telemetry emitted
// through the Tool Executor into task cards; the Board here owns
// auto-approval, batch operations, prerequisite-gated actionability, and
// funnel metrics over that lifecycle. The scheduler neither creates nor
// reads cards; Actionable reports whether a card's prerequisites are done.
package taskgen

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/eventlog"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrBatchTooLarge is returned by BatchApprove/BatchDismiss when the
// caller asked for more ids than Config.BatchMax allows in one call.
var ErrBatchTooLarge = errors.New("taskgen: batch exceeds configured maximum")

// ErrNotFound is returned when an id does not name a known card.
var ErrNotFound = errors.New("taskgen: task card not found")

// Config tunes the board. Zero values are replaced by DefaultConfig's
// values at New.
type Config struct {
	// AutoApproveEnabled gates auto-approval entirely (default false,
	// per spec.md §6's configuration keys).
	AutoApproveEnabled bool

	// MinConfidence is the confidence floor for auto-approval (default 0.9).
	MinConfidence float64

	// TrustedAnalyzers is the allowlist auto-approval checks against.
	TrustedAnalyzers []string

	// BatchMax bounds one BatchApprove/BatchDismiss call (default 50,
	// overridable by TASKGEN_BATCH_MAX per spec.md §4.8).
	BatchMax int
}

// DefaultConfig returns spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{AutoApproveEnabled: false, MinConfidence: 0.9, BatchMax: 50}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.BatchMax <= 0 {
		c.BatchMax = d.BatchMax
	}
	return c
}

// Board holds the in-memory set of task cards for one workspace and
// reports funnel health. Task cards themselves are not session state, so
// unlike memory's stores they are not persisted to an append-only file —
// only the audit trail of what happened to them is, via eventlog.
type Board struct {
	mu      sync.Mutex
	cfg     Config
	cards   map[string]*domain.TaskCard
	events  *eventlog.Log
	metrics *metrics
	funnel  *funnelLog
	now     func() time.Time
}

// New constructs a Board. events and reg may both be nil (no audit trail,
// no Prometheus registration respectively), the same nil-is-skip
// convention progress.NewTracker uses.
func New(cfg Config, events *eventlog.Log, reg prometheus.Registerer) *Board {
	return &Board{
		cfg:     cfg.withDefaults(),
		cards:   make(map[string]*domain.TaskCard),
		events:  events,
		metrics: newMetrics(reg),
		funnel:  newFunnelLog(),
		now:     time.Now,
	}
}

// UpdateConfig swaps in a new Config, for the config package's hot-reload
// watcher to push trusted-analyzer allowlist and confidence changes into
// a running board without restarting it.
func (b *Board) UpdateConfig(cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg.withDefaults()
}

// Generate registers a new task card proposed by an analyzer. It is
// auto-approved in place when AutoApproveEnabled, the analyzer is in
// TrustedAnalyzers, and card.Confidence meets MinConfidence — in which
// case an audit event is emitted (spec.md §4.8).
func (b *Board) Generate(card domain.TaskCard) domain.TaskCard {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	card.Status = domain.TaskCardGenerated
	card.CreatedAt = now
	card.AutoApproved = false

	if b.cfg.AutoApproveEnabled && card.Confidence >= b.cfg.MinConfidence && isTrusted(card.Analyzer, b.cfg.TrustedAnalyzers) {
		card.Status = domain.TaskCardApproved
		card.AutoApproved = true
		card.ResolvedAt = now
		b.emit(eventlog.ActTaskAutoApproved, map[string]any{
			"task_id": card.ID, "analyzer": card.Analyzer, "confidence": card.Confidence,
		})
	}

	stored := card
	b.cards[card.ID] = &stored
	b.funnel.record(card.Analyzer, domain.TaskCardGenerated, now)
	b.metrics.inc(card.Analyzer, string(domain.TaskCardGenerated))
	if card.AutoApproved {
		b.funnel.record(card.Analyzer, domain.TaskCardApproved, now)
		b.metrics.inc(card.Analyzer, string(domain.TaskCardApproved))
	}
	return stored
}

// View marks a card viewed. Calling it on a card that is not still
// Generated is a no-op, since Viewed is a one-way transition out of the
// funnel's first stage.
func (b *Board) View(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	card, ok := b.cards[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if card.Status != domain.TaskCardGenerated {
		return nil
	}
	card.Status = domain.TaskCardViewed
	b.funnel.record(card.Analyzer, domain.TaskCardViewed, b.now())
	b.metrics.inc(card.Analyzer, string(domain.TaskCardViewed))
	return nil
}

// Approve transitions one card to Approved. Unlike auto-approval it emits
// no audit event; only the funnel log and metrics record it.
func (b *Board) Approve(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transition(id, domain.TaskCardApproved)
}

// Dismiss transitions one card to Dismissed.
func (b *Board) Dismiss(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transition(id, domain.TaskCardDismissed)
}

// Complete marks an approved card Completed, the funnel's terminal
// success stage.
func (b *Board) Complete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transition(id, domain.TaskCardCompleted)
}

func (b *Board) transition(id string, status domain.TaskCardStatus) error {
	card, ok := b.cards[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	card.Status = status
	card.ResolvedAt = b.now()
	b.funnel.record(card.Analyzer, status, card.ResolvedAt)
	b.metrics.inc(card.Analyzer, string(status))
	return nil
}

// BatchApprove approves up to Config.BatchMax ids in one call, per
// spec.md §4.8. It approves ids in order and stops at the first unknown
// id, returning the ids it did approve alongside the error.
func (b *Board) BatchApprove(ids []string) ([]string, error) {
	return b.batch(ids, domain.TaskCardApproved)
}

// BatchDismiss dismisses up to Config.BatchMax ids in one call.
func (b *Board) BatchDismiss(ids []string) ([]string, error) {
	return b.batch(ids, domain.TaskCardDismissed)
}

func (b *Board) batch(ids []string, status domain.TaskCardStatus) ([]string, error) {
	if len(ids) > b.cfg.BatchMax {
		return nil, fmt.Errorf("%w: %d ids, max %d", ErrBatchTooLarge, len(ids), b.cfg.BatchMax)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	done := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := b.transition(id, status); err != nil {
			return done, err
		}
		done = append(done, id)
	}
	b.emit(eventlog.ActTaskBatchAction, map[string]any{"status": string(status), "count": len(done)})
	return done, nil
}

// Actionable reports whether every prerequisite of card is Completed in
// this board, per spec.md §4.8's dependency rule. Unknown prerequisite
// ids are treated as incomplete.
func (b *Board) Actionable(card domain.TaskCard) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, prereq := range card.Prerequisites {
		dep, ok := b.cards[prereq]
		if !ok || dep.Status != domain.TaskCardCompleted {
			return false
		}
	}
	return true
}

// Get returns a copy of the card with id, if known.
func (b *Board) Get(id string) (domain.TaskCard, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	card, ok := b.cards[id]
	if !ok {
		return domain.TaskCard{}, false
	}
	return *card, true
}

// List returns every card, sorted by CreatedAt ascending for stable
// pagination-free output.
func (b *Board) List() []domain.TaskCard {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.TaskCard, 0, len(b.cards))
	for _, c := range b.cards {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// FunnelCounts reports generated/viewed/approved/completed/dismissed
// counts for events recorded in [now-window, now], and HealthScore()
// derives the 0.3/0.3/0.4-weighted score over it.
func (b *Board) FunnelCounts(window time.Duration) domain.FunnelCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.funnel.since(b.now().Add(-window))
}

func (b *Board) emit(act eventlog.Act, payload map[string]any) {
	if b.events == nil {
		return
	}
	_ = b.events.Append(eventlog.Record{
		Actor: eventlog.ActorSystem, Act: act, Payload: payload, At: b.now(),
	})
}

func isTrusted(analyzer string, trusted []string) bool {
	for _, t := range trusted {
		if t == analyzer {
			return true
		}
	}
	return false
}
