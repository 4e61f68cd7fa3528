package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

const (
	cacheTTL        = 7 * 24 * time.Hour
	cacheMaxReuses  = 50
	planTimeBudget  = 3 * time.Second
	minInstructionSteps = 3
	maxInstructionSteps = 7
)

// CacheKey identifies a cached InstructionPlan by the triple spec.md §4.3
// names: task type, normalized action text, and a hash of the available
// tool set. Plan returns the key it computed so a caller can Commit the
// plan once it knows whether execution succeeded.
type CacheKey struct {
	taskType         domain.TaskType
	normalizedAction string
	toolSetHash      string
}

type cacheEntry struct {
	plan    domain.InstructionPlan
	created time.Time
	reuses  int
}

// Cache is the Task Planner's plan cache, keyed on (task_type,
// normalized_action, tool_set_hash) with a 7-day TTL and a 50-reuse cap
// per spec.md §4.3.
type Cache struct {
	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry
}

// NewCache returns an empty plan cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[CacheKey]*cacheEntry)}
}

func (c *Cache) get(key CacheKey, now time.Time) (domain.InstructionPlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.InstructionPlan{}, false
	}
	if now.Sub(entry.created) > cacheTTL || entry.reuses >= cacheMaxReuses {
		delete(c.entries, key)
		return domain.InstructionPlan{}, false
	}
	entry.reuses++
	plan := entry.plan
	plan.FromCache = true
	return plan, true
}

// Commit stores plan under key, but only when the caller has confirmed the
// plan's execution eventually succeeded, per spec.md §4.3 ("Entry is stored
// only if the resulting plan's execution eventually succeeded"). A plan
// produced by the heuristic fallback is never cached regardless of outcome:
// it was never vetted by the LLM in the first place, so reusing it up to
// cacheMaxReuses times would just replay a guess.
func (c *Cache) Commit(key CacheKey, plan domain.InstructionPlan, now time.Time) {
	if plan.FallbackUsed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	plan.FromCache = false
	c.entries[key] = &cacheEntry{plan: plan, created: now}
}

// NormalizeAction lowercases, trims, and collapses whitespace so that
// textually-equivalent actions share a cache key.
func NormalizeAction(action string) string {
	fields := strings.Fields(strings.ToLower(action))
	return strings.Join(fields, " ")
}

// ToolSetHash returns a stable hash of a set of tool names, independent of
// input order.
func ToolSetHash(toolNames []string) string {
	sorted := append([]string(nil), toolNames...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:16]
}

// PlanInput bundles the Task Planner's inputs for one action.
type PlanInput struct {
	TaskType    domain.TaskType
	Action      string
	ToolNames   []string
	Prereqs     []string
}

// LLMPlanFunc produces a concrete InstructionPlan for an action, typically
// backed by an llms.Client structured-output call.
type LLMPlanFunc func(ctx context.Context, in PlanInput) (domain.InstructionPlan, error)

// Plan returns a concrete, executable InstructionPlan for in.Action and the
// CacheKey it was planned under, consulting the cache first, then
// attempting llmPlan within a soft planTimeBudget, falling back to a
// heuristic plan on timeout, error, or a nil llmPlan, per spec.md §4.3.
// Plan never writes to the cache itself: a freshly planned entry is only
// worth reusing once the caller has confirmed it executed successfully, so
// callers that want that entry cached call Cache.Commit with the returned
// key once they know the outcome.
func Plan(ctx context.Context, cache *Cache, now time.Time, in PlanInput, llmPlan LLMPlanFunc) (domain.InstructionPlan, CacheKey) {
	key := CacheKey{
		taskType:         in.TaskType,
		normalizedAction: NormalizeAction(in.Action),
		toolSetHash:      ToolSetHash(in.ToolNames),
	}

	if cache != nil {
		if plan, ok := cache.get(key, now); ok {
			return plan, key
		}
	}

	return planWithBudget(ctx, in, llmPlan), key
}

func planWithBudget(ctx context.Context, in PlanInput, llmPlan LLMPlanFunc) domain.InstructionPlan {
	if llmPlan == nil {
		return heuristicInstructionPlan(in)
	}

	budgetCtx, cancel := context.WithTimeout(ctx, planTimeBudget)
	defer cancel()

	type result struct {
		plan domain.InstructionPlan
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		plan, err := llmPlan(budgetCtx, in)
		resultCh <- result{plan, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil || !validInstructionPlan(r.plan) {
			return heuristicInstructionPlan(in)
		}
		return r.plan
	case <-budgetCtx.Done():
		return heuristicInstructionPlan(in)
	}
}

func validInstructionPlan(plan domain.InstructionPlan) bool {
	return len(plan.Steps) >= minInstructionSteps && len(plan.Steps) <= maxInstructionSteps
}

// heuristicInstructionPlan synthesizes a minimal, always-valid plan when
// LLM planning is unavailable or times out, per spec.md §4.3's fallback.
func heuristicInstructionPlan(in PlanInput) domain.InstructionPlan {
	primary := "run_bash"
	for _, t := range in.ToolNames {
		if t != "" {
			primary = t
			break
		}
	}

	steps := []domain.InstructionStep{
		{Tool: primary, Args: map[string]any{}, ExpectedOutcome: "action executed", Confidence: 0.4},
		{Tool: "read_dir", Args: map[string]any{"path": "."}, ExpectedOutcome: "workspace state observed", Confidence: 0.5},
		{Tool: primary, Args: map[string]any{}, ExpectedOutcome: "outcome verified", Confidence: 0.35},
	}

	return domain.InstructionPlan{
		Approach:      "heuristic single-path execution of: " + in.Action,
		Prerequisites: in.Prereqs,
		Steps:         steps,
		Verification:  &domain.Verification{CheckCommand: "echo verify", SuccessCriteria: "no error reported"},
		Alternatives:  []string{"retry with a narrower scope if the primary tool fails"},
		FallbackUsed:  true,
	}
}
