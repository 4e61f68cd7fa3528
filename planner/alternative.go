// Package planner implements the Alternative Planner (spec.md §4.2) and
// the Task Planner (spec.md §4.3).
package planner

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/tools"
	"golang.org/x/sync/errgroup"
)

// GenerationMethod is the tagged variant spec.md §9 calls for in place of
// deep inheritance between alternative-generator implementations.
type GenerationMethod string

const (
	MethodLLMWithHistory  GenerationMethod = "llm_with_historical_context"
	MethodHeuristicFallback GenerationMethod = "heuristic_fallback"
)

// GenerateInput bundles everything the Generate operation needs.
type GenerateInput struct {
	TaskGoal        string
	NextAction      string
	AvailableTools  []tools.Info
	RecentFailures  []domain.FailureRecord
	SimilarEpisodes []domain.Episode
}

// Generate produces 3-5 alternatives for nextAction. When llmGenerate is
// nil or returns an error, it falls back to the heuristic rule table
// (spec.md §4.2 Fallback). A diversity heuristic rejects and retries once
// a set whose unique-tool-sequence ratio is below 0.5.
func Generate(ctx context.Context, in GenerateInput, llmGenerate func(context.Context, GenerateInput) ([]domain.Alternative, error)) ([]domain.Alternative, GenerationMethod) {
	toolNames := make(map[string]bool, len(in.AvailableTools))
	for _, t := range in.AvailableTools {
		toolNames[t.Name] = true
	}

	if llmGenerate != nil {
		if alts, err := llmGenerate(ctx, in); err == nil && len(alts) >= 3 {
			alts = sanitizeToolRefs(alts, toolNames)
			if isDiverse(alts) {
				return alts, MethodLLMWithHistory
			}
			if alts2, err2 := llmGenerate(ctx, in); err2 == nil && len(alts2) >= 3 {
				alts2 = sanitizeToolRefs(alts2, toolNames)
				return alts2, MethodLLMWithHistory
			}
			return alts, MethodLLMWithHistory
		}
	}

	return heuristicFallback(in.NextAction, toolNames), MethodHeuristicFallback
}

// sanitizeToolRefs replaces any step referencing a tool outside the
// available set with "echo" and flags it via the step's description.
func sanitizeToolRefs(alts []domain.Alternative, available map[string]bool) []domain.Alternative {
	for i := range alts {
		for j := range alts[i].Steps {
			if !available[alts[i].Steps[j].Tool] {
				alts[i].Steps[j].Tool = "echo"
				alts[i].Steps[j].Description = "[invalid tool reference replaced] " + alts[i].Steps[j].Description
			}
		}
	}
	return alts
}

// isDiverse implements spec.md §4.2's diversity heuristic: unique tool
// sequences / alternatives must be >= 0.5.
func isDiverse(alts []domain.Alternative) bool {
	if len(alts) == 0 {
		return false
	}
	seen := make(map[string]bool, len(alts))
	for _, a := range alts {
		seen[toolSequenceKey(a)] = true
	}
	return float64(len(seen))/float64(len(alts)) >= 0.5
}

func toolSequenceKey(a domain.Alternative) string {
	names := make([]string, len(a.Steps))
	for i, s := range a.Steps {
		names[i] = s.Tool
	}
	return strings.Join(names, ">")
}

// heuristicFallback synthesizes at least three plausible variants by
// pattern-matching nextAction against a curated rule table, per spec.md
// §4.2's Fallback paragraph.
func heuristicFallback(nextAction string, available map[string]bool) []domain.Alternative {
	primary := pickPrimaryTool(nextAction, available)

	alts := []domain.Alternative{
		{
			ID:          "heuristic-1",
			Name:        "try " + primary,
			Description: "Attempt the action with " + primary,
			Steps:       []domain.PlanStep{{Tool: primary, Args: map[string]any{}, Description: nextAction, Confidence: 0.5}},
			Confidence:  0.5,
		},
	}

	secondary := secondaryTool(primary, available)
	alts = append(alts, domain.Alternative{
		ID:          "heuristic-2",
		Name:        "try " + secondary,
		Description: "Attempt the action with " + secondary,
		Steps:       []domain.PlanStep{{Tool: secondary, Args: map[string]any{}, Description: nextAction, Confidence: 0.4}},
		Confidence:  0.4,
	})

	alts = append(alts, domain.Alternative{
		ID:          "heuristic-3",
		Name:        "minimal diagnostic",
		Description: "Run a minimal no-op diagnostic before committing to an approach",
		Steps: []domain.PlanStep{{
			Tool: "run_bash", Args: map[string]any{"command": "echo diagnosing"},
			Description: "gather context", Confidence: 0.3,
		}},
		Confidence: 0.3,
	})

	return sanitizeToolRefs(alts, available)
}

func pickPrimaryTool(nextAction string, available map[string]bool) string {
	lower := strings.ToLower(nextAction)
	candidates := []string{"git", "run_bash", "read_file", "write_file", "http_fetch", "read_dir"}
	for _, c := range candidates {
		if strings.Contains(lower, strings.TrimPrefix(c, "run_")) && available[c] {
			return c
		}
	}
	if available["run_bash"] {
		return "run_bash"
	}
	for name := range available {
		return name
	}
	return "echo"
}

func secondaryTool(primary string, available map[string]bool) string {
	for name := range available {
		if name != primary {
			return name
		}
	}
	return "echo"
}

// EstimateEffort computes complexity, risk and an iteration estimate for
// one alternative, per spec.md §4.2.
func EstimateEffort(alt domain.Alternative, history []domain.ActionHistoryEntry, pastEpisodesSameType []domain.Episode, maxIterations int) domain.EffortEstimate {
	complexity := complexityScore(alt, history)
	risk := riskScore(alt, history)
	iterMin, iterPoint, iterMax := iterationEstimate(pastEpisodesSameType, maxIterations)

	return domain.EffortEstimate{
		AlternativeID:   alt.ID,
		ComplexityScore: complexity,
		ComplexityLevel: domain.ComplexityLevelFor(complexity),
		RiskScore:       risk,
		RiskLevel:       domain.ComplexityLevelFor(risk),
		IterMin:         iterMin,
		IterPoint:       iterPoint,
		IterMax:         iterMax,
	}
}

func complexityScore(alt domain.Alternative, history []domain.ActionHistoryEntry) float64 {
	stepScore := float64(len(alt.Steps))
	if stepScore > 10 {
		stepScore = 10
	}

	usedBefore := make(map[string]bool)
	for _, h := range history {
		for _, tool := range h.ToolsUsed {
			usedBefore[tool] = true
		}
	}
	novelty := 0.0
	for _, s := range alt.Steps {
		if !usedBefore[s.Tool] {
			novelty++
		}
	}

	argsComplexity := 0.0
	for _, s := range alt.Steps {
		n := len(s.Args)
		switch {
		case n >= 7:
			argsComplexity += 10
		case n >= 4:
			argsComplexity += 6
		default:
			argsComplexity += 2
		}
	}
	if len(alt.Steps) > 0 {
		argsComplexity /= float64(len(alt.Steps))
	}

	score := (stepScore + novelty + argsComplexity) / 3
	if score > 10 {
		score = 10
	}
	return score
}

var destructiveTools = map[string]bool{"write_file": true}

func riskScore(alt domain.Alternative, history []domain.ActionHistoryEntry) float64 {
	destructive := 0.0
	external := 0.0
	for _, s := range alt.Steps {
		if destructiveTools[s.Tool] {
			destructive++
		}
		if s.Tool == "http_fetch" || s.Tool == "git" {
			external++
		}
	}

	failures := 0
	for _, h := range history {
		if h.Error != nil {
			failures++
		}
	}
	var pastFailureRate float64
	if len(history) > 0 {
		pastFailureRate = float64(failures) / float64(len(history))
	}

	score := destructive*3 + external*2 + pastFailureRate*5
	if score > 10 {
		score = 10
	}
	return score
}

func iterationEstimate(episodes []domain.Episode, maxIterations int) (min, point, max int) {
	if len(episodes) == 0 {
		return 1, 2, clampCeil(5, maxIterations)
	}
	sum := 0
	lo, hi := episodes[0].Iterations, episodes[0].Iterations
	for _, e := range episodes {
		sum += e.Iterations
		if e.Iterations < lo {
			lo = e.Iterations
		}
		if e.Iterations > hi {
			hi = e.Iterations
		}
	}
	point = sum / len(episodes)
	if lo < 1 {
		lo = 1
	}
	return lo, point, clampCeil(hi, maxIterations)
}

func clampCeil(v, ceiling int) int {
	if ceiling > 0 && v > ceiling {
		return ceiling
	}
	return v
}

// CheckAlignmentHeuristic scores alt's alignment with goal by keyword
// overlap, action-verb matching, and a prerequisite bonus.
func CheckAlignmentHeuristic(alt domain.Alternative, goal string) domain.AlignmentResult {
	goalWords := wordSet(goal)
	descWords := wordSet(alt.Description)

	overlap := 0
	for w := range goalWords {
		if descWords[w] {
			overlap++
		}
	}
	var overlapScore float64
	if len(goalWords) > 0 {
		overlapScore = float64(overlap) / float64(len(goalWords))
	}

	verbScore := 0.0
	if hasActionVerb(alt.Description) {
		verbScore = 0.2
	}

	prereqBonus := 0.0
	if len(alt.Prerequisites) > 0 {
		prereqBonus = 0.1
	}

	score := overlapScore*0.7 + verbScore + prereqBonus
	if score > 1 {
		score = 1
	}

	return domain.AlignmentResult{
		AlternativeID: alt.ID,
		Score:         score,
		Relevance:     domain.RelevanceFor(score),
		Contribution:  "heuristic keyword/verb/prerequisite scoring",
		Method:        domain.AlignmentHeuristic,
	}
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

var actionVerbs = []string{"clone", "install", "run", "create", "fix", "update", "refactor", "test", "build", "write", "read"}

func hasActionVerb(s string) bool {
	lower := strings.ToLower(s)
	for _, v := range actionVerbs {
		if strings.Contains(lower, v) {
			return true
		}
	}
	return false
}

// EvaluateAll computes overall scores for a set of alternatives given
// their pre-computed effort and alignment results, then ranks them.
// Effort/alignment evaluation for distinct alternatives is independent, so
// this runs them concurrently via errgroup per spec.md §5's guidance to
// fan out a bounded set of concurrent sub-calls before ranking.
func EvaluateAll(ctx context.Context, alts []domain.Alternative, efforts []domain.EffortEstimate, alignments []domain.AlignmentResult, weights domain.EvaluatorWeights) domain.RankedDecision {
	weights = weights.Normalized()

	effortByID := indexEffort(efforts)
	alignByID := indexAlignment(alignments)

	ranked := make([]domain.RankedAlternative, len(alts))
	g, _ := errgroup.WithContext(ctx)
	for i := range alts {
		i := i
		g.Go(func() error {
			ranked[i] = evaluateOne(alts[i], effortByID[alts[i].ID], alignByID[alts[i].ID], weights)
			return nil
		})
	}
	_ = g.Wait() // evaluateOne never errors; Wait only synchronizes completion

	sortRanked(ranked)
	if len(ranked) > 0 {
		ranked[0].Chosen = true
	}

	return domain.RankedDecision{
		Ranked:        ranked,
		Weights:       weights,
		Justification: justify(ranked, effortByID),
	}
}

func evaluateOne(alt domain.Alternative, effort domain.EffortEstimate, align domain.AlignmentResult, w domain.EvaluatorWeights) domain.RankedAlternative {
	breakdown := domain.ScoreBreakdown{
		Effort:     w.Effort * (1 - effort.ComplexityScore/10),
		Risk:       w.Risk * (1 - effort.RiskScore/10),
		Alignment:  w.Alignment * align.Score,
		Confidence: w.Confidence * alt.Confidence,
	}
	overall := breakdown.Effort + breakdown.Risk + breakdown.Alignment + breakdown.Confidence
	return domain.RankedAlternative{
		Alternative:    alt,
		OverallScore:   overall,
		ScoreBreakdown: breakdown,
	}
}

func indexEffort(efforts []domain.EffortEstimate) map[string]domain.EffortEstimate {
	m := make(map[string]domain.EffortEstimate, len(efforts))
	for _, e := range efforts {
		m[e.AlternativeID] = e
	}
	return m
}

func indexAlignment(aligns []domain.AlignmentResult) map[string]domain.AlignmentResult {
	m := make(map[string]domain.AlignmentResult, len(aligns))
	for _, a := range aligns {
		m[a.AlternativeID] = a
	}
	return m
}

// sortRanked orders non-increasing by overall score, tie-broken by lower
// risk score, then lower complexity score, then original (stable) order.
func sortRanked(ranked []domain.RankedAlternative) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].OverallScore != ranked[j].OverallScore {
			return ranked[i].OverallScore > ranked[j].OverallScore
		}
		if ranked[i].ScoreBreakdown.Risk != ranked[j].ScoreBreakdown.Risk {
			return ranked[i].ScoreBreakdown.Risk > ranked[j].ScoreBreakdown.Risk // higher Risk breakdown term == lower raw risk
		}
		if ranked[i].ScoreBreakdown.Effort != ranked[j].ScoreBreakdown.Effort {
			return ranked[i].ScoreBreakdown.Effort > ranked[j].ScoreBreakdown.Effort // higher Effort breakdown term == lower complexity
		}
		return false
	})
}

// justify explains the chosen alternative by overall score, estimated
// iteration count, and lowest contributing factor, per spec.md §4.2.
func justify(ranked []domain.RankedAlternative, effortByID map[string]domain.EffortEstimate) string {
	if len(ranked) == 0 {
		return "no alternatives to choose from"
	}
	top := ranked[0]
	lowest := lowestFactor(top.ScoreBreakdown)
	effort := effortByID[top.Alternative.ID]
	return "chose " + top.Alternative.Name + " with overall score " + trimFloat(top.OverallScore) +
		"; estimated " + strconv.Itoa(effort.IterPoint) + " iterations (" + strconv.Itoa(effort.IterMin) + "-" + strconv.Itoa(effort.IterMax) + ")" +
		"; lowest contributing factor was " + lowest
}

func lowestFactor(b domain.ScoreBreakdown) string {
	factors := map[string]float64{"effort": b.Effort, "risk": b.Risk, "alignment": b.Alignment, "confidence": b.Confidence}
	lowestName, lowestVal := "", 0.0
	first := true
	for name, v := range factors {
		if first || v < lowestVal {
			lowestName, lowestVal = name, v
			first = false
		}
	}
	return lowestName
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
