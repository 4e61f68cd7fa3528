package scheduler

import (
	"fmt"
	"strings"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/tools"
)

func sessionSummaryText(sess *domain.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "task: %s\noutcome: %s\n", sess.Task, sess.Outcome)
	for _, e := range sess.ActionHistory {
		fmt.Fprintf(&b, "iter %d: %s -> %s\n", e.Iteration, e.NextAction, e.ResultSummary)
	}
	return b.String()
}

func toolsUsedAcross(sess *domain.Session) []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range sess.ActionHistory {
		for _, t := range e.ToolsUsed {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func failedToolsAcross(sess *domain.Session) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range sess.Failures {
		if !seen[f.Tool] {
			seen[f.Tool] = true
			out = append(out, f.Tool)
		}
	}
	return out
}

func errorCategoriesAcross(sess *domain.Session) []domain.ErrorCategory {
	seen := map[domain.ErrorCategory]bool{}
	var out []domain.ErrorCategory
	for _, f := range sess.Failures {
		if !seen[f.Category] {
			seen[f.Category] = true
			out = append(out, f.Category)
		}
	}
	return out
}

// recoveriesSucceeded counts iterations immediately following a recorded
// failure whose own action succeeded, a proxy for "the recovery worked"
// since Session tracks diagnosed failures but not a separate recovery
// outcome field.
func recoveriesSucceeded(sess *domain.Session) int {
	failedIters := map[int]bool{}
	for _, f := range sess.Failures {
		failedIters[f.Iteration] = true
	}
	count := 0
	for _, e := range sess.ActionHistory {
		if failedIters[e.Iteration-1] && e.ActualSuccess {
			count++
		}
	}
	return count
}

func lastStrategyUsed(sess *domain.Session) string {
	if len(sess.ActionHistory) == 0 {
		return ""
	}
	last := sess.ActionHistory[len(sess.ActionHistory)-1]
	if len(last.ToolsUsed) == 0 {
		return ""
	}
	return last.ToolsUsed[len(last.ToolsUsed)-1]
}

func recentFailures(sess *domain.Session) []domain.FailureRecord {
	n := len(sess.Failures)
	if n <= 3 {
		return sess.Failures
	}
	return sess.Failures[n-3:]
}

func toolNamesFrom(infos []tools.Info) []string {
	out := make([]string, len(infos))
	for i, in := range infos {
		out[i] = in.Name
	}
	return out
}

func appendBounded[T any](list []T, item T, max int) []T {
	list = append(list, item)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

// lastThreeSimilar reports whether the last three action-history entries
// proposed near-identical next-actions with no successful outcome, the
// duplicate-proposal edge case from spec.md §4.1.
func lastThreeSimilar(sess *domain.Session) bool {
	n := len(sess.ActionHistory)
	if n < 3 {
		return false
	}
	window := sess.ActionHistory[n-3:]
	for _, e := range window {
		if e.ActualSuccess {
			return false
		}
	}
	first := normalizeForCompare(window[0].NextAction)
	for _, e := range window[1:] {
		if normalizeForCompare(e.NextAction) != first {
			return false
		}
	}
	return first != ""
}

func normalizeForCompare(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
