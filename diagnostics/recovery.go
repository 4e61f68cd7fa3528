package diagnostics

import "github.com/forgekeeper/agentcore/domain"

// strategyTemplate is a ranked, category-specific recovery template. Steps
// reference tool names the scheduler's Tool Executor is expected to have
// registered; an unavailable tool simply fails at execution time and is
// diagnosed again, per spec.md §4.5's retry-twice-per-iteration policy.
type strategyTemplate struct {
	name       string
	confidence float64
	steps      []domain.PlanStep
}

var recoveryTemplates = map[domain.ErrorCategory][]strategyTemplate{
	domain.ErrCommandNotFound: {
		{name: "install-dependency", confidence: 0.65, steps: []domain.PlanStep{
			{Tool: "run_bash", Args: map[string]any{"command": "apt-get install -y $MISSING || brew install $MISSING"}, Description: "install the missing command"},
		}},
		{name: "retry-with-alternate-tool", confidence: 0.4, steps: []domain.PlanStep{
			{Tool: "run_bash", Args: map[string]any{"command": "which git || which hg"}, Description: "probe for an alternate tool"},
		}},
	},
	domain.ErrPermissionDenied: {
		{name: "adjust-permissions", confidence: 0.55, steps: []domain.PlanStep{
			{Tool: "run_bash", Args: map[string]any{"command": "chmod +r ."}, Description: "relax permissions on the target"},
		}},
	},
	domain.ErrFileNotFound: {
		{name: "create-missing-path", confidence: 0.6, steps: []domain.PlanStep{
			{Tool: "write_file", Args: map[string]any{"path": "", "content": ""}, Description: "create the missing file"},
		}},
		{name: "list-nearby-paths", confidence: 0.45, steps: []domain.PlanStep{
			{Tool: "read_dir", Args: map[string]any{"path": "."}, Description: "inspect the directory for the correct name"},
		}},
	},
	domain.ErrTimeout: {
		{name: "retry-with-longer-timeout", confidence: 0.5, steps: []domain.PlanStep{
			{Tool: "run_bash", Args: map[string]any{"command": ""}, Description: "retry the same step with a longer timeout"},
		}},
	},
	domain.ErrNetwork: {
		{name: "retry-with-backoff", confidence: 0.5, steps: []domain.PlanStep{
			{Tool: "http_fetch", Args: map[string]any{}, Description: "retry the fetch after a short delay"},
		}},
	},
	domain.ErrRateLimit: {
		{name: "backoff-and-retry", confidence: 0.6, steps: []domain.PlanStep{
			{Tool: "run_bash", Args: map[string]any{"command": "sleep 5"}, Description: "wait out the rate-limit window"},
		}},
	},
	domain.ErrDependencyMissing: {
		{name: "install-dependency", confidence: 0.6, steps: []domain.PlanStep{
			{Tool: "run_bash", Args: map[string]any{"command": "npm install || pip install -r requirements.txt"}, Description: "install missing dependencies"},
		}},
	},
}

var defaultTemplate = strategyTemplate{
	name:       "diagnostic-no-op",
	confidence: 0.3,
	steps: []domain.PlanStep{
		{Tool: "run_bash", Args: map[string]any{"command": "echo diagnosing"}, Description: "gather more context before retrying"},
	},
}

// Plan builds a RecoveryPlan for the given category: one primary strategy
// and up to two fallbacks, ranked by (pre-pattern-learner) heuristic
// confidence.
func Plan(category domain.ErrorCategory) domain.RecoveryPlan {
	templates, ok := recoveryTemplates[category]
	if !ok || len(templates) == 0 {
		return domain.RecoveryPlan{Primary: toStrategy(defaultTemplate)}
	}

	plan := domain.RecoveryPlan{Primary: toStrategy(templates[0])}
	for _, t := range templates[1:] {
		plan.Fallbacks = append(plan.Fallbacks, toStrategy(t))
		if len(plan.Fallbacks) == 2 {
			break
		}
	}
	return plan
}

func toStrategy(t strategyTemplate) domain.RecoveryStrategy {
	return domain.RecoveryStrategy{Name: t.name, Steps: t.steps, Confidence: t.confidence}
}
