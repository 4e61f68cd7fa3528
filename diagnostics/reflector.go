package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/llms"
)

// ruleTableDirection gives a short suggested direction per category,
// used by the rule-table fallback and to seed the LLM prompt.
var ruleTableDirection = map[domain.ErrorCategory]string{
	domain.ErrCommandNotFound:   "install the missing command via the platform package manager",
	domain.ErrPermissionDenied:  "request elevated permission or adjust the target's mode bits",
	domain.ErrFileNotFound:      "verify the path exists before the step that depends on it",
	domain.ErrTimeout:           "increase the step timeout or break the action into smaller steps",
	domain.ErrToolNotFound:      "choose a tool present in the registry",
	domain.ErrNetwork:           "retry with backoff or verify connectivity/DNS",
	domain.ErrAuth:              "refresh or supply valid credentials",
	domain.ErrResourceBusy:      "retry after releasing or waiting on the contended resource",
	domain.ErrOutOfMemory:       "reduce working-set size or run in smaller batches",
	domain.ErrRateLimit:         "back off and retry after the rate-limit window",
	domain.ErrInvalidArgs:       "correct the arguments against the tool's schema",
	domain.ErrDependencyMissing: "install the missing dependency",
	domain.ErrSyntax:            "fix the syntax error the tool reported",
	domain.ErrUnknown:           "gather more diagnostic output before retrying",
}

// Reflect produces a Diagnosis: a five-layer why-chain (Why-1 proximate,
// Why-5 root) and a machine-friendly root-cause summary. It tries an LLM
// structured-output call first and falls back to a rule table, mirroring
// hector's AnalyzeToolResults/fallbackAnalysis duality in
// reasoning/reflection.go — both paths must produce the same shape.
func Reflect(ctx context.Context, client llms.Client, toolName string, args map[string]any, err *domain.ToolError, category domain.ErrorCategory) domain.Diagnosis {
	if client != nil {
		if d, ok := reflectViaLLM(ctx, client, toolName, args, err, category); ok {
			return d
		}
	}
	return reflectViaRuleTable(toolName, err, category)
}

func reflectViaRuleTable(toolName string, err *domain.ToolError, category domain.ErrorCategory) domain.Diagnosis {
	msg := ""
	if err != nil {
		msg = err.Message
	}
	chain := []string{
		fmt.Sprintf("%s failed: %s", toolName, msg),
		fmt.Sprintf("the failure classifies as %s", category),
		fmt.Sprintf("%s errors typically stem from environment or argument mismatch", category),
		"no prior successful recovery pattern is available for immediate comparison",
		fmt.Sprintf("root cause: %s", category),
	}
	return domain.Diagnosis{
		Category:           category,
		WhyChain:           chain,
		RootCauseCategory:  category,
		RootCauseDesc:      fmt.Sprintf("%s reported by %s", category, toolName),
		SuggestedDirection: ruleTableDirection[category],
	}
}

// llmDiagnosis is the structured-output shape requested from the LLM.
type llmDiagnosis struct {
	WhyChain           []string `json:"why_chain"`
	RootCauseDesc      string   `json:"root_cause_description"`
	SuggestedDirection string   `json:"suggested_direction"`
}

func reflectViaLLM(ctx context.Context, client llms.Client, toolName string, args map[string]any, err *domain.ToolError, category domain.ErrorCategory) (domain.Diagnosis, bool) {
	prompt := fmt.Sprintf("Tool %q failed with category %s and message %q. Produce a five-layer why-chain from proximate cause to root cause.", toolName, category, errMessage(err))
	resp, callErr := client.Chat(ctx, []llms.Message{
		{Role: llms.RoleSystem, Content: "You are a diagnostic assistant producing structured root-cause analyses."},
		{Role: llms.RoleUser, Content: prompt},
	}, llms.Options{
		ResponseFormat: llms.FormatJSONSchema,
		Schema:         llms.SchemaFor(llmDiagnosis{}),
	})
	if callErr != nil || resp.JSON == "" {
		return domain.Diagnosis{}, false
	}

	var parsed llmDiagnosis
	if jsonErr := json.Unmarshal([]byte(resp.JSON), &parsed); jsonErr != nil || len(parsed.WhyChain) == 0 {
		return domain.Diagnosis{}, false
	}
	if len(parsed.WhyChain) > 5 {
		parsed.WhyChain = parsed.WhyChain[:5]
	}
	return domain.Diagnosis{
		Category:           category,
		WhyChain:           parsed.WhyChain,
		RootCauseCategory:  category,
		RootCauseDesc:      parsed.RootCauseDesc,
		SuggestedDirection: parsed.SuggestedDirection,
	}, true
}

func errMessage(err *domain.ToolError) string {
	if err == nil {
		return ""
	}
	return err.Message
}
