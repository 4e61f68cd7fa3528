// Package diagnostics implements the Error Classifier, Diagnostic
// Reflector, Recovery Planner and Pattern Learner from spec.md §4.5.
package diagnostics

import (
	"strings"

	"github.com/forgekeeper/agentcore/domain"
)

// Classify is a pure, deterministic function from a raw ToolError to a
// domain.ErrorCategory. Classifying the same error twice yields the same
// category (spec.md §8 round-trip property).
func Classify(err *domain.ToolError) domain.ErrorCategory {
	if err == nil {
		return domain.ErrUnknown
	}

	if err.Name == "tool_not_found" {
		return domain.ErrToolNotFound
	}

	if err.ExitCode != nil {
		switch *err.ExitCode {
		case 127:
			return domain.ErrCommandNotFound
		case 126:
			return domain.ErrPermissionDenied
		}
	}

	switch err.Name {
	case "EACCES", "permission_denied":
		return domain.ErrPermissionDenied
	case "ENOENT", "file_not_found":
		return domain.ErrFileNotFound
	case "ETIMEDOUT", "timeout":
		return domain.ErrTimeout
	case "EBUSY", "resource_busy":
		return domain.ErrResourceBusy
	case "auth":
		return domain.ErrAuth
	case "rate_limit":
		return domain.ErrRateLimit
	case "network":
		return domain.ErrNetwork
	case "invalid_args":
		return domain.ErrInvalidArgs
	}

	if err.HTTPCode != nil {
		switch *err.HTTPCode {
		case 401, 403:
			return domain.ErrAuth
		case 429:
			return domain.ErrRateLimit
		}
	}

	msg := strings.ToLower(err.Message)
	switch {
	case strings.Contains(msg, "out of memory") || strings.Contains(msg, "cannot allocate memory"):
		return domain.ErrOutOfMemory
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") || strings.Contains(msg, "network is unreachable"):
		return domain.ErrNetwork
	case strings.Contains(msg, "cannot find module") || strings.Contains(msg, "no module named") || strings.Contains(msg, "import error") || strings.Contains(msg, "cannot find package"):
		return domain.ErrDependencyMissing
	case strings.Contains(msg, "syntaxerror") || strings.Contains(msg, "syntax error") || strings.Contains(msg, "unexpected token"):
		return domain.ErrSyntax
	case strings.Contains(msg, "permission denied"):
		return domain.ErrPermissionDenied
	case strings.Contains(msg, "no such file or directory"):
		return domain.ErrFileNotFound
	case strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return domain.ErrTimeout
	case strings.Contains(msg, "resource temporarily unavailable") || strings.Contains(msg, "resource busy"):
		return domain.ErrResourceBusy
	case strings.Contains(msg, "schema") || strings.Contains(msg, "validation"):
		return domain.ErrInvalidArgs
	case strings.Contains(msg, "command not found"):
		return domain.ErrCommandNotFound
	}

	return domain.ErrUnknown
}
