package tools

import (
	"context"
	"os/exec"
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

// GitTool runs a constrained set of git subcommands inside the workspace.
// It is a thin, allowlisted wrapper rather than reusing BashTool directly
// so planning prompts can describe git's argument shape precisely.
type GitTool struct {
	workspace *Workspace
	timeout   time.Duration
}

func NewGitTool(ws *Workspace) *GitTool {
	return &GitTool{workspace: ws, timeout: 60 * time.Second}
}

func (t *GitTool) Info() Info {
	return Info{
		Name:        "git",
		Description: "Run a git subcommand (clone, status, diff, log, add, commit) inside the workspace",
		Parameters: []Parameter{
			{Name: "args", Type: "array", Description: "git subcommand and arguments, e.g. [\"clone\", \"<url>\", \"dest\"]", Required: true},
		},
	}
}

var allowedGitSubcommands = map[string]bool{
	"clone": true, "status": true, "diff": true, "log": true,
	"add": true, "commit": true, "branch": true, "checkout": true,
	"--version": true,
}

func (t *GitTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	raw, ok := args["args"].([]any)
	if !ok || len(raw) == 0 {
		return Result{OK: false, Error: &domain.ToolError{Tool: "git", Name: "invalid_args", Message: "args must be a non-empty array"}}, nil
	}
	gitArgs := make([]string, 0, len(raw))
	for _, a := range raw {
		s, ok := a.(string)
		if !ok {
			return Result{OK: false, Error: &domain.ToolError{Tool: "git", Name: "invalid_args", Message: "all args must be strings"}}, nil
		}
		gitArgs = append(gitArgs, s)
	}
	if !allowedGitSubcommands[gitArgs[0]] {
		return Result{OK: false, Error: &domain.ToolError{Tool: "git", Name: "permission_denied", Message: "git subcommand not allowed: " + gitArgs[0]}}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", gitArgs...)
	if t.workspace != nil {
		cmd.Dir = t.workspace.Root()
	}
	output, err := cmd.CombinedOutput()
	if err == nil {
		return Result{OK: true, Output: string(output)}, nil
	}

	toolErr := &domain.ToolError{Tool: "git", Message: err.Error()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		toolErr.ExitCode = &code
		if code == 127 {
			toolErr.Name = "command_not_found"
		}
	}
	if runCtx.Err() != nil {
		toolErr.Name = "timeout"
	}
	return Result{OK: false, Output: string(output), Error: toolErr}, nil
}
