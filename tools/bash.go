package tools

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/forgekeeper/agentcore/domain"
)

// BashConfig configures the run_bash tool. It is decoded from a tool's
// generic config map via mapstructure (see config.go), replacing hector's
// hand-rolled field-by-field copy in NewCommandToolWithConfig.
type BashConfig struct {
	AllowedCommands  []string      `mapstructure:"allowed_commands"`
	MaxExecutionTime time.Duration `mapstructure:"max_execution_time"`
	EnableSandboxing bool          `mapstructure:"enable_sandboxing"`
}

func defaultBashConfig() BashConfig {
	return BashConfig{
		AllowedCommands: []string{
			"cat", "head", "tail", "ls", "find", "grep", "wc", "pwd",
			"git", "npm", "go", "curl", "echo", "mkdir", "rm", "mv", "cp",
		},
		MaxExecutionTime: 30 * time.Second,
		EnableSandboxing: true,
	}
}

// BashTool runs a shell command rooted at a workspace, with an allowlist
// of base commands. Adapted from tools/command.go's CommandTool.
type BashTool struct {
	cfg       BashConfig
	workspace *Workspace
}

// NewBashTool constructs a BashTool. A zero cfg is replaced with secure
// defaults.
func NewBashTool(cfg BashConfig, ws *Workspace) *BashTool {
	if len(cfg.AllowedCommands) == 0 {
		cfg = defaultBashConfig()
	}
	if cfg.MaxExecutionTime == 0 {
		cfg.MaxExecutionTime = 30 * time.Second
	}
	return &BashTool{cfg: cfg, workspace: ws}
}

func (t *BashTool) Info() Info {
	return Info{
		Name:        "run_bash",
		Description: "Run a shell command inside the sandboxed workspace",
		Parameters: []Parameter{
			{Name: "command", Type: "string", Description: "Shell command to execute", Required: true},
		},
	}
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return Result{OK: false, Error: &domain.ToolError{Tool: "run_bash", Name: "invalid_args", Message: "command is required"}}, nil
	}

	if t.cfg.EnableSandboxing && !t.isAllowed(t.baseCommand(command)) {
		return Result{OK: false, Error: &domain.ToolError{
			Tool: "run_bash", Name: "permission_denied",
			Message: "command not in allowlist: " + t.baseCommand(command),
		}}, nil
	}

	runCtx := ctx
	if t.cfg.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.cfg.MaxExecutionTime)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	if t.workspace != nil {
		cmd.Dir = t.workspace.Root()
	}

	output, err := cmd.CombinedOutput()
	if err == nil {
		return Result{OK: true, Output: string(output)}, nil
	}

	toolErr := &domain.ToolError{Tool: "run_bash", Message: err.Error()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		code := exitErr.ExitCode()
		toolErr.ExitCode = &code
	}
	if runCtx.Err() != nil {
		toolErr.Name = "timeout"
	}
	return Result{OK: false, Output: string(output), Error: toolErr}, nil
}

func (t *BashTool) baseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';' || r == '&'
	})
	if len(parts) == 0 {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(parts[0]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (t *BashTool) isAllowed(base string) bool {
	for _, allowed := range t.cfg.AllowedCommands {
		if base == allowed {
			return true
		}
	}
	return false
}
