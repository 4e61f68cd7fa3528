package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/forgekeeper/agentcore/domain"
	"github.com/forgekeeper/agentcore/registry"
)

// Registry is the concrete Executor: a name -> Tool registry that also
// enumerates tools for planning prompts.
type Registry struct {
	tools *registry.BaseRegistry[Tool]
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: registry.NewBaseRegistry[Tool]()}
}

// RegisterTool adds a tool under its own Info().Name.
func (r *Registry) RegisterTool(t Tool) error {
	name := t.Info().Name
	if name == "" {
		return fmt.Errorf("tools: tool name cannot be empty")
	}
	return r.tools.Register(name, t)
}

// GetTool implements Executor.
func (r *Registry) GetTool(name string) (Tool, bool) {
	return r.tools.Get(name)
}

// ListTools implements Executor, sorted by name for stable planning
// prompts.
func (r *Registry) ListTools() []Info {
	infos := make([]Info, 0, r.tools.Count())
	for _, t := range r.tools.List() {
		infos = append(infos, t.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Execute implements Executor. A name outside the registry yields a failed
// Result with ToolError Name "tool_not_found" (classified as
// domain.ErrToolNotFound) and a nil error, without invoking any Tool, per
// spec.md §6.
func (r *Registry) Execute(ctx context.Context, inv Invocation) (Result, error) {
	t, ok := r.GetTool(inv.ToolName)
	if !ok {
		return Result{
			OK: false,
			Error: &domain.ToolError{
				Tool:    inv.ToolName,
				Name:    "tool_not_found",
				Message: fmt.Sprintf("tool %q is not registered", inv.ToolName),
			},
		}, nil
	}
	return t.Execute(ctx, inv.Args)
}
