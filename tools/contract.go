// Package tools implements the Tool Executor contract (spec.md §6): a
// registry of named, sandboxed tool invocations the scheduler steps
// through while executing a plan.
package tools

import (
	"context"

	"github.com/forgekeeper/agentcore/domain"
)

// Invocation is one request to run a named tool with arguments.
type Invocation struct {
	ToolName string
	Args     map[string]any
}

// Result is the outcome of one Invocation.
type Result struct {
	OK        bool
	Output    string
	Artifacts []domain.Artifact
	Error     *domain.ToolError
}

// Info describes one registered tool for planning prompts.
type Info struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Parameter describes one named argument a tool accepts.
type Parameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Tool is one concrete, in-process tool implementation.
type Tool interface {
	Info() Info
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// Executor is the Tool Executor contract the scheduler and planner depend
// on. Concrete tools MUST be enumerable via a registry; invocations of a
// tool name outside the registry yield a failed Result whose ToolError
// Name is "tool_not_found" immediately, without reaching a concrete Tool
// implementation.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (Result, error)
	ListTools() []Info
	GetTool(name string) (Tool, bool)
}
