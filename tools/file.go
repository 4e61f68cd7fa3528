package tools

import (
	"context"
	"os"

	"github.com/forgekeeper/agentcore/domain"
)

// classifyFSError maps a raw filesystem error into the ToolError shape the
// Error Classifier (package diagnostics) expects to categorize, without
// itself deciding the category.
func classifyFSError(tool, path string, err error) *domain.ToolError {
	te := &domain.ToolError{Tool: tool, Message: err.Error()}
	switch {
	case os.IsNotExist(err):
		te.Name = "ENOENT"
	case os.IsPermission(err):
		te.Name = "EACCES"
	}
	return te
}

// ReadFileTool reads one file's contents from the workspace.
type ReadFileTool struct{ workspace *Workspace }

func NewReadFileTool(ws *Workspace) *ReadFileTool { return &ReadFileTool{workspace: ws} }

func (t *ReadFileTool) Info() Info {
	return Info{
		Name:        "read_file",
		Description: "Read a file's contents from the workspace",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Workspace-relative file path", Required: true},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return Result{OK: false, Error: &domain.ToolError{Tool: "read_file", Name: "invalid_args", Message: "path is required"}}, nil
	}
	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return Result{OK: false, Error: &domain.ToolError{Tool: "read_file", Name: "permission_denied", Message: err.Error()}}, nil
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return Result{OK: false, Error: classifyFSError("read_file", path, err)}, nil
	}
	return Result{OK: true, Output: string(content)}, nil
}

// WriteFileTool writes content to a file in the workspace, creating parent
// directories as needed.
type WriteFileTool struct{ workspace *Workspace }

func NewWriteFileTool(ws *Workspace) *WriteFileTool { return &WriteFileTool{workspace: ws} }

func (t *WriteFileTool) Info() Info {
	return Info{
		Name:        "write_file",
		Description: "Write content to a file in the workspace",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Workspace-relative file path", Required: true},
			{Name: "content", Type: "string", Description: "Content to write", Required: true},
		},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return Result{OK: false, Error: &domain.ToolError{Tool: "write_file", Name: "invalid_args", Message: "path is required"}}, nil
	}
	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return Result{OK: false, Error: &domain.ToolError{Tool: "write_file", Name: "permission_denied", Message: err.Error()}}, nil
	}
	if err := os.MkdirAll(parentDir(resolved), 0o755); err != nil {
		return Result{OK: false, Error: classifyFSError("write_file", path, err)}, nil
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return Result{OK: false, Error: classifyFSError("write_file", path, err)}, nil
	}
	return Result{OK: true, Output: "wrote " + path, Artifacts: []domain.Artifact{{Path: path, Kind: "file"}}}, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// ReadDirTool lists directory entries in the workspace.
type ReadDirTool struct{ workspace *Workspace }

func NewReadDirTool(ws *Workspace) *ReadDirTool { return &ReadDirTool{workspace: ws} }

func (t *ReadDirTool) Info() Info {
	return Info{
		Name:        "read_dir",
		Description: "List entries of a directory in the workspace",
		Parameters: []Parameter{
			{Name: "path", Type: "string", Description: "Workspace-relative directory path", Required: true},
		},
	}
}

func (t *ReadDirTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, err := t.workspace.Resolve(path)
	if err != nil {
		return Result{OK: false, Error: &domain.ToolError{Tool: "read_dir", Name: "permission_denied", Message: err.Error()}}, nil
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return Result{OK: false, Error: classifyFSError("read_dir", path, err)}, nil
	}
	out := ""
	for _, e := range entries {
		out += e.Name() + "\n"
	}
	return Result{OK: true, Output: out}, nil
}
