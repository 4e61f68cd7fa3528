package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *Workspace) {
	t.Helper()
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	reg, err := DefaultRegistry(ws)
	require.NoError(t, err)
	return reg, ws
}

func TestExecuteUnknownToolYieldsToolNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	res, err := reg.Execute(context.Background(), Invocation{ToolName: "does_not_exist"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "tool_not_found", res.Error.Name)
}

func TestWriteThenReadFileRoundTrips(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	res, err := reg.Execute(ctx, Invocation{ToolName: "write_file", Args: map[string]any{"path": "notes/a.txt", "content": "hello"}})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "notes/a.txt", res.Artifacts[0].Path)

	res, err = reg.Execute(ctx, Invocation{ToolName: "read_file", Args: map[string]any{"path": "notes/a.txt"}})
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Equal(t, "hello", res.Output)
}

func TestWorkspaceResolveRejectsTraversal(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)

	_, err = ws.Resolve("../../etc/passwd")
	assert.ErrorIs(t, err, ErrPathTraversal)

	resolved, err := ws.Resolve("a/b/c.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
	assert.Contains(t, resolved, ws.Root())
}

func TestReadFileMissingIsFileNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	res, err := reg.Execute(context.Background(), Invocation{ToolName: "read_file", Args: map[string]any{"path": "missing.txt"}})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "ENOENT", res.Error.Name)
}

func TestBashToolRejectsDisallowedCommand(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	bash := NewBashTool(BashConfig{AllowedCommands: []string{"echo"}, EnableSandboxing: true}, ws)

	res, err := bash.Execute(context.Background(), map[string]any{"command": "rm -rf /"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "permission_denied", res.Error.Name)
}

func TestBashToolRunsAllowedCommand(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	require.NoError(t, err)
	bash := NewBashTool(BashConfig{AllowedCommands: []string{"echo"}, EnableSandboxing: true}, ws)

	res, err := bash.Execute(context.Background(), map[string]any{"command": "echo hi"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Contains(t, res.Output, "hi")
}
