package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Workspace confines relative tool paths to one root directory. Every
// concrete file/command tool resolves its path arguments through Resolve
// before touching the filesystem, so path traversal is caught in one
// place rather than re-implemented per tool.
type Workspace struct {
	root string
}

// NewWorkspace returns a Workspace rooted at root (made absolute).
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("tools: resolve workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// ErrPathTraversal is returned by Resolve when path escapes the workspace
// root; callers map it to domain.ErrPermissionDenied.
var ErrPathTraversal = fmt.Errorf("path escapes workspace root")

// Resolve joins path onto the workspace root and verifies the result stays
// within it. An absolute path is treated as relative to the root by
// stripping any leading separator, never as a literal filesystem path.
func (w *Workspace) Resolve(path string) (string, error) {
	joined := filepath.Join(w.root, strings.TrimLeft(path, string(filepath.Separator)))
	if joined != w.root && !strings.HasPrefix(joined, w.root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}
