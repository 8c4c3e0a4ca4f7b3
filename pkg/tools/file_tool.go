package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"monarch/pkg/api"
)

// Workspace confines the file tools to a single directory subtree.
type Workspace struct {
	root string
}

// NewWorkspace creates the workspace directory if needed and returns a
// handle rooted at its absolute path.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace dir: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// ResolvePath maps a user-supplied relative name onto the workspace,
// rejecting anything that escapes the root.
func (w *Workspace) ResolvePath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("filename must not be empty")
	}
	cleaned := filepath.Clean(filepath.Join(w.root, name))
	if cleaned != w.root && !strings.HasPrefix(cleaned, w.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes the workspace", name)
	}
	return cleaned, nil
}

// ReadFileTool returns the content of a workspace file.
type ReadFileTool struct {
	ws *Workspace
}

func NewReadFileTool(ws *Workspace) *ReadFileTool { return &ReadFileTool{ws: ws} }

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read the content of a text file inside the agent workspace."
}

func (t *ReadFileTool) Parameters() []api.Parameter {
	return []api.Parameter{
		{Name: "filename", Type: api.ParamString, Description: "Path of the file relative to the workspace root.", Required: true},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename, _ := args["filename"].(string)
	path, err := t.ws.ResolvePath(filename)
	if err != nil {
		return "", err
	}
	return readWorkspaceFile(path, filename)
}

// readWorkspaceFile reads an already-resolved workspace path, reporting the
// user-supplied name in errors rather than the absolute path.
func readWorkspaceFile(path, name string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

// WriteFileTool writes text content to a workspace file, creating parent
// directories as needed.
type WriteFileTool struct {
	ws *Workspace
}

func NewWriteFileTool(ws *Workspace) *WriteFileTool { return &WriteFileTool{ws: ws} }

func (t *WriteFileTool) Name() string { return "write_file" }

func (t *WriteFileTool) Description() string {
	return "Write text content to a file inside the agent workspace, replacing any existing content."
}

func (t *WriteFileTool) Parameters() []api.Parameter {
	return []api.Parameter{
		{Name: "filename", Type: api.ParamString, Description: "Path of the file relative to the workspace root.", Required: true},
		{Name: "content", Type: api.ParamString, Description: "Full text content to write.", Required: true},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	filename, _ := args["filename"].(string)
	content, _ := args["content"].(string)

	path, err := t.ws.ResolvePath(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent dirs for %s: %w", filename, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), filename), nil
}
