// Package builtin implements the file, shell, git and decision-graph
// tools of the static catalog. The remaining catalog names (peer_*,
// context_*, team_*, sub_agent, file_edit, lsp_diagnostics) are
// implemented by external collaborators and registered at wiring time.
package builtin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AGENTMESH/internal/tools"
)

const (
	// maxReadBytes caps one file_read result
	maxReadBytes = 256 * 1024
	// maxSearchResults caps content_search and file_search output lines
	maxSearchResults = 100
)

// resolvePath confines a relative path to the project root
func resolvePath(root, rel string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("no project path configured")
	}
	abs := filepath.Join(root, filepath.Clean("/"+rel))
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the project", rel)
	}
	return abs, nil
}

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

// FileRead implements file_read
type FileRead struct{}

func (FileRead) Name() string        { return tools.ToolFileRead }
func (FileRead) Description() string { return tools.Describe(tools.ToolFileRead) }
func (FileRead) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Project-relative file path"},
		},
		"required": []string{"path"},
	}
}

func (FileRead) Run(params map[string]any, tc tools.Context) (string, error) {
	path, err := resolvePath(tc.ProjectPath, stringParam(params, "path"))
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > maxReadBytes {
		return string(data[:maxReadBytes]) + "\n... (truncated)", nil
	}
	return string(data), nil
}

// FileWrite implements file_write
type FileWrite struct{}

func (FileWrite) Name() string        { return tools.ToolFileWrite }
func (FileWrite) Description() string { return tools.Describe(tools.ToolFileWrite) }
func (FileWrite) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Project-relative file path"},
			"content": map[string]any{"type": "string", "description": "Full file content"},
		},
		"required": []string{"path", "content"},
	}
}

func (FileWrite) Run(params map[string]any, tc tools.Context) (string, error) {
	path, err := resolvePath(tc.ProjectPath, stringParam(params, "path"))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	content := stringParam(params, "content")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes", len(content)), nil
}

// DirectoryList implements directory_list
type DirectoryList struct{}

func (DirectoryList) Name() string        { return tools.ToolDirectoryList }
func (DirectoryList) Description() string { return tools.Describe(tools.ToolDirectoryList) }
func (DirectoryList) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Project-relative directory, default project root"},
		},
	}
}

func (DirectoryList) Run(params map[string]any, tc tools.Context) (string, error) {
	dir, err := resolvePath(tc.ProjectPath, stringParam(params, "path"))
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// ContentSearch implements content_search: a plain substring scan over
// project files, skipping hidden directories.
type ContentSearch struct{}

func (ContentSearch) Name() string        { return tools.ToolContentSearch }
func (ContentSearch) Description() string { return tools.Describe(tools.ToolContentSearch) }
func (ContentSearch) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string", "description": "Substring to search for"},
		},
		"required": []string{"pattern"},
	}
}

func (ContentSearch) Run(params map[string]any, tc tools.Context) (string, error) {
	pattern := stringParam(params, "pattern")
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	if tc.ProjectPath == "" {
		return "", fmt.Errorf("no project path configured")
	}

	var hits []string
	err := filepath.WalkDir(tc.ProjectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != tc.ProjectPath {
				return filepath.SkipDir
			}
			return nil
		}
		if len(hits) >= maxSearchResults {
			return filepath.SkipAll
		}
		data, err := os.ReadFile(path)
		if err != nil || !strings.Contains(string(data), pattern) {
			return nil
		}
		rel, _ := filepath.Rel(tc.ProjectPath, path)
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, pattern) {
				hits = append(hits, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(hits) >= maxSearchResults {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return "no matches", nil
	}
	return strings.Join(hits, "\n"), nil
}

// FileSearch implements file_search: find files whose project-relative
// path contains the pattern.
type FileSearch struct{}

func (FileSearch) Name() string        { return tools.ToolFileSearch }
func (FileSearch) Description() string { return tools.Describe(tools.ToolFileSearch) }
func (FileSearch) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string", "description": "Substring of the file path to match"},
		},
		"required": []string{"pattern"},
	}
}

func (FileSearch) Run(params map[string]any, tc tools.Context) (string, error) {
	pattern := stringParam(params, "pattern")
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	if tc.ProjectPath == "" {
		return "", fmt.Errorf("no project path configured")
	}

	var hits []string
	err := filepath.WalkDir(tc.ProjectPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != tc.ProjectPath {
				return filepath.SkipDir
			}
			return nil
		}
		if len(hits) >= maxSearchResults {
			return filepath.SkipAll
		}
		rel, _ := filepath.Rel(tc.ProjectPath, path)
		if strings.Contains(rel, pattern) {
			hits = append(hits, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return "no matches", nil
	}
	sort.Strings(hits)
	return strings.Join(hits, "\n"), nil
}
