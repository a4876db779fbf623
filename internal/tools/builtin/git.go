package builtin

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/AGENTMESH/internal/tools"
)

// runGit executes a git command in the project repository
func runGit(projectPath string, args ...string) (string, error) {
	if projectPath == "" {
		return "", fmt.Errorf("no project path configured")
	}
	cmd := exec.Command("git", args...)
	cmd.Dir = projectPath
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output)), nil
}

// Git implements the git tool: one entry point dispatching on the
// requested operation.
type Git struct{}

func (Git) Name() string        { return tools.ToolGit }
func (Git) Description() string { return tools.Describe(tools.ToolGit) }
func (Git) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{"type": "string", "description": "status, diff or commit"},
			"staged":    map[string]any{"type": "boolean", "description": "Diff staged changes instead of the working tree"},
			"message":   map[string]any{"type": "string", "description": "Commit message, required for commit"},
		},
		"required": []string{"operation"},
	}
}

func (Git) Run(params map[string]any, tc tools.Context) (string, error) {
	switch op := stringParam(params, "operation"); op {
	case "status":
		out, err := runGit(tc.ProjectPath, "status", "--porcelain")
		if err != nil {
			return "", err
		}
		if out == "" {
			return "working tree clean", nil
		}
		return out, nil

	case "diff":
		args := []string{"diff"}
		if staged, _ := params["staged"].(bool); staged {
			args = append(args, "--cached")
		}
		out, err := runGit(tc.ProjectPath, args...)
		if err != nil {
			return "", err
		}
		if out == "" {
			return "no changes", nil
		}
		return out, nil

	case "commit":
		message := stringParam(params, "message")
		if message == "" {
			return "", fmt.Errorf("message is required")
		}
		if _, err := runGit(tc.ProjectPath, "add", "-A"); err != nil {
			return "", err
		}
		return runGit(tc.ProjectPath, "commit", "-m", message)

	default:
		return "", fmt.Errorf("unknown git operation %q", op)
	}
}
