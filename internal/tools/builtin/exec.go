package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/AGENTMESH/internal/tools"
)

// commandTimeout bounds one shell invocation
const commandTimeout = 60 * time.Second

// Shell implements shell: a command line executed in the project
// directory with a hard timeout.
type Shell struct{}

func (Shell) Name() string        { return tools.ToolShell }
func (Shell) Description() string { return tools.Describe(tools.ToolShell) }
func (Shell) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Shell command line"},
		},
		"required": []string{"command"},
	}
}

func (Shell) Run(params map[string]any, tc tools.Context) (string, error) {
	command := stringParam(params, "command")
	if command == "" {
		return "", fmt.Errorf("command is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = tc.ProjectPath
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", commandTimeout)
	}
	if err != nil {
		return "", fmt.Errorf("command failed: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}
