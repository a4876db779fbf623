// Package roles carries the built-in role catalog. A role bundles a
// tool whitelist, a system prompt, an iteration cap, and an optional
// budget limit; config can override fields or define custom roles.
package roles

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AGENTMESH/internal/config"
	"github.com/AGENTMESH/internal/tools"
)

// ErrUnknownRole is returned when a role name matches neither the
// built-ins nor a configured custom role.
var ErrUnknownRole = errors.New("roles: unknown role")

// TierDefault means the router's default model applies
const TierDefault = "default"

// Role is a resolved role definition
type Role struct {
	Name          string
	Tools         []string
	MaxIterations int
	SystemPrompt  string
	ModelTier     string
	BudgetLimit   float64
}

// peerTools are granted to every role
var peerTools = []string{
	tools.ToolPeerMessage,
	tools.ToolPeerDiscovery,
	tools.ToolPeerClaimRegion,
	tools.ToolPeerReview,
	tools.ToolPeerCreateTask,
	tools.ToolPeerAskQuestion,
	tools.ToolPeerAnswerQuestion,
	tools.ToolPeerForwardQuestion,
	tools.ToolContextRetrieve,
	tools.ToolContextOffload,
}

var builtins = map[string]Role{
	"lead": {
		Name:          "lead",
		Tools:         tools.AllNames(),
		MaxIterations: 40,
		SystemPrompt: "You are the team lead. Break work into tasks, assign them, " +
			"spawn agents or sub-teams when needed, and keep the team unblocked. " +
			"Prefer delegating over doing everything yourself.",
		ModelTier: TierDefault,
	},
	"researcher": {
		Name: "researcher",
		Tools: withPeer(
			tools.ToolFileRead,
			tools.ToolFileSearch,
			tools.ToolContentSearch,
			tools.ToolDirectoryList,
			tools.ToolDecisionQuery,
		),
		MaxIterations: 25,
		SystemPrompt: "You are a researcher. Explore the codebase, gather facts, " +
			"and share findings as discoveries. You never modify files.",
		ModelTier: TierDefault,
	},
	"coder": {
		Name: "coder",
		Tools: withPeer(
			tools.ToolFileRead,
			tools.ToolFileWrite,
			tools.ToolFileEdit,
			tools.ToolFileSearch,
			tools.ToolContentSearch,
			tools.ToolDirectoryList,
			tools.ToolShell,
			tools.ToolGit,
			tools.ToolDecisionLog,
		),
		MaxIterations: 30,
		SystemPrompt: "You are a coder. Claim the regions you edit before writing, " +
			"keep changes focused, and log significant decisions.",
		ModelTier: TierDefault,
	},
	"reviewer": {
		Name: "reviewer",
		Tools: withPeer(
			tools.ToolFileRead,
			tools.ToolFileSearch,
			tools.ToolContentSearch,
			tools.ToolDirectoryList,
			tools.ToolLSPDiagnostics,
			tools.ToolDecisionQuery,
		),
		MaxIterations: 25,
		SystemPrompt: "You are a reviewer. Read changes carefully, point out " +
			"defects and risks, and give concrete actionable feedback. You never " +
			"modify files yourself.",
		ModelTier: TierDefault,
	},
	"tester": {
		Name: "tester",
		Tools: withPeer(
			tools.ToolFileRead,
			tools.ToolFileSearch,
			tools.ToolContentSearch,
			tools.ToolDirectoryList,
			tools.ToolShell,
		),
		MaxIterations: 25,
		SystemPrompt: "You are a tester. Run the test suite, reproduce reported " +
			"failures, and report exact commands and output. You never modify files.",
		ModelTier: TierDefault,
	},
}

func withPeer(names ...string) []string {
	out := append([]string(nil), names...)
	out = append(out, peerTools...)
	return out
}

// Names lists the built-in role names, sorted
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a role by name, applying config overrides. A name
// absent from the built-ins must be fully defined in config. Tool
// names are validated against the static catalog.
func Lookup(name string, overrides map[string]config.RoleOverride) (Role, error) {
	role, builtin := builtins[name]
	ov, configured := overrides[name]

	if !builtin && !configured {
		return Role{}, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
	if !builtin {
		role = Role{Name: name, MaxIterations: 25, ModelTier: TierDefault}
	} else {
		role.Tools = append([]string(nil), role.Tools...)
	}

	if configured {
		if len(ov.Tools) > 0 {
			role.Tools = append([]string(nil), ov.Tools...)
		}
		if ov.MaxIterations > 0 {
			role.MaxIterations = ov.MaxIterations
		}
		if ov.SystemPrompt != "" {
			role.SystemPrompt = ov.SystemPrompt
		}
		if ov.ModelTier != "" {
			role.ModelTier = ov.ModelTier
		}
		if ov.BudgetLimit > 0 {
			role.BudgetLimit = ov.BudgetLimit
		}
	}

	for _, tool := range role.Tools {
		if !tools.Known(tool) {
			return Role{}, fmt.Errorf("role %s: %w: %s", name, tools.ErrUnknownTool, tool)
		}
	}
	return role, nil
}
