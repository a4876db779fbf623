// Package tools defines the tool invocation port. Tool
// implementations live outside the core; this package carries the
// static name catalog, the invocation contract, and a registry that
// refuses unknown tools.
package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AGENTMESH/internal/modelclient"
	"github.com/AGENTMESH/internal/types"
)

// ErrUnknownTool is returned when a name is outside the static catalog
// or no implementation has been registered for it.
var ErrUnknownTool = errors.New("tools: unknown tool")

// Context is injected into every tool invocation. Snapshot carries the
// agent's conversation at invocation time so tools never call back
// into the agent for it.
type Context struct {
	ProjectPath string
	SessionID   string
	TeamID      string
	AgentName   string
	Snapshot    []types.Message
}

// Tool is one invocable capability
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any
	Run(params map[string]any, tc Context) (string, error)
}

// The tool universe. Role whitelists and registrations resolve
// against these names; anything else is refused.
const (
	ToolFileRead      = "file_read"
	ToolFileWrite     = "file_write"
	ToolFileEdit      = "file_edit"
	ToolFileSearch    = "file_search"
	ToolContentSearch = "content_search"
	ToolDirectoryList = "directory_list"
	ToolShell         = "shell"
	ToolGit           = "git"

	ToolDecisionLog   = "decision_log"
	ToolDecisionQuery = "decision_query"

	ToolSubAgent       = "sub_agent"
	ToolLSPDiagnostics = "lsp_diagnostics"
	ToolTeamSpawn      = "team_spawn"
	ToolTeamAssign     = "team_assign"
	ToolTeamProgress   = "team_progress"
	ToolTeamDissolve   = "team_dissolve"

	ToolPeerMessage         = "peer_message"
	ToolPeerDiscovery       = "peer_discovery"
	ToolPeerClaimRegion     = "peer_claim_region"
	ToolPeerReview          = "peer_review"
	ToolPeerCreateTask      = "peer_create_task"
	ToolPeerAskQuestion     = "peer_ask_question"
	ToolPeerAnswerQuestion  = "peer_answer_question"
	ToolPeerForwardQuestion = "peer_forward_question"
	ToolContextRetrieve     = "context_retrieve"
	ToolContextOffload      = "context_offload"
)

// catalog is the static name table
var catalog = map[string]string{
	ToolFileRead:      "Read a file from the project",
	ToolFileWrite:     "Write or overwrite a file in the project",
	ToolFileEdit:      "Replace an exact text range in a project file",
	ToolFileSearch:    "Find project files by name",
	ToolContentSearch: "Search project file contents for a pattern",
	ToolDirectoryList: "List entries under a project directory",
	ToolShell:         "Run a shell command in the project",
	ToolGit:           "Run a git operation (status, diff, commit) in the project",

	ToolDecisionLog:   "Record a decision node in the team decision graph",
	ToolDecisionQuery: "Query the team decision graph",

	ToolSubAgent:       "Run a one-shot sub-agent on a focused prompt",
	ToolLSPDiagnostics: "Fetch language server diagnostics for a file",
	ToolTeamSpawn:      "Spawn a new agent or sub-team",
	ToolTeamAssign:     "Assign a team task to an agent",
	ToolTeamProgress:   "Report progress on the team's tasks",
	ToolTeamDissolve:   "Dissolve a team and its sub-teams",

	ToolPeerMessage:         "Send a message to a teammate",
	ToolPeerDiscovery:       "Share a discovery with the team",
	ToolPeerClaimRegion:     "Claim a file region for exclusive editing",
	ToolPeerReview:          "Request a review from a teammate",
	ToolPeerCreateTask:      "Create a task on the team board",
	ToolPeerAskQuestion:     "Ask a question routed to a teammate or the team",
	ToolPeerAnswerQuestion:  "Answer a routed question",
	ToolPeerForwardQuestion: "Forward a question to another teammate",
	ToolContextRetrieve:     "Retrieve offloaded context from a keeper",
	ToolContextOffload:      "Offload conversation context to a keeper",
}

// Known reports whether a name is in the static catalog
func Known(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Describe returns the catalog description of a known tool
func Describe(name string) string {
	return catalog[name]
}

// AllNames returns every catalog name, sorted
func AllNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry maps catalog names to registered implementations
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register installs a tool implementation. Names outside the static
// catalog are refused.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if !Known(name) {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
	return nil
}

// Get resolves one tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool, nil
}

// Invoke runs a registered tool. Unknown names are refused rather
// than guessed at.
func (r *Registry) Invoke(name string, params map[string]any, tc Context) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return tool.Run(params, tc)
}

// Resolve maps a role's tool name list to implementations. Any
// unknown or unregistered name fails the whole resolution.
func (r *Registry) Resolve(names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		tool, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, tool)
	}
	return out, nil
}

// Specs builds model-facing descriptors for a name list. Registered
// tools contribute their schema; bare catalog names get the catalog
// description only.
func (r *Registry) Specs(names []string) []modelclient.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]modelclient.ToolSpec, 0, len(names))
	for _, name := range names {
		if !Known(name) {
			continue
		}
		spec := modelclient.ToolSpec{Name: name, Description: catalog[name]}
		if tool, ok := r.tools[name]; ok {
			spec.Schema = tool.Schema()
			if d := tool.Description(); d != "" {
				spec.Description = d
			}
		}
		specs = append(specs, spec)
	}
	return specs
}
