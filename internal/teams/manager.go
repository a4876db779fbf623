// Package teams implements the teams manager: team and sub-team
// lifecycle, agent and keeper spawning, and the dissolution cascade.
package teams

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AGENTMESH/internal/agent"
	"github.com/AGENTMESH/internal/config"
	"github.com/AGENTMESH/internal/cost"
	"github.com/AGENTMESH/internal/keeper"
	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/modelclient"
	"github.com/AGENTMESH/internal/modelrouter"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/ratelimit"
	"github.com/AGENTMESH/internal/roles"
	"github.com/AGENTMESH/internal/tasks"
	"github.com/AGENTMESH/internal/teamtable"
	"github.com/AGENTMESH/internal/tools"
	"github.com/AGENTMESH/internal/types"
)

var (
	// ErrTeamNotFound means the team id has no live state
	ErrTeamNotFound = errors.New("teams: team not found")
	// ErrParentNotFound means a sub-team's parent is gone
	ErrParentNotFound = errors.New("teams: parent not found")
	// ErrMaxDepthExceeded means the sub-team nesting cap was hit
	ErrMaxDepthExceeded = errors.New("teams: max depth exceeded")
	// ErrAgentExists enforces unique agent names within a team
	ErrAgentExists = errors.New("teams: agent name already taken")
	// ErrAgentNotFound means no such agent in the team
	ErrAgentNotFound = errors.New("teams: agent not found")
	// ErrTemplateNotFound means the named template is not configured
	ErrTemplateNotFound = errors.New("teams: template not found")
)

var teamIDSanitizer = regexp.MustCompile(`[^a-z0-9-]`)

// GenerateTeamID derives a unique team id from a display name:
// lowercased, sanitized, truncated to 20 chars, with a random suffix.
func GenerateTeamID(name string) string {
	base := teamIDSanitizer.ReplaceAllString(strings.ToLower(name), "-")
	if len(base) > 20 {
		base = base[:20]
	}
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return base + "-" + base64.RawURLEncoding.EncodeToString(suffix)
}

// Deps are the shared services a manager wires into every team
type Deps struct {
	Config  *config.Config
	Bus     *pubsub.Bus
	Tables  *teamtable.Registry
	Limiter *ratelimit.Limiter
	Tracker *cost.Tracker
	Router  *modelrouter.Router
	Store   memory.Store
	Client  modelclient.Client
	Tools   *tools.Registry

	// ProjectRules and RepoMap are passed through to agents
	ProjectRules func(projectPath string) string
	RepoMap      func(projectPath string) string
}

type team struct {
	id          string
	name        string
	projectPath string
	agents      map[string]*agent.Agent
	keepers     map[string]*keeper.Keeper
	coordinator *tasks.Coordinator
}

// Manager owns all live teams
type Manager struct {
	mu         sync.Mutex
	deps       Deps
	teams      map[string]*team
	supervisor *Supervisor
}

// NewManager creates a manager over the given shared services. Agent
// workers run under a supervisor with crash loop protection.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:       deps,
		teams:      make(map[string]*team),
		supervisor: NewSupervisor(SupervisorConfig{}),
	}
}

// CreateTeam allocates a team with a fresh table and task coordinator
func (m *Manager) CreateTeam(name, projectPath string) (*types.Team, error) {
	id := GenerateTeamID(name)
	table := m.deps.Tables.Create(id)
	table.SetMeta(teamtable.Meta{ProjectPath: projectPath})

	t := &team{
		id:          id,
		name:        name,
		projectPath: projectPath,
		agents:      make(map[string]*agent.Agent),
		keepers:     make(map[string]*keeper.Keeper),
	}
	t.coordinator = tasks.NewCoordinator(id, m.deps.Store, m.deps.Bus, table, m.deps.Tracker)

	m.mu.Lock()
	m.teams[id] = t
	m.mu.Unlock()

	return &types.Team{ID: id, Name: name, ProjectPath: projectPath, CreatedAt: time.Now()}, nil
}

// CreateSubTeam nests a team under a parent, capped by depth
func (m *Manager) CreateSubTeam(parentID, spawningAgent, name string, maxDepth int) (*types.Team, error) {
	if maxDepth <= 0 {
		maxDepth = m.deps.Config.Teams.MaxSubTeamDepth
	}

	parentTable := m.deps.Tables.Get(parentID)
	if parentTable == nil {
		return nil, fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
	}
	parentMeta, _ := parentTable.GetMeta()
	if parentMeta.Depth+1 > maxDepth {
		return nil, fmt.Errorf("%w: depth %d", ErrMaxDepthExceeded, parentMeta.Depth+1)
	}

	sub, err := m.CreateTeam(name, parentMeta.ProjectPath)
	if err != nil {
		return nil, err
	}
	m.deps.Tables.Get(sub.ID).SetMeta(teamtable.Meta{
		ParentTeamID:  parentID,
		SpawningAgent: spawningAgent,
		Depth:         parentMeta.Depth + 1,
		ProjectPath:   parentMeta.ProjectPath,
	})
	parentTable.AddSubTeam(sub.ID)
	sub.ParentTeamID = parentID
	sub.Depth = parentMeta.Depth + 1
	return sub, nil
}

// SpawnOptions tune one agent spawn
type SpawnOptions struct {
	// Model overrides role-tier model selection
	Model string
}

// SpawnAgent starts an agent worker in a team. Names are unique
// within a team.
func (m *Manager) SpawnAgent(teamID, name, roleName string, opts SpawnOptions) (*agent.Agent, error) {
	role, err := roles.Lookup(roleName, m.deps.Config.Teams.Roles)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	t, ok := m.teams[teamID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	if _, taken := t.agents[name]; taken {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAgentExists, name)
	}
	// Reserve the name before releasing the lock
	t.agents[name] = nil
	m.mu.Unlock()

	model := opts.Model
	if model == "" {
		model = m.modelForTier(role.ModelTier)
	}
	if role.BudgetLimit > 0 {
		m.deps.Limiter.SetAgentLimit(teamID, name, role.BudgetLimit)
	}

	a := agent.Spawn(agent.Options{
		TeamID:      teamID,
		Name:        name,
		Role:        role,
		Model:       model,
		ProjectPath: t.projectPath,
	}, agent.Deps{
		Bus:          m.deps.Bus,
		Limiter:      m.deps.Limiter,
		Tracker:      m.deps.Tracker,
		Router:       m.deps.Router,
		Client:       m.deps.Client,
		Tools:        m.deps.Tools,
		Table:        m.deps.Tables.Get(teamID),
		Store:        m.deps.Store,
		Keepers:      m.Keepers,
		ProjectRules: m.deps.ProjectRules,
		RepoMap:      m.deps.RepoMap,
		HardAbort:    m.deps.Config.Teams.Budget.HardAbort,
		Supervise:    m.supervisor.Supervise,
	})

	m.mu.Lock()
	t.agents[name] = a
	m.mu.Unlock()
	return a, nil
}

// modelForTier maps a role's model tier onto the configured chain
func (m *Manager) modelForTier(tier string) string {
	if tier == "" || tier == roles.TierDefault {
		return m.deps.Config.Model.Default
	}
	return m.deps.Router.Select(&types.TeamTask{ModelHint: tier})
}

// KeeperOptions configure a spawned keeper
type KeeperOptions struct {
	ID              string
	Topic           string
	SourceAgent     string
	Messages        []types.Message
	Metadata        map[string]any
	PersistDebounce time.Duration
}

// SpawnKeeper starts a context keeper, registers it on the roster as
// keeper:<id>, and announces it to the team.
func (m *Manager) SpawnKeeper(teamID string, opts KeeperOptions) (*keeper.Keeper, error) {
	m.mu.Lock()
	t, ok := m.teams[teamID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	k, err := keeper.New(keeper.Options{
		ID:              opts.ID,
		TeamID:          teamID,
		Topic:           opts.Topic,
		SourceAgent:     opts.SourceAgent,
		Metadata:        opts.Metadata,
		Store:           m.deps.Store,
		Client:          m.deps.Client,
		Model:           m.deps.Config.Model.Default,
		PersistDebounce: opts.PersistDebounce,
	})
	if err != nil {
		return nil, err
	}
	if len(opts.Messages) > 0 {
		k.Store(opts.Messages, nil)
	}

	m.mu.Lock()
	t.keepers[k.ID()] = k
	m.mu.Unlock()

	state := k.State()
	if table := m.deps.Tables.Get(teamID); table != nil {
		table.RegisterAgent(types.AgentInfo{
			Name: "keeper:" + k.ID(),
			Role: "keeper",
			Meta: types.MetaMap{
				"type":   "keeper",
				"topic":  state.Topic,
				"tokens": state.TokenCount,
				"source": state.SourceAgent,
			},
		})
	}

	m.deps.Bus.Broadcast(pubsub.TeamTopic(teamID),
		pubsub.NewMessage(pubsub.MsgKeeperCreated, opts.SourceAgent, map[string]any{
			"id":     k.ID(),
			"topic":  state.Topic,
			"source": state.SourceAgent,
			"tokens": state.TokenCount,
		}))
	return k, nil
}

// Keepers returns the live keepers of a team
func (m *Manager) Keepers(teamID string) []*keeper.Keeper {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return nil
	}
	out := make([]*keeper.Keeper, 0, len(t.keepers))
	for _, k := range t.keepers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// StopAgent stops one agent and removes it from the roster
func (m *Manager) StopAgent(teamID, name string) error {
	m.mu.Lock()
	t, ok := m.teams[teamID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	a, ok := t.agents[name]
	if !ok || a == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	delete(t.agents, name)
	m.mu.Unlock()

	a.Stop()
	if table := m.deps.Tables.Get(teamID); table != nil {
		table.RemoveAgent(name)
	}
	return nil
}

// FindAgent resolves one live agent
func (m *Manager) FindAgent(teamID, name string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	a, ok := t.agents[name]
	if !ok || a == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return a, nil
}

// ListAgents returns the team roster from the shared table
func (m *Manager) ListAgents(teamID string) []types.AgentInfo {
	return m.deps.Tables.Get(teamID).ListAgents()
}

// ListSubTeams returns the team's direct children
func (m *Manager) ListSubTeams(teamID string) []string {
	return m.deps.Tables.Get(teamID).SubTeams()
}

// GetParentTeam returns the parent id, or "" for root teams
func (m *Manager) GetParentTeam(teamID string) string {
	meta, ok := m.deps.Tables.Get(teamID).GetMeta()
	if !ok {
		return ""
	}
	return meta.ParentTeamID
}

// Coordinator returns the team's task coordinator
func (m *Manager) Coordinator(teamID string) (*tasks.Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	return t.coordinator, nil
}

// Exists reports whether the team is live
func (m *Manager) Exists(teamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.teams[teamID]
	return ok
}

// TeamIDs lists all live teams
func (m *Manager) TeamIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.teams))
	for id := range m.teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DissolveTeam tears a team down: sub-teams cascade first, then
// agents stop, keepers flush, budgets reset and the table drops.
// Dissolving an unknown team is a no-op.
func (m *Manager) DissolveTeam(teamID string) error {
	m.mu.Lock()
	t, ok := m.teams[teamID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.teams, teamID)
	agents := make([]*agent.Agent, 0, len(t.agents))
	for _, a := range t.agents {
		if a != nil {
			agents = append(agents, a)
		}
	}
	keepers := make([]*keeper.Keeper, 0, len(t.keepers))
	for _, k := range t.keepers {
		keepers = append(keepers, k)
	}
	m.mu.Unlock()

	table := m.deps.Tables.Get(teamID)
	meta, _ := table.GetMeta()

	for _, sub := range table.SubTeams() {
		m.DissolveTeam(sub)
	}
	for _, a := range agents {
		a.Stop()
	}
	for _, k := range keepers {
		k.Terminate()
	}

	m.deps.Limiter.ResetTeam(teamID)
	m.deps.Tracker.DropTeam(teamID)
	m.deps.Tables.Drop(teamID)

	m.deps.Bus.Broadcast(pubsub.TeamTopic(teamID),
		pubsub.NewMessage(pubsub.MsgTeamDissolved, "", map[string]any{
			"team_id": teamID,
		}))
	if meta.ParentTeamID != "" && meta.SpawningAgent != "" {
		m.deps.Bus.Broadcast(pubsub.AgentTopic(meta.ParentTeamID, meta.SpawningAgent),
			pubsub.NewMessage(pubsub.MsgSubTeamCompleted, "", map[string]any{
				"team_id": teamID,
			}))
	}
	return nil
}

// SpawnFromTemplate creates a team and populates it from a configured
// template, expanding count entries to name-1, name-2, ...
func (m *Manager) SpawnFromTemplate(templateName, teamName, projectPath string) (*types.Team, error) {
	tmpl, ok := m.deps.Config.Teams.Templates[templateName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}

	t, err := m.CreateTeam(teamName, projectPath)
	if err != nil {
		return nil, err
	}
	for _, entry := range tmpl.Agents {
		count := entry.Count
		if count <= 0 {
			count = 1
		}
		for i := 1; i <= count; i++ {
			name := entry.Name
			if count > 1 {
				name = fmt.Sprintf("%s-%d", entry.Name, i)
			}
			if _, err := m.SpawnAgent(t.ID, name, entry.Role, SpawnOptions{Model: entry.Model}); err != nil {
				m.DissolveTeam(t.ID)
				return nil, fmt.Errorf("template %s: %w", templateName, err)
			}
		}
	}
	return t, nil
}
