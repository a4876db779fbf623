// Package cost accumulates per-team and per-agent token and USD spend,
// keeps a call log, and records model escalations.
package cost

import (
	"sync"
	"time"

	"github.com/AGENTMESH/internal/memory"
)

// callLogCap bounds the per-team call log
const callLogCap = 200

// UsageRecord is one model call's accounting input
type UsageRecord struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Model        string  `json:"model"`
}

// AgentUsage is the accumulated spend of one agent
type AgentUsage struct {
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Requests     int     `json:"requests"`
	LastModel    string  `json:"last_model,omitempty"`
}

// CallEntry is one entry in the newest-first call log
type CallEntry struct {
	Agent  string    `json:"agent"`
	Model  string    `json:"model"`
	Tokens int       `json:"tokens"`
	Cost   float64   `json:"cost"`
	At     time.Time `json:"at"`
}

// Escalation records a model swap after repeated failures
type Escalation struct {
	Agent    string    `json:"agent"`
	OldModel string    `json:"old_model"`
	NewModel string    `json:"new_model"`
	At       time.Time `json:"at"`
}

type teamCosts struct {
	agents      map[string]*AgentUsage
	calls       []CallEntry // newest first
	escalations []Escalation
}

// Tracker accumulates usage per team. An optional persistence store
// answers team-wide totals over completed tasks.
type Tracker struct {
	mu    sync.Mutex
	teams map[string]*teamCosts
	store memory.Store
}

// NewTracker creates a tracker. store may be nil; persisted totals are
// then unavailable.
func NewTracker(store memory.Store) *Tracker {
	return &Tracker{
		teams: make(map[string]*teamCosts),
		store: store,
	}
}

// ResolveCost fills in the cost of a record from the pricing table
// when the model client did not supply one.
func ResolveCost(rec UsageRecord) float64 {
	if rec.CostUSD != 0 {
		return rec.CostUSD
	}
	if rec.Model != "" {
		return Calculate(rec.Model, rec.InputTokens, rec.OutputTokens)
	}
	return 0
}

// RecordUsage adds a call's tokens and cost to an agent's accumulator
func (t *Tracker) RecordUsage(teamID, agent string, rec UsageRecord) {
	cost := ResolveCost(rec)

	t.mu.Lock()
	defer t.mu.Unlock()

	usage := t.agentFor(teamID, agent)
	usage.InputTokens += int64(rec.InputTokens)
	usage.OutputTokens += int64(rec.OutputTokens)
	usage.CostUSD += cost
	usage.Requests++
	if rec.Model != "" {
		usage.LastModel = rec.Model
	}
}

// RecordCall prepends an entry to the team's call log
func (t *Tracker) RecordCall(teamID, agent string, rec UsageRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	team := t.teamFor(teamID)
	entry := CallEntry{
		Agent:  agent,
		Model:  rec.Model,
		Tokens: rec.InputTokens + rec.OutputTokens,
		Cost:   ResolveCost(rec),
		At:     time.Now(),
	}
	team.calls = append([]CallEntry{entry}, team.calls...)
	if len(team.calls) > callLogCap {
		team.calls = team.calls[:callLogCap]
	}
}

// RecordEscalation logs a model escalation for an agent
func (t *Tracker) RecordEscalation(teamID, agent, oldModel, newModel string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	team := t.teamFor(teamID)
	team.escalations = append(team.escalations, Escalation{
		Agent:    agent,
		OldModel: oldModel,
		NewModel: newModel,
		At:       time.Now(),
	})
}

// GetAgentUsage returns one agent's accumulated spend
func (t *Tracker) GetAgentUsage(teamID, agent string) AgentUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	team, ok := t.teams[teamID]
	if !ok {
		return AgentUsage{}
	}
	usage, ok := team.agents[agent]
	if !ok {
		return AgentUsage{}
	}
	return *usage
}

// GetTeamUsage returns a copy of every agent's accumulated spend
func (t *Tracker) GetTeamUsage(teamID string) map[string]AgentUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]AgentUsage)
	team, ok := t.teams[teamID]
	if !ok {
		return out
	}
	for name, usage := range team.agents {
		out[name] = *usage
	}
	return out
}

// Calls returns the newest-first call log for a team
func (t *Tracker) Calls(teamID string, limit int) []CallEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	team, ok := t.teams[teamID]
	if !ok {
		return nil
	}
	calls := team.calls
	if limit > 0 && limit < len(calls) {
		calls = calls[:limit]
	}
	out := make([]CallEntry, len(calls))
	copy(out, calls)
	return out
}

// Escalations returns the escalation log for a team
func (t *Tracker) Escalations(teamID string) []Escalation {
	t.mu.Lock()
	defer t.mu.Unlock()

	team, ok := t.teams[teamID]
	if !ok {
		return nil
	}
	out := make([]Escalation, len(team.escalations))
	copy(out, team.escalations)
	return out
}

// TeamPersistedTotals aggregates spend recorded on completed tasks
func (t *Tracker) TeamPersistedTotals(teamID string) (*memory.TaskCostSummary, error) {
	if t.store == nil {
		return &memory.TaskCostSummary{}, nil
	}
	return t.store.SumTaskCostByTeam(teamID)
}

// DropTeam discards a team's in-memory accounting
func (t *Tracker) DropTeam(teamID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.teams, teamID)
}

func (t *Tracker) teamFor(teamID string) *teamCosts {
	team, ok := t.teams[teamID]
	if !ok {
		team = &teamCosts{agents: make(map[string]*AgentUsage)}
		t.teams[teamID] = team
	}
	return team
}

func (t *Tracker) agentFor(teamID, agent string) *AgentUsage {
	team := t.teamFor(teamID)
	usage, ok := team.agents[agent]
	if !ok {
		usage = &AgentUsage{}
		team.agents[agent] = usage
	}
	return usage
}
