// Package teamtable implements the per-team shared state table: the
// agent roster, discoveries log, region claims, task summary cache,
// pair sessions, sub-team links, and team metadata. Each team owns one
// Table; the Registry maps team ids to live tables.
//
// All read and write methods tolerate a nil receiver and return benign
// zero values, so operations racing a team dissolution never panic.
package teamtable

import (
	"sync"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// KeyKind discriminates the typed keys of a team table
type KeyKind string

const (
	KindAgent     KeyKind = "agent"
	KindDiscovery KeyKind = "discovery"
	KindClaim     KeyKind = "claim"
	KindTask      KeyKind = "task"
	KindMeta      KeyKind = "meta"
	KindPair      KeyKind = "pair"
	KindSubTeam   KeyKind = "sub_team"
)

// Key is a typed table key. A and B carry the kind-specific parts:
// {agent, name}, {discovery, seq}, {claim, path, agent}, {task, id},
// {pair, id}, {sub_team, id}.
type Key struct {
	Kind KeyKind
	A    string
	B    string
}

// Meta describes a team's place in the hierarchy
type Meta struct {
	ParentTeamID  string `json:"parent_team_id,omitempty"`
	SpawningAgent string `json:"spawning_agent,omitempty"`
	Depth         int    `json:"depth"`
	ProjectPath   string `json:"project_path,omitempty"`
}

// TaskSummary is a denormalized task row for fast status readout
type TaskSummary struct {
	ID     string           `json:"id"`
	Title  string           `json:"title"`
	Status types.TaskStatus `json:"status"`
	Owner  string           `json:"owner,omitempty"`
}

// PairSession records an active pair between a coder and a reviewer
type PairSession struct {
	ID        string         `json:"id"`
	Coder     string         `json:"coder"`
	Reviewer  string         `json:"reviewer"`
	StartedAt time.Time      `json:"started_at"`
	Opts      map[string]any `json:"opts,omitempty"`
}

// Table is one team's concurrent shared map
type Table struct {
	mu      sync.RWMutex
	entries map[Key]any
	seq     int64 // discovery sequence counter
	now     func() time.Time
}

// NewTable creates an empty team table
func NewTable() *Table {
	return &Table{
		entries: make(map[Key]any),
		now:     time.Now,
	}
}

// Registry maps team ids to their tables
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]*Table),
	}
}

// Create allocates a table for a team. Recreating an existing team's
// table replaces it.
func (r *Registry) Create(teamID string) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()

	table := NewTable()
	r.tables[teamID] = table
	return table
}

// Get returns the team's table, or nil if the team is gone. A nil
// Table is safe to call; its methods return zero values.
func (r *Registry) Get(teamID string) *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tables[teamID]
}

// Drop removes a team's table
func (r *Registry) Drop(teamID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, teamID)
}

// Exists reports whether a team currently has a table
func (r *Registry) Exists(teamID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[teamID]
	return ok
}

// TeamIDs lists all teams with live tables
func (r *Registry) TeamIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	return ids
}

// SetMeta stores the team's hierarchy metadata
func (t *Table) SetMeta(meta Meta) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[Key{Kind: KindMeta}] = meta
}

// GetMeta returns the team's hierarchy metadata
func (t *Table) GetMeta() (Meta, bool) {
	if t == nil {
		return Meta{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	meta, ok := t.entries[Key{Kind: KindMeta}].(Meta)
	return meta, ok
}
