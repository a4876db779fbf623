package types

import (
	"time"
)

// AgentStatus represents the current status of an agent worker
type AgentStatus string

const (
	StatusIdle    AgentStatus = "idle"
	StatusWorking AgentStatus = "working"
	StatusBlocked AgentStatus = "blocked"
	StatusError   AgentStatus = "error"
)

// MessageRole identifies who produced a conversation message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// ToolCall is a single tool invocation requested by the model
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one entry in an agent's conversation history.
// Histories are append-only; past entries are never mutated.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
}

// Usage reports token consumption for a single model call
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalCost    float64 `json:"total_cost,omitempty"`
}

// TotalTokens returns input + output tokens
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// Team is a named container for a swarm of agents
type Team struct {
	ID           string    `json:"team_id"`
	Name         string    `json:"name"`
	ProjectPath  string    `json:"project_path"`
	ParentTeamID string    `json:"parent_team_id,omitempty"`
	Depth        int       `json:"depth"`
	CreatedAt    time.Time `json:"created_at"`
}

// AgentInfo is the roster entry for an agent within a team
type AgentInfo struct {
	Name   string      `json:"name"`
	Role   string      `json:"role"`
	Status AgentStatus `json:"status"`
	Model  string      `json:"model,omitempty"`
	Meta   MetaMap     `json:"meta,omitempty"`
}

// MetaMap is free-form metadata attached to roster entries
type MetaMap map[string]any

// RegionKind discriminates claim region shapes
type RegionKind string

const (
	RegionWholeFile RegionKind = "whole_file"
	RegionSymbol    RegionKind = "symbol"
	RegionLines     RegionKind = "lines"
)

// Region describes the part of a file a claim covers
type Region struct {
	Kind   RegionKind `json:"kind"`
	Symbol string     `json:"symbol,omitempty"`
	Start  int        `json:"start,omitempty"`
	End    int        `json:"end,omitempty"`
}

// WholeFile returns a region covering the entire file
func WholeFile() Region {
	return Region{Kind: RegionWholeFile}
}

// SymbolRegion returns a region covering a named symbol.
// Symbol regions conflict as whole-file; symbol boundaries are not tracked.
func SymbolRegion(name string) Region {
	return Region{Kind: RegionSymbol, Symbol: name}
}

// LineRegion returns a region covering lines start..end inclusive
func LineRegion(start, end int) Region {
	return Region{Kind: RegionLines, Start: start, End: end}
}

// Overlaps reports whether two regions on the same file overlap
func (r Region) Overlaps(other Region) bool {
	if r.Kind != RegionLines || other.Kind != RegionLines {
		// whole_file overlaps everything; symbol is treated as whole-file
		return true
	}
	return r.Start <= other.End && other.Start <= r.End
}

// RegionClaim is an advisory lock on a file region
type RegionClaim struct {
	Agent     string    `json:"agent"`
	Path      string    `json:"path"`
	Region    Region    `json:"region"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Discovery is a finding shared with the rest of a team
type Discovery struct {
	Seq       int64     `json:"seq"`
	From      string    `json:"from"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskStatus tracks a team task through its lifecycle
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskAssigned   TaskStatus = "assigned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TeamTask is a unit of work tracked in the task DAG.
// Priority is 1..5 with lower numbers scheduled first.
type TeamTask struct {
	ID          string     `json:"id"`
	TeamID      string     `json:"team_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Owner       string     `json:"owner,omitempty"`
	Priority    int        `json:"priority"`
	ModelHint   string     `json:"model_hint,omitempty"`
	Role        string     `json:"role,omitempty"`
	TaskType    string     `json:"task_type,omitempty"`
	Result      string     `json:"result,omitempty"`
	CostUSD     float64    `json:"cost_usd"`
	TokensUsed  int64      `json:"tokens_used"`
	InsertedAt  time.Time  `json:"inserted_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DepType discriminates task dependency kinds. Only "blocks" gates
// availability; "informs" is advisory.
type DepType string

const (
	DepBlocks  DepType = "blocks"
	DepInforms DepType = "informs"
)

// TaskDependency is an edge in the task DAG
type TaskDependency struct {
	TaskID      string  `json:"task_id"`
	DependsOnID string  `json:"depends_on_id"`
	DepType     DepType `json:"dep_type"`
}

// DecisionNode is a typed node in the decision graph
type DecisionNode struct {
	ID          string    `json:"id"`
	NodeType    string    `json:"node_type"` // goal, decision, option, action, outcome, observation, revisit
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Confidence  int       `json:"confidence"` // 0-100
	Status      string    `json:"status,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	AgentName   string    `json:"agent_name,omitempty"`
	Metadata    string    `json:"metadata,omitempty"` // JSON blob
	CreatedAt   time.Time `json:"created_at"`
}

// DecisionEdge is a typed edge in the decision graph
type DecisionEdge struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	EdgeType  string  `json:"edge_type"` // leads_to, chosen, rejected, requires, blocks, enables, supersedes, supports
	Rationale string  `json:"rationale,omitempty"`
	Weight    float64 `json:"weight,omitempty"`
}

// KeeperStatus tracks whether a keeper is live or archived
type KeeperStatus string

const (
	KeeperActive   KeeperStatus = "active"
	KeeperArchived KeeperStatus = "archived"
)

// KeeperRecord is the persisted form of a context keeper
type KeeperRecord struct {
	ID          string         `json:"id"`
	TeamID      string         `json:"team_id"`
	Topic       string         `json:"topic"`
	SourceAgent string         `json:"source_agent"`
	Messages    []Message      `json:"messages"`
	TokenCount  int            `json:"token_count"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Status      KeeperStatus   `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Query is a tracked ask -> (forward)* -> answer routing trace
type Query struct {
	ID          string    `json:"query_id"`
	TeamID      string    `json:"team_id"`
	Origin      string    `json:"origin"`
	Question    string    `json:"question"`
	Target      string    `json:"target,omitempty"`
	Hops        []string  `json:"hops"`
	Enrichments []string  `json:"enrichments"`
	Answer      string    `json:"answer,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	MaxHops     int       `json:"max_hops"`
}

// AgentMetric is a per-task outcome record used for learning
type AgentMetric struct {
	ID         int64     `json:"id"`
	TeamID     string    `json:"team_id"`
	AgentName  string    `json:"agent_name"`
	TaskID     string    `json:"task_id"`
	Model      string    `json:"model"`
	Success    bool      `json:"success"`
	CostUSD    float64   `json:"cost_usd"`
	TokensUsed int64     `json:"tokens_used"`
	RecordedAt time.Time `json:"recorded_at"`
}

// EstimateTokens approximates the token footprint of a message:
// one token per four characters of content plus a fixed overhead.
func EstimateTokens(m Message) int {
	return len(m.Content)/4 + 4
}

// EstimateTotalTokens sums EstimateTokens over a message slice
func EstimateTotalTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m)
	}
	return total
}
