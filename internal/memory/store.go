// Package memory implements the persistence port over SQLite. It
// backs context keepers, the team task DAG, the decision graph, and
// per-task learning metrics.
package memory

import (
	"errors"

	"github.com/AGENTMESH/internal/types"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// TaskCostSummary aggregates completed-task spend for a team
type TaskCostSummary struct {
	TotalCostUSD float64 `json:"total_cost_usd"`
	TotalTokens  int64   `json:"total_tokens"`
	TaskCount    int     `json:"task_count"`
}

// DecisionFilter narrows ListDecisionNodes results. Zero values mean
// no filtering on that field.
type DecisionFilter struct {
	NodeType  string
	Status    string
	SessionID string
	AgentName string
	Limit     int
}

// Store is the persistence port required by keepers, the task
// coordinator, the cost tracker, and the decision graph. Every
// operation is atomic; updates of missing rows return ErrNotFound.
type Store interface {
	// Context keepers
	UpsertKeeper(rec *types.KeeperRecord) error
	FetchKeeper(id string) (*types.KeeperRecord, error)

	// Team tasks
	InsertTask(task *types.TeamTask) error
	UpdateTask(task *types.TeamTask) error
	GetTask(id string) (*types.TeamTask, error)
	ListTasksByTeam(teamID string) ([]*types.TeamTask, error)
	ListTasksByAgent(teamID, agent string) ([]*types.TeamTask, error)
	InsertTaskDep(dep *types.TaskDependency) error
	ListTaskDeps(teamID string) ([]*types.TaskDependency, error)
	SumTaskCostByTeam(teamID string) (*TaskCostSummary, error)

	// Decision graph
	InsertDecisionNode(node *types.DecisionNode) error
	InsertDecisionEdge(edge *types.DecisionEdge) error
	ListDecisionNodes(filter DecisionFilter) ([]*types.DecisionNode, error)
	UpdateDecisionNode(node *types.DecisionNode) error

	// Learning
	InsertAgentMetric(metric *types.AgentMetric) error

	Close() error
}
