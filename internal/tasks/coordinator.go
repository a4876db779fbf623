// Package tasks implements the team task coordinator: a DAG of tasks
// persisted through the memory store, with dependency-aware
// availability, per-mutation broadcasts, and auto-scheduling of work
// that a completion unblocks.
package tasks

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/cost"
	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/teamtable"
	"github.com/AGENTMESH/internal/types"
)

// CreateOptions carry the optional fields of a new task
type CreateOptions struct {
	Description string
	Priority    int
	ModelHint   string
	Role        string
	TaskType    string
}

// Coordinator manages one team's task DAG
type Coordinator struct {
	teamID  string
	store   memory.Store
	bus     *pubsub.Bus
	table   *teamtable.Table
	tracker *cost.Tracker
}

// NewCoordinator wires a coordinator for a team. table and tracker
// may be nil; caching and cost persistence are then skipped.
func NewCoordinator(teamID string, store memory.Store, bus *pubsub.Bus, table *teamtable.Table, tracker *cost.Tracker) *Coordinator {
	return &Coordinator{
		teamID:  teamID,
		store:   store,
		bus:     bus,
		table:   table,
		tracker: tracker,
	}
}

// CreateTask persists a pending task and announces it
func (c *Coordinator) CreateTask(title string, opts CreateOptions) (*types.TeamTask, error) {
	priority := opts.Priority
	if priority < 1 || priority > 5 {
		priority = 3
	}
	now := time.Now()
	task := &types.TeamTask{
		ID:          uuid.NewString(),
		TeamID:      c.teamID,
		Title:       title,
		Description: opts.Description,
		Status:      types.TaskPending,
		Priority:    priority,
		ModelHint:   opts.ModelHint,
		Role:        opts.Role,
		TaskType:    opts.TaskType,
		InsertedAt:  now,
		UpdatedAt:   now,
	}
	if err := c.store.InsertTask(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	c.cacheTask(task)
	c.broadcast(pubsub.MsgTaskCreated, "", map[string]any{
		"task_id": task.ID,
		"title":   task.Title,
	})
	return task, nil
}

// AddDependency records an edge in the task DAG
func (c *Coordinator) AddDependency(taskID, dependsOnID string, depType types.DepType) error {
	if depType == "" {
		depType = types.DepBlocks
	}
	dep := &types.TaskDependency{
		TaskID:      taskID,
		DependsOnID: dependsOnID,
		DepType:     depType,
	}
	if err := c.store.InsertTaskDep(dep); err != nil {
		return fmt.Errorf("failed to add dependency: %w", err)
	}
	return nil
}

// AssignTask hands a task to an agent and notifies both the team and
// the agent directly.
func (c *Coordinator) AssignTask(taskID, agent string) (*types.TeamTask, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	task.Status = types.TaskAssigned
	task.Owner = agent
	task.UpdatedAt = time.Now()
	if err := c.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	c.cacheTask(task)
	payload := map[string]any{
		"task_id":     task.ID,
		"title":       task.Title,
		"description": task.Description,
		"agent":       agent,
	}
	c.broadcast(pubsub.MsgTaskAssigned, agent, payload)
	c.bus.Broadcast(pubsub.AgentTopic(c.teamID, agent),
		pubsub.NewMessage(pubsub.MsgTaskAssigned, "", payload))
	return task, nil
}

// StartTask marks a task in progress
func (c *Coordinator) StartTask(taskID string) (*types.TeamTask, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	task.Status = types.TaskInProgress
	task.UpdatedAt = time.Now()
	if err := c.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to start task: %w", err)
	}

	c.cacheTask(task)
	c.broadcast(pubsub.MsgTaskStarted, task.Owner, map[string]any{
		"task_id": task.ID,
		"owner":   task.Owner,
	})
	return task, nil
}

// CompleteTask records the result, persists the owner's accumulated
// spend onto the task row, logs a learning metric, and schedules any
// work the completion unblocked.
func (c *Coordinator) CompleteTask(taskID, result string) (*types.TeamTask, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	task.Status = types.TaskCompleted
	task.Result = result
	task.UpdatedAt = time.Now()

	var model string
	if c.tracker != nil && task.Owner != "" {
		usage := c.tracker.GetAgentUsage(c.teamID, task.Owner)
		task.CostUSD = usage.CostUSD
		task.TokensUsed = usage.InputTokens + usage.OutputTokens
		model = usage.LastModel
	}
	if err := c.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	c.cacheTask(task)
	c.broadcast(pubsub.MsgTaskCompleted, task.Owner, map[string]any{
		"task_id": task.ID,
		"owner":   task.Owner,
		"result":  result,
	})
	c.recordMetric(task, model, true)
	c.AutoScheduleUnblocked()
	return task, nil
}

// FailTask marks a task failed and logs the failure metric
func (c *Coordinator) FailTask(taskID, reason string) (*types.TeamTask, error) {
	task, err := c.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	task.Status = types.TaskFailed
	task.Result = reason
	task.UpdatedAt = time.Now()
	if err := c.store.UpdateTask(task); err != nil {
		return nil, fmt.Errorf("failed to fail task: %w", err)
	}

	c.cacheTask(task)
	c.broadcast(pubsub.MsgTaskFailed, task.Owner, map[string]any{
		"task_id": task.ID,
		"owner":   task.Owner,
		"reason":  reason,
	})
	c.recordMetric(task, "", false)
	return task, nil
}

// GetTask fetches one task
func (c *Coordinator) GetTask(taskID string) (*types.TeamTask, error) {
	return c.store.GetTask(taskID)
}

// ListTasks returns every task of the team in schedule order
func (c *Coordinator) ListTasks() ([]*types.TeamTask, error) {
	return c.store.ListTasksByTeam(c.teamID)
}

// ListAvailable returns pending tasks whose blocking predecessors are
// all completed, in (priority asc, inserted asc) order.
func (c *Coordinator) ListAvailable() ([]*types.TeamTask, error) {
	all, err := c.store.ListTasksByTeam(c.teamID)
	if err != nil {
		return nil, err
	}
	deps, err := c.store.ListTaskDeps(c.teamID)
	if err != nil {
		return nil, err
	}

	statusByID := make(map[string]types.TaskStatus, len(all))
	for _, task := range all {
		statusByID[task.ID] = task.Status
	}
	blockedBy := make(map[string][]string)
	for _, dep := range deps {
		if dep.DepType == types.DepBlocks {
			blockedBy[dep.TaskID] = append(blockedBy[dep.TaskID], dep.DependsOnID)
		}
	}

	var available []*types.TeamTask
	for _, task := range all {
		if task.Status != types.TaskPending {
			continue
		}
		ready := true
		for _, pred := range blockedBy[task.ID] {
			if statusByID[pred] != types.TaskCompleted {
				ready = false
				break
			}
		}
		if ready {
			available = append(available, task)
		}
	}
	return available, nil
}

// AutoScheduleUnblocked announces newly available work after a
// completion.
func (c *Coordinator) AutoScheduleUnblocked() {
	available, err := c.ListAvailable()
	if err != nil {
		log.Printf("[TASKS] failed to compute available set for %s: %v", c.teamID, err)
		return
	}
	if len(available) == 0 {
		return
	}
	ids := make([]string, 0, len(available))
	for _, task := range available {
		ids = append(ids, task.ID)
	}
	c.broadcast(pubsub.MsgTasksUnblocked, "", map[string]any{
		"task_ids": ids,
	})
}

func (c *Coordinator) broadcast(msgType pubsub.MessageType, from string, payload map[string]any) {
	c.bus.Broadcast(pubsub.TasksTopic(c.teamID), pubsub.NewMessage(msgType, from, payload))
}

func (c *Coordinator) cacheTask(task *types.TeamTask) {
	if c.table == nil {
		return
	}
	c.table.CacheTask(teamtable.TaskSummary{
		ID:     task.ID,
		Title:  task.Title,
		Status: task.Status,
		Owner:  task.Owner,
	})
}

func (c *Coordinator) recordMetric(task *types.TeamTask, model string, success bool) {
	if task.Owner == "" {
		return
	}
	metric := &types.AgentMetric{
		TeamID:     c.teamID,
		AgentName:  task.Owner,
		TaskID:     task.ID,
		Model:      model,
		Success:    success,
		CostUSD:    task.CostUSD,
		TokensUsed: task.TokensUsed,
		RecordedAt: time.Now(),
	}
	if err := c.store.InsertAgentMetric(metric); err != nil {
		log.Printf("[TASKS] failed to record metric for task %s: %v", task.ID, err)
	}
}
