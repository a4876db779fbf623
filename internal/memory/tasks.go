package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// InsertTask creates a new team task row
func (s *SQLiteStore) InsertTask(task *types.TeamTask) error {
	now := time.Now()
	if task.InsertedAt.IsZero() {
		task.InsertedAt = now
	}
	task.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO team_tasks
		(id, team_id, title, description, status, owner, priority, model_hint, role, task_type, result, cost_usd, tokens_used, inserted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.TeamID,
		task.Title,
		nullString(task.Description),
		string(task.Status),
		nullString(task.Owner),
		task.Priority,
		nullString(task.ModelHint),
		nullString(task.Role),
		nullString(task.TaskType),
		nullString(task.Result),
		task.CostUSD,
		task.TokensUsed,
		task.InsertedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}

	return nil
}

// UpdateTask rewrites the mutable fields of a task row
func (s *SQLiteStore) UpdateTask(task *types.TeamTask) error {
	task.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE team_tasks
		SET title = ?, description = ?, status = ?, owner = ?, priority = ?,
		    model_hint = ?, role = ?, task_type = ?, result = ?,
		    cost_usd = ?, tokens_used = ?, updated_at = ?
		WHERE id = ?`,
		task.Title,
		nullString(task.Description),
		string(task.Status),
		nullString(task.Owner),
		task.Priority,
		nullString(task.ModelHint),
		nullString(task.Role),
		nullString(task.TaskType),
		nullString(task.Result),
		task.CostUSD,
		task.TokensUsed,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}

	return nil
}

// GetTask retrieves a single task by ID
func (s *SQLiteStore) GetTask(id string) (*types.TeamTask, error) {
	row := s.db.QueryRow(taskSelect+" WHERE id = ?", id)

	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasksByTeam retrieves all tasks for a team in scheduling order
func (s *SQLiteStore) ListTasksByTeam(teamID string) ([]*types.TeamTask, error) {
	rows, err := s.db.Query(taskSelect+`
		WHERE team_id = ?
		ORDER BY priority ASC, inserted_at ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query team tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListTasksByAgent retrieves tasks owned by a specific agent
func (s *SQLiteStore) ListTasksByAgent(teamID, agent string) ([]*types.TeamTask, error) {
	rows, err := s.db.Query(taskSelect+`
		WHERE team_id = ? AND owner = ?
		ORDER BY priority ASC, inserted_at ASC`,
		teamID, agent,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// InsertTaskDep records a dependency edge between two tasks
func (s *SQLiteStore) InsertTaskDep(dep *types.TaskDependency) error {
	_, err := s.db.Exec(`
		INSERT INTO team_task_deps (task_id, depends_on_id, dep_type)
		VALUES (?, ?, ?)
		ON CONFLICT(task_id, depends_on_id) DO UPDATE SET dep_type = excluded.dep_type`,
		dep.TaskID,
		dep.DependsOnID,
		string(dep.DepType),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task dep %s -> %s: %w", dep.TaskID, dep.DependsOnID, err)
	}
	return nil
}

// ListTaskDeps retrieves all dependency edges for a team's tasks
func (s *SQLiteStore) ListTaskDeps(teamID string) ([]*types.TaskDependency, error) {
	rows, err := s.db.Query(`
		SELECT d.task_id, d.depends_on_id, d.dep_type
		FROM team_task_deps d
		JOIN team_tasks t ON t.id = d.task_id
		WHERE t.team_id = ?`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query task deps: %w", err)
	}
	defer rows.Close()

	var deps []*types.TaskDependency
	for rows.Next() {
		var dep types.TaskDependency
		var depType string
		if err := rows.Scan(&dep.TaskID, &dep.DependsOnID, &depType); err != nil {
			return nil, fmt.Errorf("failed to scan task dep: %w", err)
		}
		dep.DepType = types.DepType(depType)
		deps = append(deps, &dep)
	}

	return deps, rows.Err()
}

// SumTaskCostByTeam aggregates spend over a team's completed tasks
func (s *SQLiteStore) SumTaskCostByTeam(teamID string) (*TaskCostSummary, error) {
	var summary TaskCostSummary
	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(cost_usd), 0), COALESCE(SUM(tokens_used), 0), COUNT(*)
		FROM team_tasks
		WHERE team_id = ? AND status = 'completed'`,
		teamID,
	).Scan(&summary.TotalCostUSD, &summary.TotalTokens, &summary.TaskCount)
	if err != nil {
		return nil, fmt.Errorf("failed to sum task cost: %w", err)
	}
	return &summary, nil
}

const taskSelect = `
	SELECT id, team_id, title, description, status, owner, priority,
	       model_hint, role, task_type, result, cost_usd, tokens_used,
	       inserted_at, updated_at
	FROM team_tasks`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.TeamTask, error) {
	var task types.TeamTask
	var description, owner, modelHint, role, taskType, result sql.NullString
	var status string

	err := row.Scan(
		&task.ID,
		&task.TeamID,
		&task.Title,
		&description,
		&status,
		&owner,
		&task.Priority,
		&modelHint,
		&role,
		&taskType,
		&result,
		&task.CostUSD,
		&task.TokensUsed,
		&task.InsertedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.Status = types.TaskStatus(status)
	task.Owner = owner.String
	task.ModelHint = modelHint.String
	task.Role = role.String
	task.TaskType = taskType.String
	task.Result = result.String

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*types.TeamTask, error) {
	var tasks []*types.TeamTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
