package memory

import (
	"fmt"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// InsertAgentMetric records a per-task outcome for learning
func (s *SQLiteStore) InsertAgentMetric(metric *types.AgentMetric) error {
	if metric.RecordedAt.IsZero() {
		metric.RecordedAt = time.Now()
	}

	result, err := s.db.Exec(`
		INSERT INTO agent_metrics (team_id, agent_name, task_id, model, success, cost_usd, tokens_used, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		metric.TeamID,
		metric.AgentName,
		nullString(metric.TaskID),
		nullString(metric.Model),
		metric.Success,
		metric.CostUSD,
		metric.TokensUsed,
		metric.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent metric: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get metric ID: %w", err)
	}
	metric.ID = id

	return nil
}
