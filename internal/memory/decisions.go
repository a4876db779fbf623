package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// InsertDecisionNode stores a node in the decision graph
func (s *SQLiteStore) InsertDecisionNode(node *types.DecisionNode) error {
	if node.CreatedAt.IsZero() {
		node.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO decision_nodes (id, node_type, title, description, confidence, status, session_id, agent_name, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID,
		node.NodeType,
		node.Title,
		nullString(node.Description),
		node.Confidence,
		nullString(node.Status),
		nullString(node.SessionID),
		nullString(node.AgentName),
		nullString(node.Metadata),
		node.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision node %s: %w", node.ID, err)
	}

	return nil
}

// InsertDecisionEdge stores a typed edge between two decision nodes
func (s *SQLiteStore) InsertDecisionEdge(edge *types.DecisionEdge) error {
	_, err := s.db.Exec(`
		INSERT INTO decision_edges (from_id, to_id, edge_type, rationale, weight)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_id, to_id, edge_type) DO UPDATE SET
			rationale = excluded.rationale,
			weight = excluded.weight`,
		edge.From,
		edge.To,
		edge.EdgeType,
		nullString(edge.Rationale),
		nullFloat(edge.Weight),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision edge %s -> %s: %w", edge.From, edge.To, err)
	}

	return nil
}

// ListDecisionNodes retrieves nodes matching the filter, newest first
func (s *SQLiteStore) ListDecisionNodes(filter DecisionFilter) ([]*types.DecisionNode, error) {
	query := `
		SELECT id, node_type, title, description, confidence, status, session_id, agent_name, metadata, created_at
		FROM decision_nodes
		WHERE 1=1`
	var args []any

	if filter.NodeType != "" {
		query += " AND node_type = ?"
		args = append(args, filter.NodeType)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.AgentName != "" {
		query += " AND agent_name = ?"
		args = append(args, filter.AgentName)
	}

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*types.DecisionNode
	for rows.Next() {
		var node types.DecisionNode
		var description, status, sessionID, agentName, metadata sql.NullString

		err := rows.Scan(
			&node.ID,
			&node.NodeType,
			&node.Title,
			&description,
			&node.Confidence,
			&status,
			&sessionID,
			&agentName,
			&metadata,
			&node.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision node: %w", err)
		}

		node.Description = description.String
		node.Status = status.String
		node.SessionID = sessionID.String
		node.AgentName = agentName.String
		node.Metadata = metadata.String

		nodes = append(nodes, &node)
	}

	return nodes, rows.Err()
}

// UpdateDecisionNode rewrites the mutable fields of a node
func (s *SQLiteStore) UpdateDecisionNode(node *types.DecisionNode) error {
	result, err := s.db.Exec(`
		UPDATE decision_nodes
		SET title = ?, description = ?, confidence = ?, status = ?, metadata = ?
		WHERE id = ?`,
		node.Title,
		nullString(node.Description),
		node.Confidence,
		nullString(node.Status),
		nullString(node.Metadata),
		node.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update decision node: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("decision node %s: %w", node.ID, ErrNotFound)
	}

	return nil
}
