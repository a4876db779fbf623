package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// UpsertKeeper persists the full state of a context keeper
func (s *SQLiteStore) UpsertKeeper(rec *types.KeeperRecord) error {
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode keeper messages: %w", err)
	}

	var metadata sql.NullString
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode keeper metadata: %w", err)
		}
		metadata = nullString(string(data))
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT INTO context_keepers (id, team_id, topic, source_agent, messages, token_count, metadata, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			topic = excluded.topic,
			messages = excluded.messages,
			token_count = excluded.token_count,
			metadata = excluded.metadata,
			status = excluded.status`,
		rec.ID,
		rec.TeamID,
		rec.Topic,
		rec.SourceAgent,
		string(messages),
		rec.TokenCount,
		metadata,
		string(rec.Status),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert keeper %s: %w", rec.ID, err)
	}

	return nil
}

// ListKeepers returns keeper rows, newest first, without their message
// payloads. An empty teamID lists every team.
func (s *SQLiteStore) ListKeepers(teamID string) ([]*types.KeeperRecord, error) {
	query := `
		SELECT id, team_id, topic, source_agent, token_count, status, created_at
		FROM context_keepers`
	var args []any
	if teamID != "" {
		query += ` WHERE team_id = ?`
		args = append(args, teamID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list keepers: %w", err)
	}
	defer rows.Close()

	var out []*types.KeeperRecord
	for rows.Next() {
		var rec types.KeeperRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.TeamID, &rec.Topic, &rec.SourceAgent, &rec.TokenCount, &status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keeper row: %w", err)
		}
		rec.Status = types.KeeperStatus(status)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// FetchKeeper loads a keeper row by id, or ErrNotFound
func (s *SQLiteStore) FetchKeeper(id string) (*types.KeeperRecord, error) {
	var rec types.KeeperRecord
	var messages string
	var metadata sql.NullString
	var status string

	err := s.db.QueryRow(`
		SELECT id, team_id, topic, source_agent, messages, token_count, metadata, status, created_at
		FROM context_keepers
		WHERE id = ?`,
		id,
	).Scan(
		&rec.ID,
		&rec.TeamID,
		&rec.Topic,
		&rec.SourceAgent,
		&messages,
		&rec.TokenCount,
		&metadata,
		&status,
		&rec.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("keeper %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch keeper: %w", err)
	}

	if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode keeper messages: %w", err)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode keeper metadata: %w", err)
		}
	}
	rec.Status = types.KeeperStatus(status)

	return &rec, nil
}
