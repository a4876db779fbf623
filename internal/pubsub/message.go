package pubsub

import "time"

// MessageType tags a bus message with its shape
type MessageType string

// The complete message grammar carried over the fabric.
const (
	// Agent lifecycle and status
	MsgAgentStatus       MessageType = "agent_status"        // name, status
	MsgRoleChanged       MessageType = "role_changed"        // name, old, new
	MsgRoleChangeRequest MessageType = "role_change_request" // name, old, new, req_id
	MsgAgentEscalation   MessageType = "agent_escalation"    // name, old, new

	// Peer traffic
	MsgContextUpdate MessageType = "context_update" // from, payload
	MsgPeerMessage   MessageType = "peer_message"   // from, content

	// Tasks
	MsgTaskCreated    MessageType = "task_created"    // id, title
	MsgTaskAssigned   MessageType = "task_assigned"   // id, name
	MsgTaskStarted    MessageType = "task_started"    // id, owner
	MsgTaskCompleted  MessageType = "task_completed"  // id, owner, result
	MsgTaskFailed     MessageType = "task_failed"     // id, owner, reason
	MsgTasksUnblocked MessageType = "tasks_unblocked" // ids

	// Keepers and queries
	MsgKeeperCreated MessageType = "keeper_created" // id, topic, source, tokens
	MsgQuery         MessageType = "query"          // query_id, from, question, enrichments
	MsgQueryAnswer   MessageType = "query_answer"   // query_id, from, answer, enrichments

	// Budgets
	MsgBudgetWarning MessageType = "budget.warning" // team_id, spent, limit

	// Team lifecycle
	MsgTeamDissolved    MessageType = "team_dissolved"     // team_id
	MsgSubTeamCompleted MessageType = "sub_team_completed" // team_id

	// Debate protocol
	MsgDebatePropose  MessageType = "debate_propose"  // id, round, topic
	MsgDebateCritique MessageType = "debate_critique" // id, round, others_proposals
	MsgDebateRevise   MessageType = "debate_revise"   // id, round, my_critiques
	MsgDebateVote     MessageType = "debate_vote"     // id, final_proposals
	MsgDebateResponse MessageType = "debate_response" // id, phase, response, choice, target_node_id

	// Pair protocol
	MsgPairStarted        MessageType = "pair_started"         // id, position, peer
	MsgPairSessionStarted MessageType = "pair_session_started" // id, coder, reviewer
	MsgPairEvent          MessageType = "pair_event"           // event, from, pair_id, payload, ts
	MsgPairSessionStopped MessageType = "pair_session_stopped" // id

	// Telemetry
	MsgLLMRequestStart MessageType = "llm.request.start" // name, model
	MsgToolExecuting   MessageType = "tool_executing"    // name, tool
	MsgToolComplete    MessageType = "tool_complete"     // name, tool, ok
)

// Message is a tagged payload delivered over the bus
type Message struct {
	Type      MessageType    `json:"type"`
	From      string         `json:"from,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage builds a message stamped with the current time
func NewMessage(msgType MessageType, from string, payload map[string]any) Message {
	return Message{
		Type:      msgType,
		From:      from,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Str extracts a string payload field, or "" if absent
func (m Message) Str(key string) string {
	if s, ok := m.Payload[key].(string); ok {
		return s
	}
	return ""
}

// Int extracts an integer payload field, tolerating float64 from JSON decoding
func (m Message) Int(key string) int {
	switch v := m.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Strs extracts a string-slice payload field
func (m Message) Strs(key string) []string {
	switch v := m.Payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
