package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/tools"
	"github.com/AGENTMESH/internal/types"
)

// DecisionLog implements decision_log over the shared store
type DecisionLog struct {
	Store memory.Store
}

func (DecisionLog) Name() string        { return tools.ToolDecisionLog }
func (DecisionLog) Description() string { return tools.Describe(tools.ToolDecisionLog) }
func (DecisionLog) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"node_type":   map[string]any{"type": "string", "description": "goal, decision, option, action, outcome, observation or revisit"},
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"confidence":  map[string]any{"type": "integer", "description": "0-100"},
		},
		"required": []string{"node_type", "title"},
	}
}

func (t DecisionLog) Run(params map[string]any, tc tools.Context) (string, error) {
	nodeType := stringParam(params, "node_type")
	title := stringParam(params, "title")
	if nodeType == "" || title == "" {
		return "", fmt.Errorf("node_type and title are required")
	}
	confidence := 0
	if c, ok := params["confidence"].(float64); ok {
		confidence = int(c)
	}

	node := &types.DecisionNode{
		ID:          uuid.NewString(),
		NodeType:    nodeType,
		Title:       title,
		Description: stringParam(params, "description"),
		Confidence:  confidence,
		Status:      "active",
		SessionID:   tc.TeamID,
		AgentName:   tc.AgentName,
		CreatedAt:   time.Now(),
	}
	if err := t.Store.InsertDecisionNode(node); err != nil {
		return "", fmt.Errorf("failed to log decision: %w", err)
	}
	return fmt.Sprintf("logged %s node %s", nodeType, node.ID), nil
}

// DecisionQuery implements decision_query
type DecisionQuery struct {
	Store memory.Store
}

func (DecisionQuery) Name() string        { return tools.ToolDecisionQuery }
func (DecisionQuery) Description() string { return tools.Describe(tools.ToolDecisionQuery) }
func (DecisionQuery) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"node_type": map[string]any{"type": "string"},
			"status":    map[string]any{"type": "string"},
			"limit":     map[string]any{"type": "integer"},
		},
	}
}

func (t DecisionQuery) Run(params map[string]any, tc tools.Context) (string, error) {
	limit := 20
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}
	nodes, err := t.Store.ListDecisionNodes(memory.DecisionFilter{
		NodeType:  stringParam(params, "node_type"),
		Status:    stringParam(params, "status"),
		SessionID: tc.TeamID,
		Limit:     limit,
	})
	if err != nil {
		return "", fmt.Errorf("failed to query decisions: %w", err)
	}
	if len(nodes) == 0 {
		return "no matching decision nodes", nil
	}

	var b strings.Builder
	for _, node := range nodes {
		fmt.Fprintf(&b, "[%s] %s: %s", node.NodeType, node.ID, node.Title)
		if node.Confidence > 0 {
			fmt.Fprintf(&b, " (confidence %d)", node.Confidence)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// RegisterAll installs every builtin implementation into a registry
func RegisterAll(reg *tools.Registry, store memory.Store) error {
	impls := []tools.Tool{
		FileRead{}, FileWrite{}, DirectoryList{},
		ContentSearch{}, FileSearch{},
		Shell{}, Git{},
		DecisionLog{Store: store}, DecisionQuery{Store: store},
	}
	for _, impl := range impls {
		if err := reg.Register(impl); err != nil {
			return err
		}
	}
	return nil
}
