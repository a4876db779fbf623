// Package modelclient defines the port through which agents call
// language models. Implementations wrap provider SDKs or gateways;
// the Scripted double serves tests.
package modelclient

import (
	"context"

	"github.com/AGENTMESH/internal/types"
)

// CallOptions tune one model call
type CallOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// ToolSpec describes one tool offered to the model
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}

// Result is the outcome of one model call. Messages carries the full
// updated conversation when the provider returns it; Text is the final
// assistant text, empty when the model asked for tools instead.
type Result struct {
	Text      string
	Messages  []types.Message
	ToolCalls []types.ToolCall
	Usage     types.Usage
}

// Client is the model call port
type Client interface {
	Call(ctx context.Context, model string, msgs []types.Message, tools []ToolSpec, opts CallOptions) (*Result, error)
}
