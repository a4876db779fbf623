package modelclient

import (
	"context"
	"errors"
	"sync"

	"github.com/AGENTMESH/internal/types"
)

// ErrScriptExhausted is returned when a Scripted client runs out of
// canned steps.
var ErrScriptExhausted = errors.New("modelclient: script exhausted")

type scriptStep struct {
	result *Result
	err    error
}

// Scripted is a Client test double that replays a fixed sequence of
// results and errors, recording every call it receives.
type Scripted struct {
	mu    sync.Mutex
	steps []scriptStep
	calls []ScriptedCall
}

// ScriptedCall records the arguments of one Call invocation
type ScriptedCall struct {
	Model    string
	Messages []types.Message
	Tools    []ToolSpec
	Opts     CallOptions
}

// NewScripted creates an empty scripted client
func NewScripted() *Scripted {
	return &Scripted{}
}

// QueueResult appends a canned result to the script
func (s *Scripted) QueueResult(r *Result) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{result: r})
	return s
}

// QueueText appends a plain text reply with the given usage
func (s *Scripted) QueueText(text string, usage types.Usage) *Scripted {
	return s.QueueResult(&Result{Text: text, Usage: usage})
}

// QueueToolCalls appends a reply that requests tool executions
func (s *Scripted) QueueToolCalls(usage types.Usage, calls ...types.ToolCall) *Scripted {
	return s.QueueResult(&Result{ToolCalls: calls, Usage: usage})
}

// QueueError appends a failing step
func (s *Scripted) QueueError(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, scriptStep{err: err})
	return s
}

// Call pops the next scripted step
func (s *Scripted) Call(ctx context.Context, model string, msgs []types.Message, tools []ToolSpec, opts CallOptions) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, ScriptedCall{
		Model:    model,
		Messages: append([]types.Message(nil), msgs...),
		Tools:    append([]ToolSpec(nil), tools...),
		Opts:     opts,
	})

	if len(s.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.result, nil
}

// Calls returns a copy of the recorded invocations
func (s *Scripted) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScriptedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// Remaining reports how many scripted steps are left
func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
