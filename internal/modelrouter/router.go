// Package modelrouter selects models for tasks, tracks per-task
// failures and per-model success statistics, and walks the configured
// escalation chain after repeated failures.
package modelrouter

import (
	"errors"
	"strings"
	"sync"

	"github.com/AGENTMESH/internal/types"
)

// DefaultEscalateThreshold is how many recorded failures a task needs
// before escalation is offered.
const DefaultEscalateThreshold = 2

var (
	// ErrMaxReached means the current model is the chain's tail
	ErrMaxReached = errors.New("escalation: max reached")
	// ErrDisabled means no escalation chain is configured
	ErrDisabled = errors.New("escalation: disabled")
)

// Legacy tier names accepted as model hints
const (
	TierFast  = "fast"
	TierSmart = "smart"
	TierDeep  = "deep"
)

// ProviderOf extracts the provider from a provider:model string
func ProviderOf(model string) string {
	if i := strings.IndexByte(model, ':'); i > 0 {
		return model[:i]
	}
	return "unknown"
}

type failureKey struct {
	team   string
	agent  string
	taskID string
}

type modelStats struct {
	successes int
	attempts  int
}

// Router holds model selection state
type Router struct {
	mu sync.Mutex

	defaultModel string
	chain        []string

	failures map[failureKey]int
	stats    map[string]*modelStats
}

// New creates a router with the given default model and escalation
// chain. A chain with fewer than two entries disables escalation.
func New(defaultModel string, chain []string) *Router {
	if len(chain) < 2 {
		chain = nil
	}
	return &Router{
		defaultModel: defaultModel,
		chain:        chain,
		failures:     make(map[failureKey]int),
		stats:        make(map[string]*modelStats),
	}
}

// Select resolves the model for a task. A task's model hint wins: a
// legacy tier name maps onto the escalation chain, anything with a
// provider prefix is used verbatim. Without a hint the configured
// default applies.
func (r *Router) Select(task *types.TeamTask) string {
	if task == nil || task.ModelHint == "" {
		return r.defaultModel
	}

	hint := task.ModelHint
	switch hint {
	case TierFast:
		if m := r.chainAt(0); m != "" {
			return m
		}
		return r.defaultModel
	case TierSmart:
		if m := r.chainAt(len(r.chain) / 2); m != "" {
			return m
		}
		return r.defaultModel
	case TierDeep:
		if m := r.chainAt(len(r.chain) - 1); m != "" {
			return m
		}
		return r.defaultModel
	}

	if strings.Contains(hint, ":") {
		return hint
	}
	return r.defaultModel
}

func (r *Router) chainAt(i int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.chain) {
		return ""
	}
	return r.chain[i]
}

// RecordFailure increments the failure counter for an agent's task
func (r *Router) RecordFailure(teamID, agent, taskID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := failureKey{team: teamID, agent: agent, taskID: taskID}
	r.failures[key]++
	return r.failures[key]
}

// FailureCount returns the recorded failures for an agent's task
func (r *Router) FailureCount(teamID, agent, taskID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[failureKey{team: teamID, agent: agent, taskID: taskID}]
}

// ShouldEscalate reports whether the failure count reached the threshold
func (r *Router) ShouldEscalate(teamID, agent, taskID string) bool {
	return r.FailureCount(teamID, agent, taskID) >= DefaultEscalateThreshold
}

// RecordAttempt counts one model attempt
func (r *Router) RecordAttempt(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsFor(model).attempts++
}

// RecordSuccess counts a successful attempt and clears the task's
// failure counter.
func (r *Router) RecordSuccess(teamID, agent, taskID, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.statsFor(model)
	s.successes++
	s.attempts++
	delete(r.failures, failureKey{team: teamID, agent: agent, taskID: taskID})
}

// SuccessRate returns successes/attempts for a model, or 1.0 with no data
func (r *Router) SuccessRate(model string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[model]
	if !ok || s.attempts == 0 {
		return 1.0
	}
	return float64(s.successes) / float64(s.attempts)
}

// EscalationEnabled reports whether a chain is configured
func (r *Router) EscalationEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chain) >= 2
}

// Escalate returns the chain successor of the current model.
// At the tail it returns ErrMaxReached; without a chain, ErrDisabled.
func (r *Router) Escalate(current string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.chain) < 2 {
		return "", ErrDisabled
	}
	for i, model := range r.chain {
		if model != current {
			continue
		}
		if i == len(r.chain)-1 {
			return "", ErrMaxReached
		}
		return r.chain[i+1], nil
	}
	// A model outside the chain escalates to the chain head
	return r.chain[0], nil
}

func (r *Router) statsFor(model string) *modelStats {
	s, ok := r.stats[model]
	if !ok {
		s = &modelStats{}
		r.stats[model] = s
	}
	return s
}
