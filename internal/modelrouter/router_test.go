package modelrouter

import (
	"errors"
	"math"
	"testing"

	"github.com/AGENTMESH/internal/types"
)

var chain = []string{
	"zai:glm-5",
	"anthropic:claude-sonnet-4-6",
	"anthropic:claude-opus-4-6",
}

func TestSelect_Hints(t *testing.T) {
	r := New("zai:glm-5", chain)

	tests := []struct {
		hint string
		want string
	}{
		{"", "zai:glm-5"},
		{"fast", "zai:glm-5"},
		{"smart", "anthropic:claude-sonnet-4-6"},
		{"deep", "anthropic:claude-opus-4-6"},
		{"anthropic:claude-haiku-4-5", "anthropic:claude-haiku-4-5"},
		{"gibberish", "zai:glm-5"},
	}
	for _, tt := range tests {
		task := &types.TeamTask{ModelHint: tt.hint}
		if got := r.Select(task); got != tt.want {
			t.Errorf("Select(hint=%q) = %q, want %q", tt.hint, got, tt.want)
		}
	}

	if got := r.Select(nil); got != "zai:glm-5" {
		t.Errorf("Select(nil) = %q", got)
	}
}

func TestSelect_TierWithoutChain(t *testing.T) {
	r := New("zai:glm-4.5", nil)
	if got := r.Select(&types.TeamTask{ModelHint: "deep"}); got != "zai:glm-4.5" {
		t.Errorf("tier hint without a chain should fall back to default, got %q", got)
	}
}

func TestEscalate_Chain(t *testing.T) {
	r := New("zai:glm-5", chain)

	next, err := r.Escalate("zai:glm-5")
	if err != nil || next != "anthropic:claude-sonnet-4-6" {
		t.Errorf("Escalate(glm-5) = %q, %v", next, err)
	}

	if _, err := r.Escalate("anthropic:claude-opus-4-6"); !errors.Is(err, ErrMaxReached) {
		t.Errorf("Escalate at chain tail: err = %v, want ErrMaxReached", err)
	}

	// A model outside the chain escalates to the chain head
	next, err = r.Escalate("anthropic:claude-haiku-4-5")
	if err != nil || next != "zai:glm-5" {
		t.Errorf("Escalate(off-chain) = %q, %v", next, err)
	}
}

func TestEscalate_Disabled(t *testing.T) {
	r := New("zai:glm-5", nil)
	if _, err := r.Escalate("zai:glm-5"); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
	if r.EscalationEnabled() {
		t.Error("escalation should be disabled without a chain")
	}

	// A single-entry chain cannot escalate either
	r2 := New("zai:glm-5", []string{"zai:glm-5"})
	if r2.EscalationEnabled() {
		t.Error("single-entry chain should disable escalation")
	}
}

func TestFailures_ThresholdAndReset(t *testing.T) {
	r := New("zai:glm-5", chain)

	r.RecordFailure("t1", "coder", "task-1")
	if r.ShouldEscalate("t1", "coder", "task-1") {
		t.Error("one failure should not trigger escalation")
	}
	r.RecordFailure("t1", "coder", "task-1")
	if !r.ShouldEscalate("t1", "coder", "task-1") {
		t.Error("two failures should trigger escalation")
	}

	// Other tasks keep independent counters
	if r.FailureCount("t1", "coder", "task-2") != 0 {
		t.Error("failure counters must be per task")
	}

	r.RecordSuccess("t1", "coder", "task-1", "zai:glm-5")
	if r.FailureCount("t1", "coder", "task-1") != 0 {
		t.Error("success should clear the failure counter")
	}
}

func TestSuccessRate(t *testing.T) {
	r := New("zai:glm-5", chain)

	if rate := r.SuccessRate("zai:glm-5"); rate != 1.0 {
		t.Errorf("rate with no data = %v, want 1.0", rate)
	}

	r.RecordSuccess("t1", "coder", "task-1", "zai:glm-5")
	r.RecordAttempt("zai:glm-5")
	r.RecordSuccess("t1", "coder", "task-2", "zai:glm-5")

	if rate := r.SuccessRate("zai:glm-5"); math.Abs(rate-2.0/3.0) > 1e-9 {
		t.Errorf("rate = %v, want 2/3", rate)
	}
}

func TestProviderOf(t *testing.T) {
	if got := ProviderOf("anthropic:claude-opus-4-6"); got != "anthropic" {
		t.Errorf("ProviderOf = %q", got)
	}
	if got := ProviderOf("bare-model"); got != "unknown" {
		t.Errorf("ProviderOf without prefix = %q", got)
	}
}
