package ratelimit

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func fixedClock(l *Limiter) *time.Time {
	base := time.Now()
	l.now = func() time.Time { return base }
	return &base
}

func TestAcquire_FullBucketBoundary(t *testing.T) {
	l := New(5, 1)
	fixedClock(l)

	// Draining exactly the full bucket succeeds
	ok, _ := l.Acquire("anthropic", 80_000)
	if !ok {
		t.Fatal("acquiring exactly bucket.max from a full bucket should succeed")
	}

	// One more token must wait at least 1ms
	ok, wait := l.Acquire("anthropic", 1)
	if ok {
		t.Fatal("empty bucket should not admit")
	}
	if wait < 1 {
		t.Errorf("wait = %d, want >= 1", wait)
	}
}

func TestAcquire_WaitMath(t *testing.T) {
	l := New(5, 1)
	fixedClock(l)

	// Drain openai (90k) fully, then ask for 9000: deficit 9000 at
	// 90000/min refill is exactly 6000ms.
	if ok, _ := l.Acquire("openai", 90_000); !ok {
		t.Fatal("drain failed")
	}
	ok, wait := l.Acquire("openai", 9_000)
	if ok {
		t.Fatal("should not admit")
	}
	if wait != 6000 {
		t.Errorf("wait = %d, want 6000", wait)
	}
}

func TestAcquire_ContinuousRefill(t *testing.T) {
	l := New(5, 1)
	base := fixedClock(l)

	if ok, _ := l.Acquire("google", 60_000); !ok {
		t.Fatal("drain failed")
	}

	// After 30 seconds half the bucket is back
	*base = base.Add(30 * time.Second)
	if ok, _ := l.Acquire("google", 30_000); !ok {
		t.Error("half-refilled bucket should admit 30k tokens")
	}
	if ok, _ := l.Acquire("google", 1_000); ok {
		t.Error("bucket should be empty again")
	}
}

func TestAcquire_RefillClampedToMax(t *testing.T) {
	l := New(5, 1)
	base := fixedClock(l)

	// A long idle period must not overfill the bucket
	*base = base.Add(time.Hour)
	if ok, _ := l.Acquire("unknown-provider", 50_000); !ok {
		t.Fatal("default bucket should hold 50k")
	}
	if ok, _ := l.Acquire("unknown-provider", 1); ok {
		t.Error("bucket should be drained despite long idle refill")
	}
}

func TestRecordUsage_TeamCheckWins(t *testing.T) {
	l := New(0.05, 0.01)

	// Blow both limits at once; the team verdict takes precedence
	if v := l.RecordUsage("t1", "coder", 1000, 0.10); v != VerdictTeamExceeded {
		t.Errorf("verdict = %v, want team exceeded", v)
	}
}

func TestRecordUsage_AgentExceeded(t *testing.T) {
	l := New(5, 0.01)

	if v := l.RecordUsage("t1", "coder", 100, 0.02); v != VerdictAgentExceeded {
		t.Errorf("verdict = %v, want agent exceeded", v)
	}
	// Another agent under its own limit is fine
	if v := l.RecordUsage("t1", "tester", 100, 0.005); v != VerdictOK {
		t.Errorf("verdict = %v, want ok", v)
	}
}

func TestRecordUsage_LazyInitAndSnapshot(t *testing.T) {
	l := New(5, 1)

	l.RecordUsage("t1", "coder", 100, 0.01)
	l.RecordUsage("t1", "coder", 50, 0.01)

	usage := l.TeamUsage("t1")
	if usage.Limit != 5 {
		t.Errorf("team limit = %v", usage.Limit)
	}
	ab := usage.Agents["coder"]
	if ab == nil {
		t.Fatal("agent budget missing")
	}
	if ab.TokensUsed != 150 || math.Abs(ab.Spent-0.02) > 1e-9 {
		t.Errorf("agent budget = %+v", ab)
	}

	// Snapshot is a copy
	ab.Spent = 99
	if l.TeamUsage("t1").Agents["coder"].Spent == 99 {
		t.Error("TeamUsage must return a copy")
	}
}

// The sum of agent spend always matches team spend.
func TestRecordUsage_AgentSpendSumsToTeamSpend(t *testing.T) {
	l := New(100, 100)
	rng := rand.New(rand.NewSource(7))
	agents := []string{"a", "b", "c", "d"}

	for i := 0; i < 5000; i++ {
		agent := agents[rng.Intn(len(agents))]
		l.RecordUsage("t1", agent, int64(rng.Intn(500)), rng.Float64()*0.001)
	}

	usage := l.TeamUsage("t1")
	var sum float64
	for _, ab := range usage.Agents {
		sum += ab.Spent
	}
	if math.Abs(sum-usage.Spent) >= 1e-6 {
		t.Errorf("sum of agent spend %v != team spend %v", sum, usage.Spent)
	}
}

func TestResetTeam(t *testing.T) {
	l := New(5, 1)

	l.RecordUsage("t1", "coder", 100, 0.01)
	l.ResetTeam("t1")

	usage := l.TeamUsage("t1")
	if usage.Spent != 0 || len(usage.Agents) != 0 {
		t.Errorf("budget not reset: %+v", usage)
	}
}

func TestSetLimitOverrides(t *testing.T) {
	l := New(5, 1)

	l.SetTeamLimit("t1", 0.01)
	if v := l.RecordUsage("t1", "coder", 10, 0.02); v != VerdictTeamExceeded {
		t.Errorf("verdict = %v, want team exceeded with overridden limit", v)
	}

	l2 := New(5, 1)
	l2.SetAgentLimit("t1", "coder", 0.001)
	if v := l2.RecordUsage("t1", "coder", 10, 0.002); v != VerdictAgentExceeded {
		t.Errorf("verdict = %v, want agent exceeded with overridden limit", v)
	}
}
