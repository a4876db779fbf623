// Package ratelimit gates model calls with per-provider token buckets
// and enforces hierarchical USD budgets (team limits over agent limits).
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// BucketSpec sizes one provider's token bucket
type BucketSpec struct {
	Max          float64 // bucket capacity in tokens
	RefillPerMin float64 // tokens restored per minute
}

// defaultBuckets holds the built-in provider limits; unknown providers
// fall back to defaultSpec.
var defaultBuckets = map[string]BucketSpec{
	"anthropic": {Max: 80_000, RefillPerMin: 80_000},
	"openai":    {Max: 90_000, RefillPerMin: 90_000},
	"google":    {Max: 60_000, RefillPerMin: 60_000},
}

var defaultSpec = BucketSpec{Max: 50_000, RefillPerMin: 50_000}

// Verdict reports the budget state after recording usage
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictTeamExceeded
	VerdictAgentExceeded
)

func (v Verdict) String() string {
	switch v {
	case VerdictTeamExceeded:
		return "budget_exceeded:team"
	case VerdictAgentExceeded:
		return "budget_exceeded:agent"
	default:
		return "ok"
	}
}

// AgentBudget tracks one agent's spend within a team
type AgentBudget struct {
	Spent      float64 `json:"spent"`
	Limit      float64 `json:"limit"`
	TokensUsed int64   `json:"tokens_used"`
}

// TeamBudget tracks a team's spend and its agents
type TeamBudget struct {
	Spent  float64                 `json:"spent"`
	Limit  float64                 `json:"limit"`
	Agents map[string]*AgentBudget `json:"agents"`
}

type bucket struct {
	tokens     float64
	spec       BucketSpec
	lastRefill time.Time
}

// Limiter serializes all admission and budget decisions through a
// single mutex so team spend always equals the sum of agent spend.
type Limiter struct {
	mu sync.Mutex

	buckets map[string]*bucket
	teams   map[string]*TeamBudget

	teamLimit  float64
	agentLimit float64

	now func() time.Time
}

// New creates a limiter with the given default budget limits
func New(teamLimitUSD, agentLimitUSD float64) *Limiter {
	if teamLimitUSD <= 0 {
		teamLimitUSD = 5.00
	}
	if agentLimitUSD <= 0 {
		agentLimitUSD = 1.00
	}
	return &Limiter{
		buckets:    make(map[string]*bucket),
		teams:      make(map[string]*TeamBudget),
		teamLimit:  teamLimitUSD,
		agentLimit: agentLimitUSD,
		now:        time.Now,
	}
}

// Acquire attempts to take est tokens from the provider's bucket.
// On success ok is true. Otherwise waitMS is how long the caller
// should sleep before retrying, always at least 1.
func (l *Limiter) Acquire(provider string, est int) (ok bool, waitMS int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(provider)
	l.refill(b)

	need := float64(est)
	if b.tokens >= need {
		b.tokens -= need
		return true, 0
	}

	deficit := need - b.tokens
	wait := int64(math.Ceil(deficit / b.spec.RefillPerMin * 60_000))
	if wait < 1 {
		wait = 1
	}
	return false, wait
}

// RecordUsage adds a usage record to the team and agent budgets.
// Budgets are lazily initialized with the configured default limits.
// The team check wins when both are exceeded.
func (l *Limiter) RecordUsage(teamID, agent string, tokens int64, costUSD float64) Verdict {
	l.mu.Lock()
	defer l.mu.Unlock()

	team := l.teamFor(teamID)
	ab, ok := team.Agents[agent]
	if !ok {
		ab = &AgentBudget{Limit: l.agentLimit}
		team.Agents[agent] = ab
	}

	team.Spent += costUSD
	ab.Spent += costUSD
	ab.TokensUsed += tokens

	if team.Spent >= team.Limit {
		return VerdictTeamExceeded
	}
	if ab.Spent >= ab.Limit {
		return VerdictAgentExceeded
	}
	return VerdictOK
}

// TeamUsage returns a snapshot of a team's budget state
func (l *Limiter) TeamUsage(teamID string) TeamBudget {
	l.mu.Lock()
	defer l.mu.Unlock()

	team, ok := l.teams[teamID]
	if !ok {
		return TeamBudget{Limit: l.teamLimit, Agents: map[string]*AgentBudget{}}
	}

	snapshot := TeamBudget{
		Spent:  team.Spent,
		Limit:  team.Limit,
		Agents: make(map[string]*AgentBudget, len(team.Agents)),
	}
	for name, ab := range team.Agents {
		copy := *ab
		snapshot.Agents[name] = &copy
	}
	return snapshot
}

// SetTeamLimit overrides one team's budget limit
func (l *Limiter) SetTeamLimit(teamID string, limitUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teamFor(teamID).Limit = limitUSD
}

// SetAgentLimit overrides one agent's budget limit within a team
func (l *Limiter) SetAgentLimit(teamID, agent string, limitUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	team := l.teamFor(teamID)
	ab, ok := team.Agents[agent]
	if !ok {
		ab = &AgentBudget{Limit: l.agentLimit}
		team.Agents[agent] = ab
	}
	ab.Limit = limitUSD
}

// ResetTeam drops a team's budget records
func (l *Limiter) ResetTeam(teamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.teams, teamID)
}

// SetBucket overrides a provider's bucket spec
func (l *Limiter) SetBucket(provider string, spec BucketSpec) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buckets[provider] = &bucket{
		tokens:     spec.Max,
		spec:       spec,
		lastRefill: l.now(),
	}
}

func (l *Limiter) bucketFor(provider string) *bucket {
	b, ok := l.buckets[provider]
	if !ok {
		spec, known := defaultBuckets[provider]
		if !known {
			spec = defaultSpec
		}
		b = &bucket{
			tokens:     spec.Max,
			spec:       spec,
			lastRefill: l.now(),
		}
		l.buckets[provider] = b
	}
	return b
}

func (l *Limiter) teamFor(teamID string) *TeamBudget {
	team, ok := l.teams[teamID]
	if !ok {
		team = &TeamBudget{
			Limit:  l.teamLimit,
			Agents: make(map[string]*AgentBudget),
		}
		l.teams[teamID] = team
	}
	return team
}

// refill tops up a bucket continuously based on elapsed time
func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	added := elapsed.Seconds() / 60.0 * b.spec.RefillPerMin
	b.tokens = math.Min(b.spec.Max, b.tokens+added)
	b.lastRefill = now
}
