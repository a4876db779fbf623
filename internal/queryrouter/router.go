// Package queryrouter routes agent questions through the team: ask
// targets one agent or the whole team, forward relays hop-bounded,
// answer closes the loop back to the asker. Questions pick up keeper
// enrichments along the way.
package queryrouter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/keeper"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/types"
)

// DefaultMaxHops bounds forwards when ask does not say otherwise
const DefaultMaxHops = 5

var (
	// ErrNotFound means the query id is unknown or expired
	ErrNotFound = errors.New("query: not found")
	// ErrMaxHops means a forward would exceed the query's hop budget
	ErrMaxHops = errors.New("query: max hops reached")
)

// KeeperLookup returns the live keepers of a team
type KeeperLookup func(teamID string) []*keeper.Keeper

// AskOptions tune one ask
type AskOptions struct {
	// Target directs the question to one agent; empty broadcasts
	Target  string
	MaxHops int
}

// Router tracks in-flight queries for all teams
type Router struct {
	mu      sync.Mutex
	queries map[string]*types.Query

	bus     *pubsub.Bus
	keepers KeeperLookup
	now     func() time.Time
}

// New creates a router. keepers may be nil to disable enrichment.
func New(bus *pubsub.Bus, keepers KeeperLookup) *Router {
	return &Router{
		queries: make(map[string]*types.Query),
		bus:     bus,
		keepers: keepers,
		now:     time.Now,
	}
}

// Ask creates a query, enriches it from the team's keepers, and
// dispatches it to the target agent or the whole team.
func (r *Router) Ask(ctx context.Context, teamID, from, question string, opts AskOptions) (*types.Query, error) {
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}

	q := &types.Query{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Origin:    from,
		Question:  question,
		Target:    opts.Target,
		Hops:      []string{},
		CreatedAt: r.now(),
		MaxHops:   maxHops,
	}
	if enrichment := r.gatherEnrichment(ctx, teamID, question); enrichment != "" {
		q.Enrichments = append(q.Enrichments, enrichment)
	}

	r.mu.Lock()
	r.queries[q.ID] = q
	snapshot := copyQuery(q)
	r.mu.Unlock()

	r.dispatch(snapshot, from, opts.Target)
	return snapshot, nil
}

// gatherEnrichment picks the keeper whose topic overlaps the question
// best and asks it for a summary. Enrichment failures never block
// routing.
func (r *Router) gatherEnrichment(ctx context.Context, teamID, question string) (enrichment string) {
	defer func() {
		if recover() != nil {
			enrichment = ""
		}
	}()
	if r.keepers == nil {
		return ""
	}

	var best *keeper.Keeper
	bestScore := 0
	for _, k := range r.keepers(teamID) {
		if score := keeper.WordOverlap(k.Topic(), question); score > bestScore {
			best, bestScore = k, score
		}
	}
	if best == nil {
		return ""
	}
	answer := best.Fetch(ctx, question)
	if answer == "" {
		return ""
	}
	return "[Context Keeper]: " + answer
}

func (r *Router) dispatch(q *types.Query, from, target string) {
	msg := pubsub.NewMessage(pubsub.MsgQuery, from, map[string]any{
		"query_id":    q.ID,
		"question":    q.Question,
		"enrichments": q.Enrichments,
	})
	if target != "" {
		r.bus.Broadcast(pubsub.AgentTopic(q.TeamID, target), msg)
		return
	}
	r.bus.Broadcast(pubsub.TeamTopic(q.TeamID), msg)
}

// Forward relays a query to another agent, recording the hop and any
// enrichment the forwarder added. Exceeding the hop budget fails
// without mutating the query.
func (r *Router) Forward(id, from, target, enrichment string) error {
	r.mu.Lock()
	q, ok := r.queries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(q.Hops)+1 > q.MaxHops {
		r.mu.Unlock()
		return ErrMaxHops
	}
	q.Hops = append(q.Hops, from)
	if enrichment != "" {
		q.Enrichments = append(q.Enrichments, enrichment)
	}
	snapshot := copyQuery(q)
	r.mu.Unlock()

	r.dispatch(snapshot, from, target)
	return nil
}

// Answer records the answer and delivers it to the asker's topic
func (r *Router) Answer(id, from, answer string) error {
	r.mu.Lock()
	q, ok := r.queries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.Answer = answer
	q.Hops = append(q.Hops, from)
	snapshot := copyQuery(q)
	r.mu.Unlock()

	r.bus.Broadcast(pubsub.AgentTopic(snapshot.TeamID, snapshot.Origin),
		pubsub.NewMessage(pubsub.MsgQueryAnswer, from, map[string]any{
			"query_id":    snapshot.ID,
			"answer":      answer,
			"enrichments": snapshot.Enrichments,
		}))
	return nil
}

// GetQuery returns a snapshot of a tracked query
func (r *Router) GetQuery(id string) (*types.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyQuery(q), nil
}

// ExpireStale drops queries older than ttl and returns how many
func (r *Router) ExpireStale(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, q := range r.queries {
		if now.Sub(q.CreatedAt) >= ttl {
			delete(r.queries, id)
			removed++
		}
	}
	return removed
}

func copyQuery(q *types.Query) *types.Query {
	out := *q
	out.Hops = append([]string(nil), q.Hops...)
	out.Enrichments = append([]string(nil), q.Enrichments...)
	return &out
}
