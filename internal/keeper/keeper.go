// Package keeper implements context keepers: workers that hold an
// offloaded slice of an agent's conversation and answer retrieval
// requests over it, persisting their state through the memory store.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/modelclient"
	"github.com/AGENTMESH/internal/types"
)

const (
	// retrieveThreshold is the token count under which Retrieve
	// returns everything instead of keyword-scoring.
	retrieveThreshold = 10_000
	// retrieveTopK bounds keyword retrieval results
	retrieveTopK = 5
)

var questionWords = map[string]bool{
	"who": true, "what": true, "when": true, "where": true,
	"why": true, "how": true, "is": true, "are": true,
	"can": true, "does": true, "do": true,
}

// IsRetrievalQuery reports whether a piece of text reads as a
// question. Used to pick retrieval over a full dump.
func IsRetrievalQuery(s string) bool {
	trimmed := strings.TrimSpace(s)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	first, _, _ := strings.Cut(strings.ToLower(trimmed), " ")
	return questionWords[first]
}

// WordOverlap counts the shared lowercase words of two texts
func WordOverlap(a, b string) int {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(a)) {
		set[w] = true
	}
	seen := make(map[string]bool)
	count := 0
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if set[w] && !seen[w] {
			seen[w] = true
			count++
		}
	}
	return count
}

// Options configure a keeper
type Options struct {
	ID          string
	TeamID      string
	Topic       string
	SourceAgent string
	Metadata    map[string]any

	// Store persists keeper state; nil disables persistence
	Store memory.Store
	// Client powers SmartRetrieve summarization; nil forces the
	// keyword fallback.
	Client modelclient.Client
	Model  string

	// PersistDebounce coalesces rapid stores into one flush.
	// Zero persists immediately.
	PersistDebounce time.Duration
}

// Keeper holds offloaded messages for one topic
type Keeper struct {
	mu    sync.Mutex
	rec   types.KeeperRecord
	dirty bool
	timer *time.Timer

	store    memory.Store
	client   modelclient.Client
	model    string
	debounce time.Duration
}

// New creates a keeper, restoring persisted state when the store
// already holds a row for the id.
func New(opts Options) (*Keeper, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	k := &Keeper{
		rec: types.KeeperRecord{
			ID:          id,
			TeamID:      opts.TeamID,
			Topic:       opts.Topic,
			SourceAgent: opts.SourceAgent,
			Metadata:    opts.Metadata,
			Status:      types.KeeperActive,
			CreatedAt:   time.Now(),
		},
		store:    opts.Store,
		client:   opts.Client,
		model:    opts.Model,
		debounce: opts.PersistDebounce,
	}
	if k.rec.Metadata == nil {
		k.rec.Metadata = make(map[string]any)
	}

	if opts.Store != nil {
		prev, err := opts.Store.FetchKeeper(id)
		switch {
		case err == nil:
			k.rec = *prev
			if k.rec.Metadata == nil {
				k.rec.Metadata = make(map[string]any)
			}
		case errors.Is(err, memory.ErrNotFound):
			// fresh keeper
		default:
			return nil, fmt.Errorf("failed to reload keeper %s: %w", id, err)
		}
	}
	return k, nil
}

// ID returns the keeper's id
func (k *Keeper) ID() string {
	return k.rec.ID
}

// Topic returns the keeper's topic
func (k *Keeper) Topic() string {
	return k.rec.Topic
}

// Store appends messages, merges metadata, recomputes the token count
// and schedules a persist.
func (k *Keeper) Store(msgs []types.Message, metadata map[string]any) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.rec.Messages = append(k.rec.Messages, msgs...)
	for key, val := range metadata {
		k.rec.Metadata[key] = val
	}
	k.rec.TokenCount = types.EstimateTotalTokens(k.rec.Messages)
	k.dirty = true
	k.schedulePersistLocked()
}

// schedulePersistLocked coalesces rapid stores: at most one flush
// fires per debounce window.
func (k *Keeper) schedulePersistLocked() {
	if k.store == nil {
		return
	}
	if k.debounce <= 0 {
		k.flushLocked()
		return
	}
	if k.timer != nil {
		return
	}
	k.timer = time.AfterFunc(k.debounce, func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.timer = nil
		if k.dirty {
			k.flushLocked()
		}
	})
}

func (k *Keeper) flushLocked() {
	snapshot := k.snapshotLocked()
	if err := k.store.UpsertKeeper(&snapshot); err != nil {
		// Persistence failure leaves the keeper dirty so the next
		// store or terminate retries.
		return
	}
	k.dirty = false
}

// RetrieveAll returns every stored message
func (k *Keeper) RetrieveAll() []types.Message {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]types.Message(nil), k.rec.Messages...)
}

// Retrieve returns all messages while the keeper is small, otherwise
// the top keyword matches for the query.
func (k *Keeper) Retrieve(query string) []types.Message {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.rec.TokenCount <= retrieveThreshold {
		return append([]types.Message(nil), k.rec.Messages...)
	}
	return keywordTop(k.rec.Messages, query, retrieveTopK)
}

func keywordTop(msgs []types.Message, query string, limit int) []types.Message {
	type scored struct {
		msg   types.Message
		score int
		pos   int
	}
	ranked := make([]scored, 0, len(msgs))
	for i, m := range msgs {
		ranked = append(ranked, scored{msg: m, score: WordOverlap(m.Content, query), pos: i})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	// Restore conversation order within the winners
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].pos < ranked[j].pos })

	out := make([]types.Message, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.msg)
	}
	return out
}

// SmartRetrieve summarizes the stored messages against a query via
// the model client, falling back to keyword retrieval on any failure.
// It never mutates keeper state.
func (k *Keeper) SmartRetrieve(ctx context.Context, query string) string {
	k.mu.Lock()
	topic := k.rec.Topic
	msgs := append([]types.Message(nil), k.rec.Messages...)
	k.mu.Unlock()

	if k.client != nil {
		var b strings.Builder
		fmt.Fprintf(&b, "Here are offloaded messages about %s. Answer: %s\n\n", topic, query)
		for _, m := range msgs {
			fmt.Fprintf(&b, "[%s]: %s\n", m.Role, m.Content)
		}
		res, err := k.client.Call(ctx, k.model, []types.Message{
			{Role: types.RoleUser, Content: b.String()},
		}, nil, modelclient.CallOptions{})
		if err == nil && res != nil && res.Text != "" {
			return res.Text
		}
	}

	matches := keywordTop(msgs, query, retrieveTopK)
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, fmt.Sprintf("[%s]: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

// Fetch answers a retrieval request. Question-shaped queries go
// through SmartRetrieve; anything else gets the full dump.
func (k *Keeper) Fetch(ctx context.Context, query string) string {
	if IsRetrievalQuery(query) {
		return k.SmartRetrieve(ctx, query)
	}
	msgs := k.RetrieveAll()
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("[%s]: %s", m.Role, m.Content))
	}
	return strings.Join(lines, "\n")
}

// IndexEntry returns the one-line summary agents see in their prompts
func (k *Keeper) IndexEntry() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return fmt.Sprintf("Keeper:%s topic=%s source=%s tokens=%d",
		k.rec.ID, k.rec.Topic, k.rec.SourceAgent, k.rec.TokenCount)
}

// State returns a snapshot of the keeper record
func (k *Keeper) State() types.KeeperRecord {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.snapshotLocked()
}

func (k *Keeper) snapshotLocked() types.KeeperRecord {
	snapshot := k.rec
	snapshot.Messages = append([]types.Message(nil), k.rec.Messages...)
	snapshot.Metadata = make(map[string]any, len(k.rec.Metadata))
	for key, val := range k.rec.Metadata {
		snapshot.Metadata[key] = val
	}
	return snapshot
}

// Terminate flushes pending state synchronously. Safe to call more
// than once.
func (k *Keeper) Terminate() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.timer != nil {
		k.timer.Stop()
		k.timer = nil
	}
	if !k.dirty || k.store == nil {
		return nil
	}
	snapshot := k.snapshotLocked()
	if err := k.store.UpsertKeeper(&snapshot); err != nil {
		return fmt.Errorf("failed to flush keeper %s: %w", k.rec.ID, err)
	}
	k.dirty = false
	return nil
}
