package debate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/pubsub"
)

// scriptedParticipant replies to debate prompts on the debate topic
type scriptedParticipant struct {
	name     string
	proposal string
	critique string
	choice   string
	// double sends every response twice to exercise dedup
	double bool
}

func runParticipant(t *testing.T, bus *pubsub.Bus, teamID string, p scriptedParticipant, done <-chan struct{}) {
	t.Helper()
	sub := bus.Subscribe(pubsub.AgentTopic(teamID, p.name))
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case msg := <-sub.C:
				debateID := msg.Str("debate_id")
				topic := pubsub.DebateTopic(teamID, debateID)
				respond := func(payload map[string]any) {
					bus.Broadcast(topic, pubsub.NewMessage(pubsub.MsgDebateResponse, p.name, payload))
					if p.double {
						bus.Broadcast(topic, pubsub.NewMessage(pubsub.MsgDebateResponse, p.name, payload))
					}
				}
				switch msg.Type {
				case pubsub.MsgDebatePropose:
					respond(map[string]any{"phase": "proposal", "response": p.proposal})
				case pubsub.MsgDebateCritique:
					respond(map[string]any{"phase": "critique", "response": p.critique})
				case pubsub.MsgDebateRevise:
					respond(map[string]any{"phase": "revision", "response": p.proposal + " (revised)"})
				case pubsub.MsgDebateVote:
					respond(map[string]any{"phase": "vote", "choice": p.choice})
				}
			case <-done:
				return
			}
		}
	}()
}

func newTestStore(t *testing.T) *memory.SQLiteStore {
	t.Helper()
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "mesh.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRun_RejectsSingleParticipant(t *testing.T) {
	o := New(pubsub.NewBus(), nil)
	if _, err := o.Run(context.Background(), "t1", "x", []string{"solo"}, Options{}); !errors.Is(err, ErrInsufficientParticipants) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_ConsensusDebate(t *testing.T) {
	bus := pubsub.NewBus()
	store := newTestStore(t)
	o := New(bus, store)
	done := make(chan struct{})
	defer close(done)

	runParticipant(t, bus, "t1", scriptedParticipant{
		name: "alice", proposal: "use sqlite", critique: "postgres is heavy", choice: "use sqlite",
	}, done)
	runParticipant(t, bus, "t1", scriptedParticipant{
		name: "bob", proposal: "use postgres", critique: "sqlite is simpler", choice: "use sqlite", double: true,
	}, done)

	outcome, err := o.Run(context.Background(), "t1", "storage engine",
		[]string{"alice", "bob"}, Options{MaxRounds: 1, RoundTimeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	if outcome.Winner != "use sqlite" || !outcome.Consensus {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(outcome.Votes) != 2 || outcome.Rounds != 1 {
		t.Errorf("outcome = %+v", outcome)
	}
	// Revisions supersede proposals
	if !strings.HasSuffix(outcome.Proposals["alice"], "(revised)") {
		t.Errorf("proposals = %+v", outcome.Proposals)
	}

	// Proposals became option nodes, critiques observation nodes
	options, err := store.ListDecisionNodes(memory.DecisionFilter{NodeType: "option"})
	if err != nil || len(options) != 2 {
		t.Errorf("option nodes = %d, %v", len(options), err)
	}
	observations, err := store.ListDecisionNodes(memory.DecisionFilter{NodeType: "observation"})
	if err != nil || len(observations) != 2 {
		t.Errorf("observation nodes = %d, %v", len(observations), err)
	}
}

func TestRun_SplitVoteNoConsensus(t *testing.T) {
	bus := pubsub.NewBus()
	o := New(bus, nil)
	done := make(chan struct{})
	defer close(done)

	runParticipant(t, bus, "t1", scriptedParticipant{
		name: "alice", proposal: "a", critique: "c", choice: "a",
	}, done)
	runParticipant(t, bus, "t1", scriptedParticipant{
		name: "bob", proposal: "b", critique: "c", choice: "b",
	}, done)

	outcome, err := o.Run(context.Background(), "t1", "topic",
		[]string{"alice", "bob"}, Options{MaxRounds: 1, RoundTimeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Consensus {
		t.Error("split vote must not be consensus")
	}
	if outcome.Winner != "a" && outcome.Winner != "b" {
		t.Errorf("winner = %q", outcome.Winner)
	}
}

func TestRun_PartialCollection(t *testing.T) {
	bus := pubsub.NewBus()
	o := New(bus, nil)
	done := make(chan struct{})
	defer close(done)

	// carol never answers anything
	runParticipant(t, bus, "t1", scriptedParticipant{
		name: "alice", proposal: "plan a", critique: "fine", choice: "plan a",
	}, done)
	runParticipant(t, bus, "t1", scriptedParticipant{
		name: "bob", proposal: "plan b", critique: "fine", choice: "plan a",
	}, done)

	outcome, err := o.Run(context.Background(), "t1", "topic",
		[]string{"alice", "bob", "carol"}, Options{MaxRounds: 1, RoundTimeout: 300 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Votes) != 2 || outcome.Winner != "plan a" {
		t.Errorf("outcome = %+v", outcome)
	}
	// Unanimous among voters but carol abstained, so no consensus
	if outcome.Consensus {
		t.Error("consensus requires every participant to vote")
	}
	if _, ok := outcome.Proposals["carol"]; ok {
		t.Error("silent participant should not have a proposal")
	}
}
