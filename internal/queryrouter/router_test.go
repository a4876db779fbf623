package queryrouter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AGENTMESH/internal/keeper"
	"github.com/AGENTMESH/internal/modelclient"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/types"
)

func recvMessage(t *testing.T, sub *pubsub.Subscription) pubsub.Message {
	t.Helper()
	select {
	case msg := <-sub.C:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return pubsub.Message{}
	}
}

func TestAsk_TargetedDelivery(t *testing.T) {
	bus := pubsub.NewBus()
	bobSub := bus.Subscribe(pubsub.AgentTopic("t1", "bob"))
	teamSub := bus.Subscribe(pubsub.TeamTopic("t1"))
	r := New(bus, nil)

	q, err := r.Ask(context.Background(), "t1", "alice", "where is the config?", AskOptions{Target: "bob"})
	if err != nil {
		t.Fatal(err)
	}

	msg := recvMessage(t, bobSub)
	if msg.Type != pubsub.MsgQuery || msg.Str("query_id") != q.ID || msg.From != "alice" {
		t.Errorf("query message = %+v", msg)
	}
	select {
	case got := <-teamSub.C:
		t.Errorf("targeted ask must not broadcast, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAsk_BroadcastWithoutTarget(t *testing.T) {
	bus := pubsub.NewBus()
	teamSub := bus.Subscribe(pubsub.TeamTopic("t1"))
	r := New(bus, nil)

	if _, err := r.Ask(context.Background(), "t1", "alice", "anyone know?", AskOptions{}); err != nil {
		t.Fatal(err)
	}
	if msg := recvMessage(t, teamSub); msg.Type != pubsub.MsgQuery {
		t.Errorf("message = %+v", msg)
	}
}

func TestAsk_KeeperEnrichment(t *testing.T) {
	bus := pubsub.NewBus()

	client := modelclient.NewScripted().QueueText("auth uses cookies", types.Usage{})
	authKeeper, _ := keeper.New(keeper.Options{Topic: "auth login flow", Client: client, Model: "zai:glm-4.5"})
	authKeeper.Store([]types.Message{{Role: types.RoleAssistant, Content: "cookies"}}, nil)
	offTopic, _ := keeper.New(keeper.Options{Topic: "build pipeline"})

	r := New(bus, func(teamID string) []*keeper.Keeper {
		return []*keeper.Keeper{offTopic, authKeeper}
	})

	q, err := r.Ask(context.Background(), "t1", "alice", "how does auth login work", AskOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Enrichments) != 1 || !strings.HasPrefix(q.Enrichments[0], "[Context Keeper]: ") {
		t.Fatalf("enrichments = %+v", q.Enrichments)
	}
	if !strings.Contains(q.Enrichments[0], "auth uses cookies") {
		t.Errorf("enrichment = %q", q.Enrichments[0])
	}
}

func TestAsk_NoTopicOverlapNoEnrichment(t *testing.T) {
	bus := pubsub.NewBus()
	offTopic, _ := keeper.New(keeper.Options{Topic: "deployment"})
	r := New(bus, func(string) []*keeper.Keeper { return []*keeper.Keeper{offTopic} })

	q, err := r.Ask(context.Background(), "t1", "alice", "question about parsing", AskOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Enrichments) != 0 {
		t.Errorf("enrichments = %+v", q.Enrichments)
	}
}

func TestAsk_KeeperPanicSwallowed(t *testing.T) {
	bus := pubsub.NewBus()
	r := New(bus, func(string) []*keeper.Keeper { panic("keeper registry down") })

	q, err := r.Ask(context.Background(), "t1", "alice", "still routed?", AskOptions{Target: "bob"})
	if err != nil {
		t.Fatalf("enrichment failure must not block routing: %v", err)
	}
	if len(q.Enrichments) != 0 {
		t.Errorf("enrichments = %+v", q.Enrichments)
	}
}

func TestForward_HopLimit(t *testing.T) {
	bus := pubsub.NewBus()
	r := New(bus, nil)

	q, err := r.Ask(context.Background(), "t1", "alice", "Q?", AskOptions{Target: "bob", MaxHops: 3})
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Forward(q.ID, "bob", "carol", "n1"); err != nil {
		t.Fatalf("forward 1: %v", err)
	}
	if err := r.Forward(q.ID, "carol", "dave", "n2"); err != nil {
		t.Fatalf("forward 2: %v", err)
	}
	if err := r.Forward(q.ID, "dave", "eve", "n3"); err != nil {
		t.Fatalf("forward 3: %v", err)
	}
	if err := r.Forward(q.ID, "eve", "frank", "n4"); !errors.Is(err, ErrMaxHops) {
		t.Fatalf("forward 4 err = %v, want ErrMaxHops", err)
	}

	// A rejected forward leaves the query untouched
	got, err := r.GetQuery(q.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Hops) != 3 || len(got.Enrichments) != 3 {
		t.Errorf("hops = %v, enrichments = %v", got.Hops, got.Enrichments)
	}
}

func TestForward_SingleHopBudget(t *testing.T) {
	bus := pubsub.NewBus()
	r := New(bus, nil)

	q, _ := r.Ask(context.Background(), "t1", "alice", "Q?", AskOptions{Target: "bob", MaxHops: 1})
	if err := r.Forward(q.ID, "bob", "carol", ""); err != nil {
		t.Fatalf("first forward: %v", err)
	}
	if err := r.Forward(q.ID, "carol", "dave", ""); !errors.Is(err, ErrMaxHops) {
		t.Errorf("second forward err = %v", err)
	}
}

func TestAnswer_DeliversToOrigin(t *testing.T) {
	bus := pubsub.NewBus()
	aliceSub := bus.Subscribe(pubsub.AgentTopic("t1", "alice"))
	r := New(bus, nil)

	q, _ := r.Ask(context.Background(), "t1", "alice", "Q?", AskOptions{Target: "bob"})
	if err := r.Answer(q.ID, "bob", "the answer"); err != nil {
		t.Fatal(err)
	}

	msg := recvMessage(t, aliceSub)
	if msg.Type != pubsub.MsgQueryAnswer || msg.Str("answer") != "the answer" || msg.From != "bob" {
		t.Errorf("answer message = %+v", msg)
	}

	got, _ := r.GetQuery(q.ID)
	if got.Answer != "the answer" || len(got.Hops) != 1 || got.Hops[0] != "bob" {
		t.Errorf("query after answer = %+v", got)
	}
}

func TestAnswer_UnknownQuery(t *testing.T) {
	r := New(pubsub.NewBus(), nil)
	if err := r.Answer("nope", "bob", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	bus := pubsub.NewBus()
	r := New(bus, nil)

	base := time.Now()
	r.now = func() time.Time { return base }
	q1, _ := r.Ask(context.Background(), "t1", "alice", "old?", AskOptions{})

	r.now = func() time.Time { return base.Add(10 * time.Minute) }
	q2, _ := r.Ask(context.Background(), "t1", "bob", "new?", AskOptions{})

	if removed := r.ExpireStale(5 * time.Minute); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := r.GetQuery(q1.ID); !errors.Is(err, ErrNotFound) {
		t.Error("stale query should be gone")
	}
	if _, err := r.GetQuery(q2.ID); err != nil {
		t.Errorf("fresh query dropped: %v", err)
	}
}
