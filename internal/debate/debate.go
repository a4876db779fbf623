// Package debate runs structured multi-agent debates: rounds of
// propose, critique and revise followed by a vote, with proposals and
// critiques logged into the decision graph.
package debate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/types"
)

const (
	// DefaultMaxRounds bounds the propose/critique/revise cycles
	DefaultMaxRounds = 3
	// DefaultRoundTimeout bounds collection per phase
	DefaultRoundTimeout = 30 * time.Second
)

// ErrInsufficientParticipants rejects debates with fewer than two agents
var ErrInsufficientParticipants = errors.New("debate: insufficient participants")

// Options tune one debate
type Options struct {
	MaxRounds    int
	RoundTimeout time.Duration
}

// Outcome is the result of a finished debate
type Outcome struct {
	DebateID  string            `json:"debate_id"`
	Topic     string            `json:"topic"`
	Proposals map[string]string `json:"proposals"` // final, per agent
	Votes     map[string]string `json:"votes"`     // voter -> choice
	Winner    string            `json:"winner"`
	Consensus bool              `json:"consensus"`
	Rounds    int               `json:"rounds"`
}

// Orchestrator runs debates for teams
type Orchestrator struct {
	bus   *pubsub.Bus
	store memory.Store
}

// New creates an orchestrator. store may be nil; decision logging is
// then skipped.
func New(bus *pubsub.Bus, store memory.Store) *Orchestrator {
	return &Orchestrator{bus: bus, store: store}
}

// Run drives a full debate among the participants and returns the
// outcome. Missing responses are tolerated per phase; only the agents
// that answer contribute.
func (o *Orchestrator) Run(ctx context.Context, teamID, topic string, participants []string, opts Options) (*Outcome, error) {
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientParticipants, len(participants))
	}
	maxRounds := opts.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	timeout := opts.RoundTimeout
	if timeout <= 0 {
		timeout = DefaultRoundTimeout
	}

	debateID := uuid.NewString()
	sub := o.bus.Subscribe(pubsub.DebateTopic(teamID, debateID))
	defer o.bus.Unsubscribe(sub)

	proposals := make(map[string]string)
	proposalNodes := make(map[string]string) // agent -> decision node id

	rounds := 0
	for round := 1; round <= maxRounds; round++ {
		rounds = round

		// Propose
		o.sendToEach(teamID, participants, pubsub.MsgDebatePropose, map[string]any{
			"debate_id": debateID,
			"round":     round,
			"topic":     topic,
		})
		for agent, msg := range o.collect(ctx, sub, participants, "proposal", timeout) {
			proposals[agent] = msg.Str("response")
			proposalNodes[agent] = o.logNode(teamID, agent, "option", msg.Str("response"))
		}

		// Critique
		critiques := make(map[string][]string) // target agent -> critiques of them
		for _, agent := range participants {
			o.bus.Broadcast(pubsub.AgentTopic(teamID, agent),
				pubsub.NewMessage(pubsub.MsgDebateCritique, "", map[string]any{
					"debate_id":        debateID,
					"round":            round,
					"others_proposals": othersOf(proposals, agent),
				}))
		}
		for agent, msg := range o.collect(ctx, sub, participants, "critique", timeout) {
			critique := msg.Str("response")
			nodeID := o.logNode(teamID, agent, "observation", critique)
			if target := msg.Str("target_node_id"); target != "" && nodeID != "" {
				o.logEdge(nodeID, target)
			}
			if target := msg.Str("target_agent"); target != "" {
				critiques[target] = append(critiques[target], critique)
			}
		}

		// Revise
		for _, agent := range participants {
			o.bus.Broadcast(pubsub.AgentTopic(teamID, agent),
				pubsub.NewMessage(pubsub.MsgDebateRevise, "", map[string]any{
					"debate_id":    debateID,
					"round":        round,
					"my_critiques": critiques[agent],
				}))
		}
		for agent, msg := range o.collect(ctx, sub, participants, "revision", timeout) {
			if revised := msg.Str("response"); revised != "" {
				proposals[agent] = revised
			}
		}
	}

	// Vote
	o.sendToEach(teamID, participants, pubsub.MsgDebateVote, map[string]any{
		"debate_id":       debateID,
		"final_proposals": proposals,
	})
	votes := make(map[string]string)
	for agent, msg := range o.collect(ctx, sub, participants, "vote", timeout) {
		if choice := msg.Str("choice"); choice != "" {
			votes[agent] = choice
		}
	}

	winner, distinct := tally(votes)
	return &Outcome{
		DebateID:  debateID,
		Topic:     topic,
		Proposals: proposals,
		Votes:     votes,
		Winner:    winner,
		Consensus: distinct <= 1 && len(votes) == len(participants),
		Rounds:    rounds,
	}, nil
}

// collect gathers one debate_response per participant for a phase,
// ignoring duplicates, until every participant answered or the round
// times out.
func (o *Orchestrator) collect(ctx context.Context, sub *pubsub.Subscription, participants []string, phase string, timeout time.Duration) map[string]pubsub.Message {
	expected := make(map[string]bool, len(participants))
	for _, p := range participants {
		expected[p] = true
	}
	got := make(map[string]pubsub.Message)
	deadline := time.After(timeout)

	for len(got) < len(participants) {
		select {
		case msg := <-sub.C:
			if msg.Type != pubsub.MsgDebateResponse || msg.Str("phase") != phase {
				continue
			}
			if !expected[msg.From] {
				continue
			}
			if _, dup := got[msg.From]; dup {
				continue
			}
			got[msg.From] = msg
		case <-deadline:
			return got
		case <-ctx.Done():
			return got
		}
	}
	return got
}

func (o *Orchestrator) sendToEach(teamID string, participants []string, msgType pubsub.MessageType, payload map[string]any) {
	for _, agent := range participants {
		o.bus.Broadcast(pubsub.AgentTopic(teamID, agent),
			pubsub.NewMessage(msgType, "", payload))
	}
}

// logNode records a debate contribution in the decision graph
func (o *Orchestrator) logNode(teamID, agent, nodeType, content string) string {
	if o.store == nil || content == "" {
		return ""
	}
	node := &types.DecisionNode{
		ID:        uuid.NewString(),
		NodeType:  nodeType,
		Title:     content,
		AgentName: agent,
		SessionID: teamID,
		CreatedAt: time.Now(),
	}
	if err := o.store.InsertDecisionNode(node); err != nil {
		log.Printf("[DEBATE] failed to log %s node: %v", nodeType, err)
		return ""
	}
	return node.ID
}

func (o *Orchestrator) logEdge(from, to string) {
	if o.store == nil {
		return
	}
	err := o.store.InsertDecisionEdge(&types.DecisionEdge{
		From:     from,
		To:       to,
		EdgeType: "supports",
	})
	if err != nil {
		log.Printf("[DEBATE] failed to log supports edge: %v", err)
	}
}

func othersOf(proposals map[string]string, agent string) map[string]string {
	others := make(map[string]string, len(proposals))
	for name, proposal := range proposals {
		if name != agent {
			others[name] = proposal
		}
	}
	return others
}

// tally returns the argmax choice and the distinct vote count
func tally(votes map[string]string) (string, int) {
	counts := make(map[string]int)
	for _, choice := range votes {
		counts[choice]++
	}
	winner := ""
	best := 0
	for choice, n := range counts {
		if n > best || (n == best && choice < winner) {
			winner = choice
			best = n
		}
	}
	return winner, len(counts)
}
