// Package pair implements pair programming sessions: a coder and a
// reviewer linked by a session id, with a dedicated event stream.
package pair

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/teamtable"
)

var (
	// ErrSameAgent rejects pairing an agent with itself
	ErrSameAgent = errors.New("pair: coder and reviewer must differ")
	// ErrNotFound means the pair session does not exist
	ErrNotFound = errors.New("pair: session not found")
	// ErrTeamNotFound means the team has no live table
	ErrTeamNotFound = errors.New("pair: team not found")
	// ErrUnknownEvent rejects events outside the pair grammar
	ErrUnknownEvent = errors.New("pair: unknown event")
)

// The pair event grammar
const (
	EventIntentBroadcast = "intent_broadcast"
	EventFileEdited      = "file_edited"
	EventReviewFeedback  = "review_feedback"
	EventReviewApproved  = "review_approved"
	EventReviewRejected  = "review_rejected"
)

var validEvents = map[string]bool{
	EventIntentBroadcast: true,
	EventFileEdited:      true,
	EventReviewFeedback:  true,
	EventReviewApproved:  true,
	EventReviewRejected:  true,
}

// Manager runs pair sessions over the team tables
type Manager struct {
	bus    *pubsub.Bus
	tables *teamtable.Registry
}

// New creates a pair manager
func New(bus *pubsub.Bus, tables *teamtable.Registry) *Manager {
	return &Manager{bus: bus, tables: tables}
}

// StartPair links a coder and a reviewer, notifies both directly and
// announces the session to the team.
func (m *Manager) StartPair(teamID, coder, reviewer string, opts map[string]any) (teamtable.PairSession, error) {
	if coder == reviewer {
		return teamtable.PairSession{}, ErrSameAgent
	}
	table := m.tables.Get(teamID)
	if table == nil {
		return teamtable.PairSession{}, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	session := teamtable.PairSession{
		ID:        uuid.NewString(),
		Coder:     coder,
		Reviewer:  reviewer,
		StartedAt: time.Now(),
		Opts:      opts,
	}
	table.PutPair(session)

	m.bus.Broadcast(pubsub.AgentTopic(teamID, coder),
		pubsub.NewMessage(pubsub.MsgPairStarted, "", map[string]any{
			"pair_id":  session.ID,
			"position": "coder",
			"peer":     reviewer,
		}))
	m.bus.Broadcast(pubsub.AgentTopic(teamID, reviewer),
		pubsub.NewMessage(pubsub.MsgPairStarted, "", map[string]any{
			"pair_id":  session.ID,
			"position": "reviewer",
			"peer":     coder,
		}))
	m.bus.Broadcast(pubsub.TeamTopic(teamID),
		pubsub.NewMessage(pubsub.MsgPairSessionStarted, "", map[string]any{
			"pair_id":  session.ID,
			"coder":    coder,
			"reviewer": reviewer,
		}))
	return session, nil
}

// BroadcastEvent publishes a pair event on the session's stream
func (m *Manager) BroadcastEvent(teamID, pairID, event, from string, payload map[string]any) error {
	if !validEvents[event] {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	if _, ok := m.tables.Get(teamID).GetPair(pairID); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pairID)
	}

	m.bus.Broadcast(pubsub.PairTopic(teamID, pairID),
		pubsub.NewMessage(pubsub.MsgPairEvent, from, map[string]any{
			"event":   event,
			"pair_id": pairID,
			"payload": payload,
			"ts":      time.Now().UnixMilli(),
		}))
	return nil
}

// GetPair returns a live session
func (m *Manager) GetPair(teamID, pairID string) (teamtable.PairSession, bool) {
	return m.tables.Get(teamID).GetPair(pairID)
}

// StopPair tears a session down and announces the stop
func (m *Manager) StopPair(teamID, pairID string) error {
	table := m.tables.Get(teamID)
	if _, ok := table.GetPair(pairID); !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, pairID)
	}
	table.DeletePair(pairID)

	m.bus.Broadcast(pubsub.TeamTopic(teamID),
		pubsub.NewMessage(pubsub.MsgPairSessionStopped, "", map[string]any{
			"pair_id": pairID,
		}))
	return nil
}
