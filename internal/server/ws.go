package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/AGENTMESH/internal/pubsub"
)

// writeTimeout bounds one WebSocket write; slow clients are dropped
const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamEvent is the wire frame sent to WebSocket clients
type streamEvent struct {
	TeamID  string         `json:"team_id"`
	Type    string         `json:"type"`
	From    string         `json:"from,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// handleTeamStream upgrades the connection and mirrors the team's bus
// topics to the client until it disconnects or falls behind.
func (s *Server) handleTeamStream(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["id"]
	if !s.deps.Manager.Exists(teamID) {
		s.respondError(w, http.StatusNotFound, "team not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sub := s.deps.Bus.Subscribe(
		pubsub.TeamTopic(teamID),
		pubsub.TasksTopic(teamID),
		pubsub.ContextTopic(teamID),
	)
	closed := make(chan struct{})

	// Reader drains control frames and detects disconnects
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		defer s.deps.Bus.Unsubscribe(sub)
		for {
			select {
			case msg := <-sub.C:
				event := streamEvent{
					TeamID:  teamID,
					Type:    string(msg.Type),
					From:    msg.From,
					Payload: msg.Payload,
					At:      msg.Timestamp,
				}
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}()
}
