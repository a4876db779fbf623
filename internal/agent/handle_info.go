package agent

import (
	"fmt"
	"log"
	"strings"

	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/types"
)

// handleInfo reacts to team traffic between turns. Runs inside the
// actor goroutine.
func (a *Agent) handleInfo(msg pubsub.Message) {
	switch msg.Type {
	case pubsub.MsgContextUpdate:
		if msg.From != "" {
			a.peerContext[msg.From] = msg.Payload
		}

	case pubsub.MsgAgentStatus:
		log.Printf("[AGENT] %s/%s saw status %s=%s", a.teamID, a.name,
			msg.Str("name"), msg.Str("status"))

	case pubsub.MsgPeerMessage:
		if msg.From == a.name {
			return
		}
		a.append(types.Message{
			Role:    types.RoleUser,
			Content: fmt.Sprintf("[Peer %s]: %s", msg.From, msg.Str("content")),
		})

	case pubsub.MsgTaskAssigned:
		if msg.Str("agent") != a.name {
			return
		}
		a.prefetchKeeperContext(msg.Str("description"))

	case pubsub.MsgKeeperCreated:
		if msg.Str("source") == a.name {
			return
		}
		a.append(types.Message{
			Role: types.RoleSystem,
			Content: fmt.Sprintf("New keeper available: Keeper:%s topic=%s source=%s tokens=%d",
				msg.Str("id"), msg.Str("topic"), msg.Str("source"), msg.Int("tokens")),
		})

	case pubsub.MsgQuery:
		if msg.From == a.name {
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[Query from %s | ID: %s]\n%s\n", msg.From, msg.Str("query_id"), msg.Str("question"))
		for _, enrichment := range msg.Strs("enrichments") {
			fmt.Fprintf(&b, "\n%s\n", enrichment)
		}
		b.WriteString("\nYou can respond using peer_answer_question with this query ID.")
		a.append(types.Message{Role: types.RoleUser, Content: b.String()})

	case pubsub.MsgQueryAnswer:
		a.append(types.Message{
			Role: types.RoleUser,
			Content: fmt.Sprintf("[Answer from %s | Query: %s] %s",
				msg.From, msg.Str("query_id"), msg.Str("answer")),
		})

	default:
		// Everything else is not for agents
	}
}
