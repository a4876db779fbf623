package natsbridge

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/AGENTMESH/internal/pubsub"
)

// SubjectPrefix namespaces all mirrored traffic on the NATS side
const SubjectPrefix = "agentmesh"

// Bridge taps the pubsub bus and republishes every message as JSON on
// a NATS subject. Mirroring is best-effort and never blocks the bus.
type Bridge struct {
	conn *nc.Conn
}

// Connect dials the NATS server with reconnect handling
func Connect(url string) (*Bridge, error) {
	opts := []nc.Option{
		nc.ReconnectWait(2 * time.Second),
		nc.MaxReconnects(-1), // Reconnect indefinitely
		nc.DisconnectErrHandler(func(conn *nc.Conn, err error) {
			if err != nil {
				log.Printf("[NATS] Disconnected: %v", err)
			}
		}),
		nc.ReconnectHandler(func(conn *nc.Conn) {
			log.Printf("[NATS] Reconnected to %s", conn.ConnectedUrl())
		}),
	}

	conn, err := nc.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bridge{conn: conn}, nil
}

// Subject maps a bus topic to its NATS subject.
// "team:t1:tasks" becomes "agentmesh.team.t1.tasks".
func Subject(topic string) string {
	return SubjectPrefix + "." + strings.ReplaceAll(topic, ":", ".")
}

// AttachTo registers the bridge as a tap on the bus
func (b *Bridge) AttachTo(bus *pubsub.Bus) {
	bus.Tap(func(topic string, msg pubsub.Message) {
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}
		// Fire and forget; NATS buffers internally
		_ = b.conn.Publish(Subject(topic), data)
	})
}

// Flush waits for buffered publishes to reach the server
func (b *Bridge) Flush() error {
	return b.conn.Flush()
}

// Close drains and closes the connection
func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
