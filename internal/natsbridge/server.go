// Package natsbridge mirrors the in-memory pubsub fabric onto an
// embedded NATS server so external observers (CLI, dashboards) can
// follow team traffic without linking the core.
package natsbridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServerConfig holds configuration for the embedded NATS server
type EmbeddedServerConfig struct {
	Port int // Port to listen on; 0 picks a random free port
}

// EmbeddedServer wraps an in-process NATS server
type EmbeddedServer struct {
	server  *server.Server
	config  EmbeddedServerConfig
	mu      sync.RWMutex
	running bool
}

// NewEmbeddedServer creates a new embedded NATS server instance
func NewEmbeddedServer(config EmbeddedServerConfig) *EmbeddedServer {
	return &EmbeddedServer{config: config}
}

// Start starts the embedded NATS server and waits for it to accept connections
func (e *EmbeddedServer) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("server already running")
	}

	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       e.config.Port,
		NoLog:      true,
		NoSigs:     true,
		MaxPayload: 1024 * 1024, // 1MB max payload
	}
	if opts.Port == 0 {
		opts.Port = server.RANDOM_PORT
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return fmt.Errorf("NATS server did not become ready")
	}

	e.server = ns
	e.running = true
	return nil
}

// ClientURL returns the URL clients should connect to
func (e *EmbeddedServer) ClientURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.server == nil {
		return ""
	}
	return e.server.ClientURL()
}

// Running reports whether the server is accepting connections
func (e *EmbeddedServer) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Shutdown stops the server and waits for it to exit
func (e *EmbeddedServer) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.server.Shutdown()
	e.server.WaitForShutdown()
	e.running = false
}
