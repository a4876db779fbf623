// Package server exposes the observability HTTP API: team and task
// inspection over REST plus live event streaming over WebSocket.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/AGENTMESH/internal/cost"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/ratelimit"
	"github.com/AGENTMESH/internal/teams"
	"github.com/AGENTMESH/internal/teamtable"
)

// Deps are the services the API reads from
type Deps struct {
	Manager *teams.Manager
	Tables  *teamtable.Registry
	Limiter *ratelimit.Limiter
	Tracker *cost.Tracker
	Bus     *pubsub.Bus
}

// Server is the observability HTTP server
type Server struct {
	deps       Deps
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

// NewServer wires the routes
func NewServer(deps Deps) *Server {
	s := &Server{
		deps:      deps,
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/teams", s.handleListTeams).Methods("GET")
	api.HandleFunc("/teams", s.handleCreateTeam).Methods("POST")
	api.HandleFunc("/teams/{id}", s.handleGetTeam).Methods("GET")
	api.HandleFunc("/teams/{id}", s.handleDissolveTeam).Methods("DELETE")
	api.HandleFunc("/teams/{id}/agents", s.handleListAgents).Methods("GET")
	api.HandleFunc("/teams/{id}/tasks", s.handleListTasks).Methods("GET")
	api.HandleFunc("/teams/{id}/tasks", s.handleCreateTask).Methods("POST")
	api.HandleFunc("/teams/{id}/usage", s.handleGetUsage).Methods("GET")
	api.HandleFunc("/teams/{id}/claims", s.handleListClaims).Methods("GET")

	s.router.HandleFunc("/ws/teams/{id}", s.handleTeamStream)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	log.Printf("[SERVER] listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
