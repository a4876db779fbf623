package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AGENTMESH/internal/config"
	"github.com/AGENTMESH/internal/cost"
	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/modelclient"
	"github.com/AGENTMESH/internal/modelrouter"
	"github.com/AGENTMESH/internal/natsbridge"
	"github.com/AGENTMESH/internal/pubsub"
	"github.com/AGENTMESH/internal/ratelimit"
	"github.com/AGENTMESH/internal/server"
	"github.com/AGENTMESH/internal/teams"
	"github.com/AGENTMESH/internal/teamtable"
	"github.com/AGENTMESH/internal/tools"
	"github.com/AGENTMESH/internal/tools/builtin"
)

func main() {
	configPath := flag.String("config", "agentmesh.yaml", "Configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		log.Printf("[MAIN] no config at %s, using defaults", *configPath)
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	store, err := memory.NewSQLiteStore(cfg.DB.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Printf("[MAIN] store open at %s", cfg.DB.Path)

	bus := pubsub.NewBus()

	// Optional NATS mirror for external observers
	var natsServer *natsbridge.EmbeddedServer
	var bridge *natsbridge.Bridge
	if cfg.NATS.Enabled {
		natsServer = natsbridge.NewEmbeddedServer(natsbridge.EmbeddedServerConfig{Port: cfg.NATS.Port})
		if err := natsServer.Start(); err != nil {
			log.Printf("[NATS] failed to start embedded server: %v", err)
			natsServer = nil
		} else {
			log.Printf("[NATS] embedded server on %s", natsServer.ClientURL())
			bridge, err = natsbridge.Connect(natsServer.ClientURL())
			if err != nil {
				log.Printf("[NATS] failed to connect bridge: %v", err)
			} else {
				bridge.AttachTo(bus)
			}
		}
	}

	tables := teamtable.NewRegistry()
	limiter := ratelimit.New(cfg.Teams.Budget.MaxPerTeamUSD, cfg.Teams.Budget.MaxPerAgentUSD)
	tracker := cost.NewTracker(store)
	router := modelrouter.New(cfg.Model.Default, cfg.Teams.Models.Escalation)
	client := modelclient.NewOpenAI(modelclient.HTTPConfig{})

	registry := tools.NewRegistry()
	if err := builtin.RegisterAll(registry, store); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register tools: %v\n", err)
		os.Exit(1)
	}

	manager := teams.NewManager(teams.Deps{
		Config:  cfg,
		Bus:     bus,
		Tables:  tables,
		Limiter: limiter,
		Tracker: tracker,
		Router:  router,
		Store:   store,
		Client:  client,
		Tools:   registry,
	})

	srv := server.NewServer(server.Deps{
		Manager: manager,
		Tables:  tables,
		Limiter: limiter,
		Tracker: tracker,
		Bus:     bus,
	})

	serverErr := make(chan error, 1)
	if cfg.Server.Enabled {
		go func() {
			serverErr <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
		}()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		}
	case <-shutdown:
		log.Printf("[MAIN] shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dissolving flushes keepers and stops every agent
	for _, teamID := range manager.TeamIDs() {
		if err := manager.DissolveTeam(teamID); err != nil {
			log.Printf("[MAIN] failed to dissolve %s: %v", teamID, err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] server shutdown: %v", err)
	}
	if bridge != nil {
		bridge.Flush()
		bridge.Close()
	}
	if natsServer != nil {
		natsServer.Shutdown()
	}
}
