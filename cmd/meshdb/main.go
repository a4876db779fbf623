// meshdb is a small inspector for the agentmesh SQLite store.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/AGENTMESH/internal/memory"
)

func main() {
	dbPath := flag.String("db", "agentmesh.db", "Path to SQLite store")
	action := flag.String("action", "", "Action to perform: tasks, keepers, decisions")
	teamID := flag.String("team", "", "Team ID filter")
	nodeType := flag.String("type", "", "Decision node type filter")
	limit := flag.Int("limit", 50, "Maximum rows for decisions")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *action == "" {
		fmt.Fprintf(os.Stderr, "Usage: meshdb -db <path> -action <action> [-team <id>] [-json]\n")
		fmt.Fprintf(os.Stderr, "Actions: tasks, keepers, decisions\n")
		os.Exit(1)
	}

	store, err := memory.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch *action {
	case "tasks":
		if *teamID == "" {
			fmt.Fprintf(os.Stderr, "tasks requires -team\n")
			os.Exit(1)
		}
		list, err := store.ListTasksByTeam(*teamID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list tasks: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(list)
			return
		}
		for _, task := range list {
			fmt.Printf("%s  p%d  %-10s  %-12s  %s\n",
				task.ID, task.Priority, task.Status, task.Owner, task.Title)
		}

	case "keepers":
		list, err := store.ListKeepers(*teamID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list keepers: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(list)
			return
		}
		for _, rec := range list {
			fmt.Printf("%s  team=%s  topic=%s  source=%s  tokens=%d  %s\n",
				rec.ID, rec.TeamID, rec.Topic, rec.SourceAgent, rec.TokenCount, rec.Status)
		}

	case "decisions":
		nodes, err := store.ListDecisionNodes(memory.DecisionFilter{
			SessionID: *teamID,
			NodeType:  *nodeType,
			Limit:     *limit,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list decision nodes: %v\n", err)
			os.Exit(1)
		}
		if *jsonOutput {
			json.NewEncoder(os.Stdout).Encode(nodes)
			return
		}
		for _, node := range nodes {
			fmt.Printf("%s  %-12s  %-8s  [%s] %s\n",
				node.ID, node.NodeType, node.Status, node.AgentName, node.Title)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", *action)
		os.Exit(1)
	}
}
