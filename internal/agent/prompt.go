package agent

import (
	"fmt"
	"strings"

	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/types"
)

// Context window sizes used for the pressure indicator. Unlisted
// models get the default.
var contextWindows = map[string]int{
	"anthropic:claude-haiku-4-5":  200_000,
	"anthropic:claude-sonnet-4-6": 200_000,
	"anthropic:claude-opus-4-6":   200_000,
	"zai:glm-4.5":                 128_000,
	"zai:glm-5":                   128_000,
}

const defaultContextWindow = 128_000

func contextWindow(model string) int {
	if w, ok := contextWindows[model]; ok {
		return w
	}
	return defaultContextWindow
}

// buildSystemPrompt assembles the turn's system prompt from the role
// prompt, project rules, the decision graph, the keeper index, and a
// context-pressure note when the conversation gets heavy.
func (a *Agent) buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString(a.role.SystemPrompt)

	if a.deps.ProjectRules != nil {
		if rules := a.deps.ProjectRules(a.projectPath); rules != "" {
			b.WriteString("\n\n## Project rules\n")
			b.WriteString(rules)
		}
	}
	if a.deps.RepoMap != nil {
		if repoMap := a.deps.RepoMap(a.projectPath); repoMap != "" {
			b.WriteString("\n\n## Repository map\n")
			b.WriteString(repoMap)
		}
	}

	a.writeDecisionContext(&b)
	a.writeKeeperIndex(&b)

	if used := types.EstimateTotalTokens(a.messages); used >= contextWindow(a.model)/2 {
		fmt.Fprintf(&b, "\n\nYour conversation is using %d tokens, over half the model's context window. "+
			"Consider offloading older context with context_offload.", used)
	}
	return b.String()
}

// writeDecisionContext appends active goals and recent decisions
func (a *Agent) writeDecisionContext(b *strings.Builder) {
	if a.deps.Store == nil {
		return
	}
	goals, err := a.deps.Store.ListDecisionNodes(memory.DecisionFilter{
		NodeType: "goal", Status: "active", Limit: 5,
	})
	if err == nil && len(goals) > 0 {
		b.WriteString("\n\n## Active goals\n")
		for _, g := range goals {
			fmt.Fprintf(b, "- %s\n", g.Title)
		}
	}
	decisions, err := a.deps.Store.ListDecisionNodes(memory.DecisionFilter{
		NodeType: "decision", Limit: 5,
	})
	if err == nil && len(decisions) > 0 {
		b.WriteString("\n## Recent decisions\n")
		for _, d := range decisions {
			fmt.Fprintf(b, "- %s (confidence %d)\n", d.Title, d.Confidence)
		}
	}
}

// writeKeeperIndex appends the index lines of the team's keepers
func (a *Agent) writeKeeperIndex(b *strings.Builder) {
	if a.deps.Keepers == nil {
		return
	}
	keepers := a.deps.Keepers(a.teamID)
	if len(keepers) == 0 {
		return
	}
	b.WriteString("\n\n## Available context keepers\n")
	for _, k := range keepers {
		fmt.Fprintf(b, "- %s\n", k.IndexEntry())
	}
}
