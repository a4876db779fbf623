package pubsub

import "fmt"

// Topic helpers for the per-team namespace. Every agent joins its
// team's base, direct, context, tasks, and decisions topics on init.

// TeamTopic is the team-wide broadcast topic
func TeamTopic(teamID string) string {
	return "team:" + teamID
}

// AgentTopic is an agent's direct topic
func AgentTopic(teamID, agent string) string {
	return fmt.Sprintf("team:%s:agent:%s", teamID, agent)
}

// ContextTopic carries shared-context updates
func ContextTopic(teamID string) string {
	return "team:" + teamID + ":context"
}

// TasksTopic carries task lifecycle events
func TasksTopic(teamID string) string {
	return "team:" + teamID + ":tasks"
}

// DecisionsTopic carries decision graph events
func DecisionsTopic(teamID string) string {
	return "team:" + teamID + ":decisions"
}

// DebateTopic is the dedicated topic for one debate session
func DebateTopic(teamID, debateID string) string {
	return fmt.Sprintf("team:%s:debate:%s", teamID, debateID)
}

// PairTopic is the dedicated topic for one pair session
func PairTopic(teamID, pairID string) string {
	return fmt.Sprintf("team:%s:pair:%s", teamID, pairID)
}
