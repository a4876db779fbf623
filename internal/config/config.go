// Package config loads the agentmesh YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level agentmesh.yaml structure
type Config struct {
	Server ServerConfig `yaml:"server"`
	NATS   NATSConfig   `yaml:"nats"`
	DB     DBConfig     `yaml:"db"`
	Model  ModelConfig  `yaml:"model"`
	Teams  TeamsConfig  `yaml:"teams"`
}

// ServerConfig holds the observability HTTP server settings
type ServerConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// NATSConfig controls the embedded NATS mirror of the pubsub bus
type NATSConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// DBConfig locates the SQLite store
type DBConfig struct {
	Path string `yaml:"path"`
}

// ModelConfig holds model selection defaults
type ModelConfig struct {
	Default string `yaml:"default"`
}

// TeamsConfig holds the Teams subsystem settings
type TeamsConfig struct {
	Budget          BudgetConfig            `yaml:"budget"`
	Models          ModelsConfig            `yaml:"models"`
	MaxSubTeamDepth int                     `yaml:"max_sub_team_depth"`
	Templates       map[string]Template     `yaml:"templates"`
	Roles           map[string]RoleOverride `yaml:"roles"`
}

// BudgetConfig holds the hierarchical USD limits
type BudgetConfig struct {
	MaxPerTeamUSD  float64 `yaml:"max_per_team_usd"`
	MaxPerAgentUSD float64 `yaml:"max_per_agent_usd"`
	// HardAbort stops the in-flight turn on budget exceedance instead
	// of logging a warning and continuing.
	HardAbort bool `yaml:"hard_abort"`
}

// ModelsConfig holds model routing settings. Escalation is an ordered
// chain of provider:model strings; absence disables escalation.
type ModelsConfig struct {
	Escalation []string `yaml:"escalation"`
}

// Template describes a pre-configured team composition
type Template struct {
	Agents []TemplateAgent `yaml:"agents"`
}

// TemplateAgent is one roster entry inside a template
type TemplateAgent struct {
	Name  string `yaml:"name"`
	Role  string `yaml:"role"`
	Model string `yaml:"model,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// RoleOverride customizes a built-in or custom role by name
type RoleOverride struct {
	Tools         []string `yaml:"tools,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty"`
	SystemPrompt  string   `yaml:"system_prompt,omitempty"`
	ModelTier     string   `yaml:"model_tier,omitempty"`
	BudgetLimit   float64  `yaml:"budget_limit,omitempty"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{Enabled: true, Port: 8420},
		NATS:   NATSConfig{Enabled: false, Port: 4222},
		DB:     DBConfig{Path: "agentmesh.db"},
		Model:  ModelConfig{Default: "zai:glm-4.5"},
		Teams: TeamsConfig{
			Budget: BudgetConfig{
				MaxPerTeamUSD:  5.00,
				MaxPerAgentUSD: 1.00,
			},
			MaxSubTeamDepth: 3,
		},
	}
}

// Load reads a YAML config file, filling unset fields with defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	if c.Teams.Budget.MaxPerTeamUSD <= 0 {
		return fmt.Errorf("teams.budget.max_per_team_usd must be positive")
	}
	if c.Teams.Budget.MaxPerAgentUSD <= 0 {
		return fmt.Errorf("teams.budget.max_per_agent_usd must be positive")
	}
	if c.Teams.MaxSubTeamDepth < 0 {
		return fmt.Errorf("teams.max_sub_team_depth must not be negative")
	}
	if n := len(c.Teams.Models.Escalation); n == 1 {
		return fmt.Errorf("teams.models.escalation needs at least 2 entries, got %d", n)
	}
	return nil
}

// EscalationEnabled reports whether a model escalation chain is configured
func (c *Config) EscalationEnabled() bool {
	return len(c.Teams.Models.Escalation) >= 2
}
