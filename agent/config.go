// Package agent defines agent configurations and the registry the
// router selects from.
//
// Information Hiding:
// - Registry storage and locking hidden from consumers
// - Default agent set construction hidden behind WithDefaults
package agent

import (
	"fmt"
	"strings"
)

// DefaultMaxSteps bounds the tool-use loop for agents that don't set
// their own budget.
const DefaultMaxSteps = 8

// Config holds one agent's configuration.
type Config struct {
	// ID is the unique registry key, lowercase kebab-case.
	ID string `json:"id"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// Description explains what this agent does. The router reads
	// these when choosing an agent, so it should say when to pick
	// this agent, not just what it is.
	Description string `json:"description"`

	// Model overrides the configured default model when set.
	Model string `json:"model,omitempty"`

	// SystemPrompt guides the agent's behavior.
	SystemPrompt string `json:"-"`

	// Tools names the registry tools available to this agent.
	Tools []string `json:"tools,omitempty"`

	// Capabilities tags the agent for listing surfaces.
	Capabilities []string `json:"capabilities,omitempty"`

	// MaxSteps bounds the tool-use loop; 0 uses DefaultMaxSteps.
	MaxSteps int `json:"-"`
}

// StepBudget returns the effective loop bound.
func (c Config) StepBudget() int {
	if c.MaxSteps <= 0 {
		return DefaultMaxSteps
	}
	return c.MaxSteps
}

// HasTools returns true if the agent has tools configured.
func (c Config) HasTools() bool {
	return len(c.Tools) > 0
}

// Validate checks the configuration for registry admission.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("agent id cannot be empty")
	}
	if c.ID != strings.ToLower(c.ID) || strings.ContainsAny(c.ID, " _") {
		return fmt.Errorf("agent id %q must be lowercase kebab-case", c.ID)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("agent %q: name cannot be empty", c.ID)
	}
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("agent %q: description cannot be empty", c.ID)
	}
	return nil
}
