package agent

import (
	"fmt"
	"sort"
	"sync"
)

// RouterID is the distinguished agent that picks among the others.
// It never appears in routing candidates and is not directly
// addressable by clients.
const RouterID = "router"

// Registry holds the agent set. Agents are registered explicitly at
// startup; there is no discovery.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Config
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Config)}
}

// Register adds an agent. Returns an error for invalid configs or
// duplicate IDs.
func (r *Registry) Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[cfg.ID]; exists {
		return fmt.Errorf("agent %q already registered", cfg.ID)
	}
	r.agents[cfg.ID] = cfg
	return nil
}

// Get returns an agent by ID.
func (r *Registry) Get(id string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.agents[id]
	return cfg, ok
}

// Router returns the distinguished router agent.
func (r *Registry) Router() (Config, bool) {
	return r.Get(RouterID)
}

// List returns all agents except the router, sorted by ID. This is
// both the routing candidate set and the public listing.
func (r *Registry) List() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Config, 0, len(r.agents))
	for id, cfg := range r.agents {
		if id == RouterID {
			continue
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithDefaults creates a registry populated with the stock agents.
func WithDefaults() (*Registry, error) {
	registry := NewRegistry()

	defaults := []Config{
		{
			ID:          RouterID,
			Name:        "Router",
			Description: "Routes each request to the best-suited agent.",
			SystemPrompt: "You route user requests to agents. Reply with a JSON object " +
				`{"agent": "<id>", "reason": "<why>"} and nothing else. ` +
				"Choose exactly one agent from the provided list.",
		},
		{
			ID:   "research",
			Name: "Research",
			Description: "Answers questions that need current information from the web. " +
				"Pick for news, prices, releases, or anything time-sensitive.",
			SystemPrompt: "You are a research assistant. Use web_search to gather current " +
				"information and fetch_page to read promising sources before answering. " +
				"Cite the URLs you relied on.",
			Tools:        []string{"web_search", "fetch_page", "recall_memory"},
			Capabilities: []string{"web-search", "source-reading"},
			MaxSteps:     10,
		},
		{
			ID:   "assistant",
			Name: "Assistant",
			Description: "General conversation, writing, and reasoning that needs no " +
				"external information. Pick when web access would not help.",
			SystemPrompt: "You are a helpful, concise assistant. Use recall_memory when the " +
				"user refers to earlier work.",
			Tools:        []string{"recall_memory"},
			Capabilities: []string{"conversation", "writing"},
		},
	}

	for _, cfg := range defaults {
		if err := registry.Register(cfg); err != nil {
			return nil, fmt.Errorf("register default agents: %w", err)
		}
	}
	return registry, nil
}
