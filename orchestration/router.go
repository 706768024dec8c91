// Package orchestration runs the per-turn pipeline: route the request
// to an agent, then drive its tool-use loop while streaming deltas.
//
// Information Hiding:
// - Routing prompt construction hidden
// - Loop bookkeeping (history, budget, metrics) hidden
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marendel/skein/agent"
	"github.com/marendel/skein/internal/jsonx"
	"github.com/marendel/skein/llm"
)

// ErrUnknownAgent is returned when the router selects an agent that
// is not in the registry. Routing fails closed: the turn errors
// instead of falling back to an arbitrary agent.
var ErrUnknownAgent = errors.New("router selected unknown agent")

// Router picks the agent for a request with one model call.
type Router struct {
	client   *llm.Client
	registry *agent.Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(provider llm.Provider, registry *agent.Registry) *Router {
	return &Router{client: llm.NewClient(provider), registry: registry}
}

// Selection is the router's decision.
type Selection struct {
	Agent  string `json:"agent"`
	Reason string `json:"reason,omitempty"`
}

// Route selects an agent for the request. The model sees every
// non-router agent's ID, name, description and capabilities and must
// answer with JSON.
func (r *Router) Route(ctx context.Context, request string) (agent.Config, Selection, error) {
	router, ok := r.registry.Router()
	if !ok {
		return agent.Config{}, Selection{}, fmt.Errorf("no router agent registered")
	}
	candidates := r.registry.List()
	if len(candidates) == 0 {
		return agent.Config{}, Selection{}, fmt.Errorf("no routable agents registered")
	}

	messages := []llm.ChatMessage{
		llm.SystemMessage(router.SystemPrompt),
		llm.UserMessage(routingPrompt(request, candidates)),
	}
	content, err := r.client.Chat(ctx, messages)
	if err != nil {
		return agent.Config{}, Selection{}, fmt.Errorf("routing call failed: %w", err)
	}

	selection, err := jsonx.Decode[Selection](content)
	if err != nil {
		return agent.Config{}, Selection{}, fmt.Errorf("parse routing decision: %w", err)
	}

	chosen, ok := r.registry.Get(strings.TrimSpace(selection.Agent))
	if !ok || chosen.ID == agent.RouterID {
		return agent.Config{}, selection, fmt.Errorf("%w: %q", ErrUnknownAgent, selection.Agent)
	}
	return chosen, selection, nil
}

func routingPrompt(request string, candidates []agent.Config) string {
	var b strings.Builder
	b.WriteString("Available agents:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s (%s): %s", c.ID, c.Name, c.Description)
		if len(c.Capabilities) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(c.Capabilities, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUser request:\n")
	b.WriteString(request)
	return b.String()
}
