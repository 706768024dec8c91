package orchestration

import (
	"context"

	"github.com/marendel/skein/agent"
	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/llm"
	"github.com/marendel/skein/search"
	"github.com/marendel/skein/storage"
	"github.com/marendel/skein/tools"
)

// fetchTimeoutSecs is the per-request timeout for the page fetch tool.
const fetchTimeoutSecs = 30

// Engine is the per-turn entry point: route the message, build the
// turn's tool set, run the loop. One Engine serves many turns.
type Engine struct {
	provider llm.Provider
	router   *Router
	search   search.Provider
	memory   *storage.Log
	executor *tools.Executor
}

// NewEngine wires the turn pipeline. The search provider and memory
// log may be nil; the matching tools are then omitted from turns.
func NewEngine(provider llm.Provider, agents *agent.Registry, searchProvider search.Provider, memory *storage.Log, executor *tools.Executor) *Engine {
	return &Engine{
		provider: provider,
		router:   NewRouter(provider, agents),
		search:   searchProvider,
		memory:   memory,
		executor: executor,
	}
}

// RunTurn executes one conversation turn, closing the channel when
// done. The channel always carries a terminal delta, even when routing
// fails before any agent runs.
func (e *Engine) RunTurn(ctx context.Context, ch *delta.Channel, message string, history []llm.ChatMessage) (TurnResult, error) {
	defer ch.Close()

	cfg, _, err := e.router.Route(ctx, message)
	if err != nil {
		ch.Append(delta.ErrorDelta{Message: err.Error()})
		ch.Append(delta.TextDelta{Text: fallbackAnswer})
		ch.Append(delta.FinishDelta{Reason: "error"})
		return TurnResult{Answer: fallbackAnswer}, err
	}

	loop := NewLoop(e.provider, e.turnTools(ch), e.executor, e.memory)
	return loop.Run(ctx, ch, cfg, history, message)
}

// turnTools builds the tool registry for one turn. The web search
// tool is bound to the turn's channel so its progress deltas land in
// the right stream.
func (e *Engine) turnTools(ch *delta.Channel) *tools.Registry {
	reg := tools.NewRegistry()
	if e.search != nil {
		reg.Register(tools.NewWebSearchTool(search.NewSynthesizer(e.search), ch))
	}
	reg.Register(tools.NewFetchPageTool(fetchTimeoutSecs))
	if e.memory != nil {
		reg.Register(tools.NewRecallMemoryTool(e.memory))
	}
	return reg
}
