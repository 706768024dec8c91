package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marendel/skein/agent"
	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/llm"
	"github.com/marendel/skein/model"
	"github.com/marendel/skein/storage"
	"github.com/marendel/skein/tools"
)

// fallbackAnswer is sent when the provider fails mid-turn so the
// client always receives a terminal text instead of silence.
const fallbackAnswer = "I ran into a problem completing this request. Please try again."

// memoryRecallLimit caps how many past entries are injected into the
// system prompt.
const memoryRecallLimit = 3

// Loop drives one agent through its tool-use rounds, streaming every
// visible event onto the turn's delta channel.
type Loop struct {
	provider llm.Provider
	registry *tools.Registry
	executor *tools.Executor
	memory   *storage.Log
}

// NewLoop creates a loop. Memory may be nil to disable recall and
// turn recording.
func NewLoop(provider llm.Provider, registry *tools.Registry, executor *tools.Executor, memory *storage.Log) *Loop {
	return &Loop{provider: provider, registry: registry, executor: executor, memory: memory}
}

// TurnResult summarizes a completed turn.
type TurnResult struct {
	Answer    string
	Rounds    int
	ToolCalls []model.ToolCallMetrics
	Usage     llm.TokenUsage
}

// Run executes the turn. History carries prior conversation turns;
// request is the new user message. The channel receives thinking,
// tool-call, tool-result and text deltas, always ending with a finish
// delta. Run never leaves the channel without a terminal delta.
func (l *Loop) Run(ctx context.Context, ch *delta.Channel, cfg agent.Config, history []llm.ChatMessage, request string) (TurnResult, error) {
	messages := l.buildMessages(cfg, history, request)
	definitions := l.registry.Definitions(cfg.Tools)

	var result TurnResult
	budget := cfg.StepBudget()

	for round := 0; round < budget; round++ {
		result.Rounds = round + 1

		resp, err := l.provider.ChatWithTools(ctx, messages, definitions)
		if err != nil {
			ch.Append(delta.ErrorDelta{Message: err.Error()})
			ch.Append(delta.TextDelta{Text: fallbackAnswer})
			ch.Append(delta.FinishDelta{Reason: "error"})
			result.Answer = fallbackAnswer
			// Fallback turns are recorded like any other completed turn.
			l.record(ctx, cfg, request, result)
			return result, fmt.Errorf("agent %q round %d: %w", cfg.ID, round+1, err)
		}
		result.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			result.Answer = resp.Content
			ch.Append(delta.TextDelta{Text: resp.Content})
			ch.Append(delta.FinishDelta{Reason: "stop"})
			l.record(ctx, cfg, request, result)
			return result, nil
		}

		if resp.Content != "" {
			ch.Append(delta.ThinkingDelta{Agent: cfg.ID, Text: resp.Content})
		}

		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			messages = append(messages, l.runTool(ctx, ch, &result, call))
		}
	}

	// Budget exhausted: surface what we have rather than looping on.
	result.Answer = "I could not finish within the step limit. Partial progress is shown above."
	ch.Append(delta.TextDelta{Text: result.Answer})
	ch.Append(delta.FinishDelta{Reason: "length"})
	l.record(ctx, cfg, request, result)
	return result, nil
}

// runTool executes one tool call, streams its deltas, and returns the
// tool-result message for the conversation.
func (l *Loop) runTool(ctx context.Context, ch *delta.Channel, result *TurnResult, call llm.ToolCall) llm.ChatMessage {
	ch.Append(delta.ToolCallDelta{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
	})

	started := time.Now()
	var toolResult tools.ToolResult
	tool, ok := l.registry.Get(call.Name)
	if !ok {
		toolResult = tools.FailureResultf("unknown tool %q", call.Name)
	} else {
		var err error
		toolResult, err = l.executor.Execute(ctx, tool, call.Arguments)
		if err != nil {
			toolResult = tools.FailureResult(err)
		}
	}

	output := toolResult.Output
	if !toolResult.Success() {
		output = "Error: " + toolResult.Error.Error()
	}
	result.ToolCalls = append(result.ToolCalls, model.ToolCallMetrics{
		Name:       call.Name,
		InputSize:  len(call.Arguments),
		OutputSize: len(output),
		DurationMs: uint64(time.Since(started).Milliseconds()),
		Success:    toolResult.Success(),
	})

	ch.Append(delta.ToolResultDelta{
		ID:      call.ID,
		Name:    call.Name,
		Output:  output,
		IsError: !toolResult.Success(),
	})
	return llm.ToolResultMessage(call.ID, output)
}

// buildMessages assembles the system prompt (with recalled memory),
// prior history, and the new request.
func (l *Loop) buildMessages(cfg agent.Config, history []llm.ChatMessage, request string) []llm.ChatMessage {
	system := cfg.SystemPrompt
	if l.memory != nil {
		if recalled := l.memory.RetrieveRelevantContext(request, memoryRecallLimit); len(recalled) > 0 {
			var b strings.Builder
			b.WriteString(system)
			b.WriteString("\n\nRelevant past work:\n")
			for _, e := range recalled {
				fmt.Fprintf(&b, "- %s -> %s\n", e.Request, e.Outcome)
			}
			system = b.String()
		}
	}

	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(system))
	messages = append(messages, history...)
	messages = append(messages, llm.UserMessage(request))
	return messages
}

// record stores the completed turn in memory.
func (l *Loop) record(ctx context.Context, cfg agent.Config, request string, result TurnResult) {
	if l.memory == nil {
		return
	}

	outcome := result.Answer
	if len(outcome) > 280 {
		outcome = outcome[:280]
	}
	var reflection string
	if len(result.ToolCalls) > 0 {
		names := make([]string, 0, len(result.ToolCalls))
		for _, tc := range result.ToolCalls {
			names = append(names, tc.Name)
		}
		reflection = fmt.Sprintf("agent=%s rounds=%d tools=%s", cfg.ID, result.Rounds, strings.Join(names, ","))
	} else {
		reflection = fmt.Sprintf("agent=%s rounds=%d", cfg.ID, result.Rounds)
	}

	// Memory failures never fail the turn.
	_, _ = l.memory.StoreExecution(ctx, storage.MemoryEntry{
		Request:    request,
		Outcome:    outcome,
		Reflection: reflection,
	})
}
