// Command execution for CLI commands.
//
// Information Hiding:
// - Pipeline assembly (provider, agents, tools, memory) hidden
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/marendel/skein/agent"
	"github.com/marendel/skein/config"
	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/llm"
	"github.com/marendel/skein/orchestration"
	"github.com/marendel/skein/reconstruct"
	"github.com/marendel/skein/search"
	"github.com/marendel/skein/server"
	"github.com/marendel/skein/storage"
	"github.com/marendel/skein/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider string
	Verbose  bool
}

// buildEngine assembles the full turn pipeline from settings. The
// returned store is nil unless a data directory is configured.
func buildEngine(settings config.Settings) (*orchestration.Engine, *agent.Registry, *storage.SqliteStore, error) {
	provider, err := llm.NewFromName(settings.LLM.Provider, llm.Options{
		Model:       settings.LLM.Model,
		MaxTokens:   settings.LLM.MaxTokens,
		Temperature: float32(settings.LLM.Temperature),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	agents, err := agent.WithDefaults()
	if err != nil {
		return nil, nil, nil, err
	}

	var searchProvider search.Provider
	if settings.Search.APIKey != "" {
		client := search.NewClient(settings.Search.APIKey)
		if settings.Search.Endpoint != "" {
			client = client.WithEndpoint(settings.Search.Endpoint)
		}
		searchProvider = client
	}

	var store *storage.SqliteStore
	var sink storage.EntrySink
	if settings.Server.DataDir != "" {
		store, err = storage.OpenSqlite(filepath.Join(settings.Server.DataDir, "skein.db"))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open data store: %w", err)
		}
		sink = store
	}
	memory := storage.NewLog(settings.Memory.RingCapacity, sink)

	executor := tools.NewExecutor(tools.ExecutorConfig{MaxAttempts: settings.Agent.ToolRetries})
	return orchestration.NewEngine(provider, agents, searchProvider, memory, executor), agents, store, nil
}

// Serve runs the HTTP server until interrupted.
func Serve(ctx context.Context, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	engine, agents, store, err := buildEngine(settings)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(settings.Server, agents, engine, nil)
	if store != nil {
		srv.WithConversations(store)
	}
	return srv.Run(ctx)
}

// Chat runs one conversation turn and prints the reconstructed result.
func Chat(ctx context.Context, message string, opts Options) error {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return err
	}
	engine, _, store, err := buildEngine(settings)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ch := delta.NewChannel()
	done := make(chan error, 1)
	go func() {
		_, err := engine.RunTurn(ctx, ch, message, nil)
		done <- err
	}()

	rec := reconstruct.New()
	var seen []delta.Delta
	for d := range ch.Watch(ctx) {
		if opts.Verbose {
			printDelta(d)
		}
		seen = append(seen, d)
		rec.Process(seen)
	}
	if err := <-done; err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	printTurn(rec)
	return nil
}

// printDelta shows the live event feed in verbose mode.
func printDelta(d delta.Delta) {
	switch v := d.(type) {
	case delta.StatusDelta:
		fmt.Printf("  [status] %s\n", v.Status)
	case delta.QueryDelta:
		fmt.Printf("  [query] %q\n", v.Query)
	case delta.StepDelta:
		marker := " "
		if v.Step.Completed {
			marker = "x"
		}
		fmt.Printf("  [%s] %s\n", marker, v.Step.Title)
	case delta.ThinkingDelta:
		fmt.Printf("  [%s] %s\n", v.Agent, v.Text)
	case delta.ToolCallDelta:
		fmt.Printf("  [tool] %s %s\n", v.Name, v.Arguments)
	case delta.ToolResultDelta:
		status := "ok"
		if v.IsError {
			status = "error"
		}
		fmt.Printf("  [tool] %s -> %s\n", v.Name, status)
	case delta.ErrorDelta:
		fmt.Printf("  [error] %s\n", v.Message)
	}
}

// printTurn renders the final reconstructed state.
func printTurn(rec *reconstruct.Reconstructor) {
	state := rec.State()
	for _, step := range state.Steps {
		marker := " "
		if step.Completed {
			marker = "x"
		}
		fmt.Printf("[%s] %s\n", marker, step.Title)
	}
	if state.Error != "" {
		fmt.Fprintf(os.Stderr, "Search error: %s\n", state.Error)
	}
	if answer := rec.Answer(); answer != "" {
		fmt.Printf("\n%s\n", answer)
	}
}
