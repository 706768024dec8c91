package reconstruct

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/model"
	"github.com/marendel/skein/search"
)

func TestStatusProgression(t *testing.T) {
	r := New()
	if r.State().Status != model.StatusIdle {
		t.Fatalf("fresh reconstructor should be idle, got %s", r.State().Status)
	}

	r.Process([]delta.Delta{delta.QueryDelta{Query: "go generics"}})
	if got := r.State().Status; got != model.StatusStarting {
		t.Errorf("after query delta: want starting, got %s", got)
	}

	r.Process([]delta.Delta{
		delta.QueryDelta{Query: "go generics"},
		delta.StepDelta{Step: model.SearchStep{Title: "Researching go generics", Kind: model.StepSearch}},
	})
	if got := r.State().Status; got != model.StatusSearching {
		t.Errorf("after step delta: want searching, got %s", got)
	}

	r.Process([]delta.Delta{
		delta.QueryDelta{Query: "go generics"},
		delta.StepDelta{Step: model.SearchStep{Title: "Researching go generics", Kind: model.StepSearch}},
		delta.StatusDelta{Status: model.StatusCompleted},
	})
	if got := r.State().Status; got != model.StatusCompleted {
		t.Errorf("after completed status: want completed, got %s", got)
	}
}

func TestStepUpsertByTitle(t *testing.T) {
	r := New()
	title := "Researching quantum computing"

	r.Process([]delta.Delta{
		delta.StepDelta{Step: model.SearchStep{Title: title, Kind: model.StepSearch, Completed: false, Query: "quantum computing"}},
	})
	r.Process([]delta.Delta{
		delta.StepDelta{Step: model.SearchStep{Title: title, Kind: model.StepSearch, Completed: false, Query: "quantum computing"}},
		delta.StepDelta{Step: model.SearchStep{
			Title:     title,
			Kind:      model.StepSearch,
			Completed: true,
			Sources:   []string{"arxiv.org"},
			Results:   []model.ResultItem{{Title: "Paper", URL: "https://arxiv.org/1"}},
		}},
		delta.StepDelta{Step: model.SearchStep{Title: "Another step", Kind: model.StepReading, Completed: true}},
	})

	state := r.State()
	if len(state.Steps) != 2 {
		t.Fatalf("expected 2 steps (upsert, then append), got %d", len(state.Steps))
	}
	first := state.Steps[0]
	if first.Title != title {
		t.Errorf("upserted step lost its position: first step is %q", first.Title)
	}
	if !first.Completed {
		t.Error("merged step should carry the later Completed=true")
	}
	if first.Query != "quantum computing" {
		t.Errorf("merge erased the earlier query field: %q", first.Query)
	}
	if len(first.Sources) != 1 || first.Sources[0] != "arxiv.org" {
		t.Errorf("merged sources wrong: %v", first.Sources)
	}
}

func TestMonotonicCursorIdempotentReplay(t *testing.T) {
	all := []delta.Delta{
		delta.QueryDelta{Query: "replay"},
		delta.StepDelta{Step: model.SearchStep{Title: "Researching replay", Kind: model.StepSearch, Completed: true,
			Results: []model.ResultItem{{Title: "r", URL: "https://r.dev"}}}},
		delta.StatusDelta{Status: model.StatusCompleted},
	}

	r := New()
	r.Process(all)
	before := r.State()

	// Re-running against the same sequence must not change anything.
	r.Process(all)
	after := r.State()

	if !reflect.DeepEqual(before, after) {
		t.Errorf("replay changed state:\nbefore: %+v\nafter:  %+v", before, after)
	}
	if r.Cursor() != len(all) {
		t.Errorf("cursor should sit at %d, got %d", len(all), r.Cursor())
	}
}

func TestErrorPrecedence(t *testing.T) {
	r := New()
	r.Process([]delta.Delta{
		delta.QueryDelta{Query: "doomed"},
		delta.ErrorDelta{Message: "provider exploded"},
		delta.StepDelta{Step: model.SearchStep{Title: "Late step", Kind: model.StepSearch,
			Results: []model.ResultItem{{Title: "x", URL: "https://x.io"}}}},
		delta.StatusDelta{Status: model.StatusCompleted},
	})

	state := r.State()
	if state.Status != model.StatusError {
		t.Errorf("error must win over later deltas, got %s", state.Status)
	}
	if state.Error != "provider exploded" {
		t.Errorf("expected error message retained, got %q", state.Error)
	}
	// Partial progress is retained.
	if len(state.Steps) != 1 {
		t.Errorf("steps appended after the error are still recorded, got %d", len(state.Steps))
	}
}

func TestResultsAdvanceToCompleted(t *testing.T) {
	r := New()
	r.Process([]delta.Delta{
		delta.QueryDelta{Query: "results"},
		delta.StepDelta{Step: model.SearchStep{
			Title:     "Researching results",
			Kind:      model.StepSearch,
			Completed: true,
			Results:   []model.ResultItem{{Title: "hit", URL: "https://hit.dev"}},
		}},
	})

	state := r.State()
	if state.Status != model.StatusCompleted {
		t.Errorf("a step with results should complete the turn, got %s", state.Status)
	}
	if state.Results == nil || len(state.Results.Results) != 1 {
		t.Fatalf("results not captured: %+v", state.Results)
	}
}

func TestReset(t *testing.T) {
	r := New()
	r.Process([]delta.Delta{
		delta.QueryDelta{Query: "stale"},
		delta.ErrorDelta{Message: "boom"},
	})
	r.Reset()

	state := r.State()
	if state.Status != model.StatusIdle || state.Query != "" || state.Error != "" ||
		len(state.Steps) != 0 || state.Results != nil {
		t.Errorf("reset left residue: %+v", state)
	}
	if r.Cursor() != 0 {
		t.Errorf("reset should rewind the cursor, got %d", r.Cursor())
	}
}

func TestAnswerAccumulation(t *testing.T) {
	r := New()
	r.Process([]delta.Delta{
		delta.ThinkingDelta{Agent: "assistant"},
		delta.TextDelta{Text: "Hello, "},
		delta.TextDelta{Text: "world."},
		delta.FinishDelta{Reason: "stop"},
	})

	if got := r.Answer(); got != "Hello, world." {
		t.Errorf("answer accumulation wrong: %q", got)
	}
	if r.FinishReason() != "stop" {
		t.Errorf("finish reason not captured: %q", r.FinishReason())
	}
}

// End-to-end: synthesizer output reconstructs to the expected states.

type scriptedProvider struct {
	results []model.ResultItem
	err     error
}

func (p scriptedProvider) Search(ctx context.Context, req search.Request) (search.Response, error) {
	if p.err != nil {
		return search.Response{}, p.err
	}
	return search.Response{Query: req.Query, Results: p.results, NumberOfResults: len(p.results)}, nil
}

func TestSynthesizerZeroResultsReconstruction(t *testing.T) {
	ch := delta.NewChannel()
	_, err := search.NewSynthesizer(scriptedProvider{}).Run(context.Background(), ch, search.Request{Query: "nothing here"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	r := New()
	r.Drain(ch)
	state := r.State()

	if state.Status != model.StatusCompleted {
		t.Errorf("zero results should still complete, got %s", state.Status)
	}
	if state.Results == nil {
		t.Fatal("results should be set even when empty")
	}
	if len(state.Results.Results) != 0 {
		t.Errorf("expected empty result list, got %d", len(state.Results.Results))
	}
	for _, s := range state.Steps {
		if s.Kind == model.StepAnalysis {
			t.Error("no analysis step expected below the threshold")
		}
	}
}

func TestSynthesizerFailureReconstruction(t *testing.T) {
	ch := delta.NewChannel()
	_, err := search.NewSynthesizer(scriptedProvider{err: errors.New("upstream down")}).
		Run(context.Background(), ch, search.Request{Query: "doomed"})
	if err == nil {
		t.Fatal("expected provider error")
	}

	r := New()
	r.Drain(ch)
	state := r.State()

	if state.Status != model.StatusError {
		t.Errorf("expected error status, got %s", state.Status)
	}
	if state.Error == "" {
		t.Error("expected non-empty error string")
	}
	// Partial progress retained: the opening research step is present.
	if len(state.Steps) == 0 {
		t.Error("expected partial steps to survive the failure")
	}
}

func TestDrainAcrossGrowingChannel(t *testing.T) {
	ch := delta.NewChannel()
	r := New()

	ch.Append(delta.QueryDelta{Query: "incremental"})
	r.Drain(ch)
	if r.State().Status != model.StatusStarting {
		t.Fatalf("first drain: want starting, got %s", r.State().Status)
	}

	ch.Append(delta.StepDelta{Step: model.SearchStep{Title: "Researching incremental", Kind: model.StepSearch}})
	r.Drain(ch)
	r.Drain(ch) // no-op second pass

	state := r.State()
	if state.Status != model.StatusSearching {
		t.Errorf("want searching, got %s", state.Status)
	}
	if len(state.Steps) != 1 {
		t.Errorf("duplicate drain duplicated steps: %d", len(state.Steps))
	}
}
