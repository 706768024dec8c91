// Package reconstruct turns the append-only delta sequence of a turn into
// renderable state. It is the consumer side of the delta wire contract:
// the browser client applies the same rules in its own runtime, and this
// package lets the CLI and the test suite share them.
//
// Information Hiding:
// - Step storage (ordered map keyed by title) hidden
// - Cursor bookkeeping hidden
package reconstruct

import (
	"strings"

	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/model"
)

// SearchState is the UI-facing state of a search turn.
type SearchState struct {
	Status  model.Status
	Query   string
	Steps   []model.SearchStep // insertion order, one entry per title
	Error   string
	Results *model.SearchResults
}

// Reconstructor consumes a turn's delta sequence exactly once and
// maintains the reconstructed state. It never blocks and is safe to
// re-run against the same growing channel: only deltas past the consumed
// cursor are processed.
//
// Not safe for concurrent use; one reconstructor serves one turn stream.
type Reconstructor struct {
	status       model.Status
	query        string
	stepsByTitle map[string]*model.SearchStep
	order        []string
	errMsg       string
	results      *model.SearchResults
	answer       strings.Builder
	finishReason string
	cursor       int
}

// New creates a reconstructor in the idle state.
func New() *Reconstructor {
	r := &Reconstructor{}
	r.Reset()
	return r
}

// Reset clears all state back to idle. Callers reset between turns; a new
// search-query delta never implicitly resets a stale in-progress turn.
func (r *Reconstructor) Reset() {
	r.status = model.StatusIdle
	r.query = ""
	r.stepsByTitle = make(map[string]*model.SearchStep)
	r.order = nil
	r.errMsg = ""
	r.results = nil
	r.answer.Reset()
	r.finishReason = ""
	r.cursor = 0
}

// Drain consumes everything the channel holds past the cursor. Invoking
// it repeatedly against the same growing channel never reprocesses
// history.
func (r *Reconstructor) Drain(ch *delta.Channel) {
	for _, d := range ch.Since(r.cursor) {
		r.apply(d)
		r.cursor++
	}
}

// Process consumes a snapshot of the full delta sequence so far,
// skipping everything before the cursor.
func (r *Reconstructor) Process(all []delta.Delta) {
	if r.cursor >= len(all) {
		return
	}
	for _, d := range all[r.cursor:] {
		r.apply(d)
		r.cursor++
	}
}

// Cursor returns the index of the next unconsumed delta.
func (r *Reconstructor) Cursor() int {
	return r.cursor
}

// State returns a snapshot of the reconstructed search state.
func (r *Reconstructor) State() SearchState {
	steps := make([]model.SearchStep, 0, len(r.order))
	for _, title := range r.order {
		steps = append(steps, *r.stepsByTitle[title])
	}
	return SearchState{
		Status:  r.status,
		Query:   r.query,
		Steps:   steps,
		Error:   r.errMsg,
		Results: r.results,
	}
}

// Answer returns the accumulated assistant text of the turn.
func (r *Reconstructor) Answer() string {
	return r.answer.String()
}

// FinishReason returns the terminal reason once a finish delta arrived,
// empty before that.
func (r *Reconstructor) FinishReason() string {
	return r.finishReason
}

// apply runs the transition rules for one delta, in priority order.
func (r *Reconstructor) apply(d delta.Delta) {
	switch v := d.(type) {
	case delta.ErrorDelta:
		// Highest priority: overrides any in-flight status and pins the
		// state until the next reset.
		r.status = model.StatusError
		r.errMsg = v.Message

	case delta.QueryDelta:
		r.query = v.Query
		if r.status == model.StatusIdle {
			r.status = model.StatusStarting
		}

	case delta.StepDelta:
		r.upsert(v.Step)
		if r.status == model.StatusIdle || r.status == model.StatusStarting {
			r.status = model.StatusSearching
		}
		if v.Step.Kind == model.StepSearch && v.Step.Completed {
			results := v.Step.Results
			if results == nil {
				results = []model.ResultItem{}
			}
			r.results = &model.SearchResults{
				Query:           r.query,
				Results:         results,
				NumberOfResults: len(results),
			}
		}
		if len(v.Step.Results) > 0 && !r.status.Terminal() {
			r.status = model.StatusCompleted
		}

	case delta.StatusDelta:
		if r.status != model.StatusError {
			r.status = v.Status
		}

	case delta.TextDelta:
		r.answer.WriteString(v.Text)

	case delta.FinishDelta:
		r.finishReason = v.Reason

	case delta.ThinkingDelta, delta.ToolCallDelta, delta.ToolResultDelta:
		// Side-channel progress; no search state transition.
	}
}

// upsert merges a step into the ordered step map by title. An existing
// step keeps its position; fields of the incoming step win, except that
// absent slices never erase earlier data.
func (r *Reconstructor) upsert(step model.SearchStep) {
	existing, ok := r.stepsByTitle[step.Title]
	if !ok {
		copied := step
		r.stepsByTitle[step.Title] = &copied
		r.order = append(r.order, step.Title)
		return
	}

	existing.Kind = step.Kind
	existing.Completed = step.Completed
	if step.Query != "" {
		existing.Query = step.Query
	}
	if step.Sources != nil {
		existing.Sources = step.Sources
	}
	if step.SourceDetails != nil {
		existing.SourceDetails = step.SourceDetails
	}
	if step.Results != nil {
		existing.Results = step.Results
	}
	if step.RelatedQueries != nil {
		existing.RelatedQueries = step.RelatedQueries
	}
	if step.AnalysisPoints != nil {
		existing.AnalysisPoints = step.AnalysisPoints
	}
}
