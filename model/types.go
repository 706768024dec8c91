// Package model provides domain types shared across packages.
package model

// Status is the coarse lifecycle phase of a search turn.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStarting  Status = "starting"
	StatusSearching Status = "searching"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Terminal reports whether the status is a terminal phase.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// StepKind classifies a unit of search progress.
type StepKind string

const (
	StepSearch   StepKind = "search"
	StepReading  StepKind = "reading"
	StepAnalysis StepKind = "analysis"
)

// ResultItem is a single result returned by the search provider.
type ResultItem struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// SourceDetail describes one source consulted during a search step.
type SourceDetail struct {
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// AnalysisPoint is a synthesized finding citing a subset of sources.
type AnalysisPoint struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Sources []string `json:"sources"`
}

// SearchStep is a titled unit of search progress shown to the user.
// Title is the natural key within a turn: a later step with the same
// title merges into the earlier one rather than appending a duplicate.
type SearchStep struct {
	Title          string          `json:"title"`
	Kind           StepKind        `json:"kind"`
	Completed      bool            `json:"completed"`
	Query          string          `json:"query,omitempty"`
	Sources        []string        `json:"sources,omitempty"`
	SourceDetails  []SourceDetail  `json:"sourceDetails,omitempty"`
	Results        []ResultItem    `json:"results,omitempty"`
	RelatedQueries []string        `json:"relatedQueries,omitempty"`
	AnalysisPoints []AnalysisPoint `json:"analysisPoints,omitempty"`
}

// SearchResults is the final result set of a search turn.
type SearchResults struct {
	Query           string       `json:"query"`
	Results         []ResultItem `json:"results"`
	NumberOfResults int          `json:"number_of_results"`
}

// ToolCallMetrics contains metrics about a tool invocation, used for
// turn reporting and memory reflection.
type ToolCallMetrics struct {
	Name       string `json:"name"`
	InputSize  int    `json:"input_size"`
	OutputSize int    `json:"output_size"`
	DurationMs uint64 `json:"duration_ms"`
	Success    bool   `json:"success"`
}
