// Web search tool backed by the search pipeline.
//
// Information Hiding:
// - Progress delta emission hidden behind the synthesizer
// - Result shaping for the model hidden in Execute

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/model"
	"github.com/marendel/skein/search"
)

// WebSearchTool runs a web search through the synthesis pipeline,
// streaming progress deltas to the turn's channel while returning the
// collected results to the model.
type WebSearchTool struct {
	BaseTool
	synth *search.Synthesizer
	ch    *delta.Channel
}

// NewWebSearchTool creates a web search tool bound to one turn's
// delta channel.
func NewWebSearchTool(synth *search.Synthesizer, ch *delta.Channel) *WebSearchTool {
	return &WebSearchTool{synth: synth, ch: ch}
}

// Oneshot marks the tool single-attempt. The pipeline appends progress
// deltas to the turn channel as it runs; after a failure the channel
// already carries a terminal search-error, and a replay would append a
// second pipeline behind it.
func (t *WebSearchTool) Oneshot() {}

// Metadata returns the tool metadata.
func (t *WebSearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "web_search",
		Description: "Search the web for current information. Returns ranked results with titles, URLs and content excerpts.",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "The search query", Required: true},
			{Name: "max_results", ParamType: "integer", Description: "Maximum number of results (default 5)", Required: false},
			{Name: "depth", ParamType: "string", Description: "Search depth: basic or advanced", Required: false},
		},
	}
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
	Depth      string `json:"depth"`
}

// Validate checks the arguments.
func (t *WebSearchTool) Validate(args json.RawMessage) error {
	var a webSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if a.Depth != "" && a.Depth != string(search.DepthBasic) && a.Depth != string(search.DepthAdvanced) {
		return fmt.Errorf("unsupported depth %q", a.Depth)
	}
	return nil
}

// Execute runs the search pipeline and returns results as JSON.
func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a webSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if strings.TrimSpace(a.Query) == "" {
		return FailureResultf("query cannot be empty"), nil
	}

	req := search.Request{
		Query:      a.Query,
		MaxResults: a.MaxResults,
		Depth:      search.Depth(a.Depth),
	}
	results, err := t.synth.Run(ctx, t.ch, req)
	if err != nil {
		return FailureResult(fmt.Errorf("search failed: %w", err)), nil
	}

	return SuccessResult(renderResults(results)), nil
}

// renderResults shapes search output for the model: numbered results
// with trimmed content.
func renderResults(results *model.SearchResults) string {
	var b strings.Builder
	if len(results.Results) == 0 {
		b.WriteString("No results found.")
		return b.String()
	}
	for i, r := range results.Results {
		content := r.Content
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, content)
	}
	return b.String()
}

// Verify WebSearchTool implements Tool and is never retried
var (
	_ Tool    = (*WebSearchTool)(nil)
	_ Oneshot = (*WebSearchTool)(nil)
)
