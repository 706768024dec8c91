// Memory recall tool.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marendel/skein/storage"
)

// RecallMemoryTool surfaces past turns relevant to a query so the
// model can build on earlier work.
type RecallMemoryTool struct {
	BaseTool
	log *storage.Log
}

// NewRecallMemoryTool creates a recall tool over the given memory log.
func NewRecallMemoryTool(log *storage.Log) *RecallMemoryTool {
	return &RecallMemoryTool{log: log}
}

// Metadata returns the tool metadata.
func (t *RecallMemoryTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "recall_memory",
		Description: "Recall past requests and their outcomes relevant to a topic.",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "Topic to recall", Required: true},
			{Name: "limit", ParamType: "integer", Description: "Maximum entries to return (default 3)", Required: false},
		},
	}
}

type recallArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Validate checks the arguments.
func (t *RecallMemoryTool) Validate(args json.RawMessage) error {
	var a recallArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// Execute ranks the memory log against the query.
func (t *RecallMemoryTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a recallArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if strings.TrimSpace(a.Query) == "" {
		return FailureResultf("query cannot be empty"), nil
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 3
	}

	entries := t.log.RetrieveRelevantContext(a.Query, limit)
	if len(entries) == 0 {
		return SuccessResult("No relevant memories found."), nil
	}

	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. [%s] %s\n   Outcome: %s\n", i+1, e.Timestamp.Format("2006-01-02"), e.Request, e.Outcome)
		if e.Reflection != "" {
			fmt.Fprintf(&b, "   Reflection: %s\n", e.Reflection)
		}
	}
	return SuccessResult(b.String()), nil
}

// Verify RecallMemoryTool implements Tool
var _ Tool = (*RecallMemoryTool)(nil)
