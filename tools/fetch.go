// Page fetch tool.
//
// Information Hiding:
// - HTTP client configuration hidden
// - Body size limiting and content-type checks internalized

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultFetchLimit = 256 * 1024 // bytes read from a page body

// FetchPageTool retrieves a single web page so the model can read a
// source the search results pointed at.
type FetchPageTool struct {
	BaseTool
	client      *http.Client
	timeoutSecs uint64
	maxBytes    int64
}

// NewFetchPageTool creates a page fetch tool with the given timeout.
func NewFetchPageTool(timeoutSecs uint64) *FetchPageTool {
	return &FetchPageTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
		maxBytes:    defaultFetchLimit,
	}
}

// Metadata returns the tool metadata.
func (t *FetchPageTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "fetch_page",
		Description: "Fetch the text content of a web page by URL. Use after web_search to read a specific source.",
		Parameters: []ToolParameter{
			{Name: "url", ParamType: "string", Description: "The page URL (http or https)", Required: true},
		},
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

// Validate checks that the URL is present and well-formed.
func (t *FetchPageTool) Validate(args json.RawMessage) error {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	parsed, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

// Execute fetches the page.
func (t *FetchPageTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a fetchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.URL == "" {
		return FailureResultf("url cannot be empty"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return FailureResult(fmt.Errorf("create request: %w", err)), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailureResultf("request timed out after %d seconds", t.timeoutSecs), nil
		}
		return FailureResult(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FailureResultf("page returned status %d", resp.StatusCode), nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !textContent(contentType) {
		return FailureResultf("unsupported content type %q", contentType), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return FailureResult(fmt.Errorf("read body: %w", err)), nil
	}
	return SuccessResult(string(body)), nil
}

func textContent(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json",
		mediaType == "application/xml",
		mediaType == "application/xhtml+xml":
		return true
	}
	return false
}

// Verify FetchPageTool implements Tool
var _ Tool = (*FetchPageTool)(nil)
