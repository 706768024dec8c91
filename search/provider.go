// External search provider client.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format of the hosted search API

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marendel/skein/model"
)

// Depth selects how thorough a provider search is.
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

// Request describes one call to the search provider. Query must already
// meet the provider's minimum length; the synthesizer handles padding.
type Request struct {
	Query          string
	MaxResults     int
	Depth          Depth
	IncludeDomains []string
	ExcludeDomains []string
}

// Image is an image result with an optional description.
type Image struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Response is the provider's answer to one search request.
type Response struct {
	Query           string             `json:"query"`
	Results         []model.ResultItem `json:"results"`
	Images          []Image            `json:"images,omitempty"`
	Answer          string             `json:"answer,omitempty"`
	NumberOfResults int                `json:"number_of_results"`
}

// Provider is the abstract interface to the hosted search API.
// The synthesizer depends on this, not on the HTTP client, so tests can
// substitute fakes.
type Provider interface {
	Search(ctx context.Context, req Request) (Response, error)
}

// ErrMissingAPIKey indicates the provider credential is unconfigured.
// Surfaced distinctly so operators can tell misconfiguration from a
// transient provider failure.
var ErrMissingAPIKey = errors.New("search provider API key not configured")

const defaultEndpoint = "https://api.tavily.com/search"

// Client is the HTTP implementation of Provider.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
}

// NewClient creates a provider client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
	}
}

// WithEndpoint overrides the API endpoint. Used in tests.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// apiRequest is the provider's wire format.
type apiRequest struct {
	APIKey                   string   `json:"api_key"`
	Query                    string   `json:"query"`
	MaxResults               int      `json:"max_results"`
	SearchDepth              string   `json:"search_depth"`
	IncludeDomains           []string `json:"include_domains,omitempty"`
	ExcludeDomains           []string `json:"exclude_domains,omitempty"`
	IncludeImages            bool     `json:"include_images"`
	IncludeImageDescriptions bool     `json:"include_image_descriptions"`
	IncludeAnswers           bool     `json:"include_answers"`
}

// Search calls the provider. MaxResults is raised to the provider minimum
// of 5 and the depth defaults to basic.
func (c *Client) Search(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrMissingAPIKey
	}

	depth := req.Depth
	if depth == "" {
		depth = DepthBasic
	}
	maxResults := req.MaxResults
	if maxResults < 5 {
		maxResults = 5
	}

	body, err := json.Marshal(apiRequest{
		APIKey:                   c.apiKey,
		Query:                    req.Query,
		MaxResults:               maxResults,
		SearchDepth:              string(depth),
		IncludeDomains:           req.IncludeDomains,
		ExcludeDomains:           req.ExcludeDomains,
		IncludeImages:            true,
		IncludeImageDescriptions: true,
		IncludeAnswers:           true,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create search request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("search provider returned %s: %s", resp.Status, truncate(respBody, 200))
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return Response{}, fmt.Errorf("decode search response: %w", err)
	}
	if result.NumberOfResults == 0 {
		result.NumberOfResults = len(result.Results)
	}
	return result, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Verify Client implements Provider
var _ Provider = (*Client)(nil)
