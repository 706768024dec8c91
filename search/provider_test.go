package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientMissingAPIKey(t *testing.T) {
	_, err := NewClient("").Search(context.Background(), Request{Query: "anything"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestClientRequestShape(t *testing.T) {
	var captured apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{Query: captured.Query})
	}))
	defer srv.Close()

	client := NewClient("test-key").WithEndpoint(srv.URL)
	_, err := client.Search(context.Background(), Request{
		Query:          "AI   ",
		MaxResults:     2,
		IncludeDomains: []string{"arxiv.org"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if captured.Query != "AI   " {
		t.Errorf("query sent as %q, want the padded value", captured.Query)
	}
	if captured.MaxResults != 5 {
		t.Errorf("max_results should be raised to 5, got %d", captured.MaxResults)
	}
	if captured.SearchDepth != string(DepthBasic) {
		t.Errorf("depth should default to basic, got %q", captured.SearchDepth)
	}
	if !captured.IncludeImages || !captured.IncludeImageDescriptions || !captured.IncludeAnswers {
		t.Error("images, image descriptions and answers must all be requested")
	}
	if len(captured.IncludeDomains) != 1 || captured.IncludeDomains[0] != "arxiv.org" {
		t.Errorf("include_domains not forwarded: %v", captured.IncludeDomains)
	}
}

func TestClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient("test-key").WithEndpoint(srv.URL).Search(context.Background(), Request{Query: "quota"})
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestClientCountsResultsWhenProviderOmitsCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query":"q","results":[{"title":"a","url":"https://a.com","content":"x"},{"title":"b","url":"https://b.com","content":"y"}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("test-key").WithEndpoint(srv.URL).Search(context.Background(), Request{Query: "count"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if resp.NumberOfResults != 2 {
		t.Errorf("expected inferred count 2, got %d", resp.NumberOfResults)
	}
}
