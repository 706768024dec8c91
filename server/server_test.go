package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marendel/skein/agent"
	"github.com/marendel/skein/config"
	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/llm"
	"github.com/marendel/skein/orchestration"
	"github.com/marendel/skein/storage"
)

// fakeRunner appends a scripted delta sequence and closes the channel.
type fakeRunner struct {
	deltas  []delta.Delta
	lastMsg string
}

func (f *fakeRunner) RunTurn(ctx context.Context, ch *delta.Channel, message string, history []llm.ChatMessage) (orchestration.TurnResult, error) {
	f.lastMsg = message
	defer ch.Close()
	for _, d := range f.deltas {
		ch.Append(d)
	}
	return orchestration.TurnResult{}, nil
}

func testServer(t *testing.T, cfg config.ServerConfig, runner TurnRunner) *Server {
	t.Helper()
	agents, err := agent.WithDefaults()
	if err != nil {
		t.Fatalf("WithDefaults failed: %v", err)
	}
	return New(cfg, agents, runner, nil)
}

func TestHealth(t *testing.T) {
	srv := testServer(t, config.ServerConfig{}, &fakeRunner{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAgentsListing(t *testing.T) {
	srv := testServer(t, config.ServerConfig{}, &fakeRunner{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/agents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Agents []agent.Config `json:"agents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(body.Agents))
	}
	for _, a := range body.Agents {
		if a.ID == agent.RouterID {
			t.Error("router leaked into listing")
		}
	}
}

func TestChatStreamsDeltas(t *testing.T) {
	runner := &fakeRunner{deltas: []delta.Delta{
		delta.TextDelta{Text: "hello"},
		delta.FinishDelta{Reason: "stop"},
	}}
	srv := testServer(t, config.ServerConfig{}, runner)

	body := strings.NewReader(`{"message":"hi","history":[{"role":"user","content":"earlier"}]}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected event stream, got %q", ct)
	}
	if runner.lastMsg != "hi" {
		t.Errorf("message not forwarded: %q", runner.lastMsg)
	}

	events := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %q", len(events), rec.Body.String())
	}
	first, err := delta.Unmarshal([]byte(strings.TrimPrefix(events[0], "data: ")))
	if err != nil {
		t.Fatalf("decode first event: %v", err)
	}
	if td, ok := first.(delta.TextDelta); !ok || td.Text != "hello" {
		t.Errorf("unexpected first delta: %+v", first)
	}
	if events[2] != "data: [DONE]" {
		t.Errorf("expected DONE sentinel, got %q", events[2])
	}
}

func TestChatSessionPersistence(t *testing.T) {
	store := storage.NewInMemoryConversations()
	runner := &answeringRunner{answer: "sure thing"}
	srv := testServer(t, config.ServerConfig{}, runner).WithConversations(store)

	body := strings.NewReader(`{"message":"first question","session_id":"s1"}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	saved, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(saved) != 2 || saved[0].Content != "first question" || saved[1].Content != "sure thing" {
		t.Fatalf("unexpected saved history: %+v", saved)
	}

	// Second turn with the same session replays the stored history.
	body = strings.NewReader(`{"message":"second question","session_id":"s1"}`)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", body))
	if len(runner.lastHistory) != 2 {
		t.Errorf("expected stored history forwarded, got %+v", runner.lastHistory)
	}
}

// answeringRunner emits a fixed answer and records the history it saw.
type answeringRunner struct {
	answer      string
	lastHistory []llm.ChatMessage
}

func (a *answeringRunner) RunTurn(ctx context.Context, ch *delta.Channel, message string, history []llm.ChatMessage) (orchestration.TurnResult, error) {
	a.lastHistory = history
	defer ch.Close()
	ch.Append(delta.TextDelta{Text: a.answer})
	ch.Append(delta.FinishDelta{Reason: "stop"})
	return orchestration.TurnResult{Answer: a.answer}, nil
}

func TestChatValidation(t *testing.T) {
	srv := testServer(t, config.ServerConfig{}, &fakeRunner{})

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"bad json", `{`},
		{"bad role", `{"message":"x","history":[{"role":"system","content":"no"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadSuccess(t *testing.T) {
	dir := t.TempDir()
	srv := testServer(t, config.ServerConfig{UploadDir: dir, MaxUploadBytes: 1 << 20}, &fakeRunner{})

	body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "notes.txt" || resp.ContentType != "text/plain" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !strings.HasPrefix(resp.URL, "/uploads/") || !strings.HasSuffix(resp.URL, "-notes.txt") {
		t.Errorf("unexpected url: %q", resp.URL)
	}
}

func TestUploadAggregatesValidationErrors(t *testing.T) {
	dir := t.TempDir()
	srv := testServer(t, config.ServerConfig{UploadDir: dir, MaxUploadBytes: 4}, &fakeRunner{})

	body, contentType := multipartBody(t, "file", "evil.bin", "application/octet-stream", []byte("too large"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Error, "not allowed") || !strings.Contains(resp.Error, "byte limit") {
		t.Errorf("expected aggregated errors, got %q", resp.Error)
	}
	if !strings.Contains(resp.Error, ", ") {
		t.Errorf("errors should be comma-joined: %q", resp.Error)
	}
}

func TestUploadMissingFile(t *testing.T) {
	srv := testServer(t, config.ServerConfig{UploadDir: t.TempDir(), MaxUploadBytes: 1 << 20}, &fakeRunner{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "file is required") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestUploadUnconfiguredDir(t *testing.T) {
	srv := testServer(t, config.ServerConfig{MaxUploadBytes: 1 << 20}, &fakeRunner{})

	body, contentType := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not configured") {
		t.Errorf("expected distinct misconfiguration message, got %s", rec.Body.String())
	}
}
