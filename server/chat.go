package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/llm"
	"github.com/marendel/skein/orchestration"
)

// chatRequest is the POST /api/chat body. SessionID is optional: when
// set and the server has a conversation store, history is loaded and
// persisted server-side instead of being replayed by the client.
type chatRequest struct {
	Message   string        `json:"message"`
	SessionID string        `json:"session_id,omitempty"`
	History   []chatMessage `json:"history,omitempty"`
}

// chatMessage is a prior turn as the client replays it.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleChat runs one turn and streams its deltas as server-sent
// events. The turn runs in its own goroutine; the channel guarantees
// a terminal delta even when the producer fails, so the stream always
// ends cleanly.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	history := make([]llm.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		switch m.Role {
		case "user", "assistant":
			history = append(history, llm.ChatMessage{Role: m.Role, Content: m.Content})
		default:
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported history role %q", m.Role))
			return
		}
	}

	if req.SessionID != "" && s.conversations != nil && len(history) == 0 {
		stored, err := s.conversations.Load(r.Context(), req.SessionID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "could not load session history")
			return
		}
		history = stored
	}

	ch := delta.NewChannel()
	turnDone := make(chan turnOutcome, 1)
	go func() {
		result, err := s.runner.RunTurn(r.Context(), ch, req.Message, history)
		turnDone <- turnOutcome{result: result, err: err}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for d := range ch.Watch(r.Context()) {
		payload, err := delta.Marshal(d)
		if err != nil {
			s.log.Error("encode delta", "kind", d.Kind(), "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	outcome := <-turnDone
	if outcome.err != nil {
		s.log.Error("turn failed", "error", outcome.err)
	}
	s.persistTurn(req, history, outcome)
}

// turnOutcome carries the turn result across the producer goroutine.
type turnOutcome struct {
	result orchestration.TurnResult
	err    error
}

// persistTurn appends the finished exchange to the session. Runs on a
// fresh context so a client disconnect cannot lose the save.
func (s *Server) persistTurn(req chatRequest, history []llm.ChatMessage, outcome turnOutcome) {
	if req.SessionID == "" || s.conversations == nil || outcome.err != nil {
		return
	}

	updated := append(history,
		llm.UserMessage(req.Message),
		llm.AssistantMessage(outcome.result.Answer),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conversations.Save(ctx, req.SessionID, updated); err != nil {
		s.log.Error("save session", "session", req.SessionID, "error", err)
	}
}
