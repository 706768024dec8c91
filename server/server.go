// Package server exposes the turn pipeline over HTTP: a streaming
// chat endpoint, attachment upload, agent listing and health.
//
// Information Hiding:
// - Route wiring and middleware hidden behind Handler()
// - SSE framing and upload validation internal to their handlers
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/marendel/skein/agent"
	"github.com/marendel/skein/config"
	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/llm"
	"github.com/marendel/skein/orchestration"
	"github.com/marendel/skein/storage"
)

// TurnRunner executes one conversation turn, streaming onto the
// channel and closing it when done. Satisfied by orchestration.Engine.
type TurnRunner interface {
	RunTurn(ctx context.Context, ch *delta.Channel, message string, history []llm.ChatMessage) (orchestration.TurnResult, error)
}

// Server serves the HTTP API.
type Server struct {
	cfg           config.ServerConfig
	agents        *agent.Registry
	runner        TurnRunner
	conversations storage.ConversationStore
	log           *slog.Logger
}

// New creates a server. Logger may be nil for slog.Default().
func New(cfg config.ServerConfig, agents *agent.Registry, runner TurnRunner, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, agents: agents, runner: runner, log: log}
}

// WithConversations enables server-side session history keyed by the
// request's session_id.
func (s *Server) WithConversations(store storage.ConversationStore) *Server {
	s.conversations = store
	return s
}

// Handler builds the routed handler with CORS and logging middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/upload", s.handleUpload)
		r.Get("/agents", s.handleAgents)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.agents.List()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
