// Package storage provides conversation and memory persistence.
//
// Information Hiding:
// - Map and ring-buffer layouts hidden behind interfaces
// - Thread safety via mutexes internal to each store
// - SQLite schema details encapsulated in SqliteStore
package storage

import (
	"context"
	"sync"

	"github.com/marendel/skein/llm"
)

// ConversationStore persists per-session chat history.
type ConversationStore interface {
	// Save replaces the stored history for a session.
	Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error

	// Load returns the stored history, or an empty slice for an
	// unknown session.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)

	// Delete removes a session and its history.
	Delete(ctx context.Context, sessionID string) error

	// Sessions lists known session IDs.
	Sessions(ctx context.Context) ([]string, error)
}

// InMemoryConversations keeps session history in a map. Data is lost
// when the process exits; suitable for tests and ephemeral serving.
type InMemoryConversations struct {
	mu       sync.RWMutex
	sessions map[string][]llm.ChatMessage
}

// NewInMemoryConversations creates an empty conversation store.
func NewInMemoryConversations() *InMemoryConversations {
	return &InMemoryConversations{sessions: make(map[string][]llm.ChatMessage)}
}

// Save replaces the stored history for a session.
func (s *InMemoryConversations) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	s.sessions[sessionID] = copied
	return nil
}

// Load returns a copy of the stored history.
func (s *InMemoryConversations) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.sessions[sessionID]
	if !ok {
		return []llm.ChatMessage{}, nil
	}
	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	return copied, nil
}

// Delete removes a session.
func (s *InMemoryConversations) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Sessions lists known session IDs.
func (s *InMemoryConversations) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out, nil
}

// Verify InMemoryConversations implements ConversationStore
var _ ConversationStore = (*InMemoryConversations)(nil)
