// Package llm provides the abstraction over hosted language models.
//
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import "context"

// Provider is the abstract interface to a hosted language model.
type Provider interface {
	// Name returns the provider name (for logging).
	Name() string

	// Model returns the configured model identifier.
	Model() string

	// Chat sends a plain chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)

	// ChatWithTools sends a chat completion request with the given tool
	// set made active. The model may answer with tool calls in
	// Response.ToolCalls instead of (or alongside) text.
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error)

	// StreamChat streams a completion, sending text chunks to the
	// provided channel in order. Returns token usage when the provider
	// reports it.
	StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error)
}
