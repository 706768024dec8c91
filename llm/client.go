// Thin convenience wrapper around a Provider.

package llm

import "context"

// Client wraps a Provider with a content-first interface.
type Client struct {
	provider Provider
}

// NewClient creates a client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Chat sends a completion request and returns just the content.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// ChatWithUsage sends a completion request and returns content with
// token usage.
func (c *Client) ChatWithUsage(ctx context.Context, messages []ChatMessage) (string, *TokenUsage, error) {
	resp, err := c.provider.Chat(ctx, messages)
	if err != nil {
		return "", nil, err
	}
	return resp.Content, resp.Usage, nil
}

// ChatWithTools forwards a tool-enabled completion request.
func (c *Client) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	return c.provider.ChatWithTools(ctx, messages, tools)
}

// StreamChat streams a completion.
func (c *Client) StreamChat(ctx context.Context, messages []ChatMessage, chunks chan<- string) (*TokenUsage, error) {
	return c.provider.StreamChat(ctx, messages, chunks)
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
