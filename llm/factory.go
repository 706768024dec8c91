// Provider factory keyed by provider name.

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType identifies a supported provider family.
type ProviderType int

const (
	ProviderOpenAI ProviderType = iota
	ProviderAnthropic
	ProviderDeepSeek
	ProviderGemini
)

// String returns the canonical provider name.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable holding this provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderDeepSeek:
		return "deepseek-chat"
	case ProviderGemini:
		return "gemini-2.5-flash"
	default:
		return ""
	}
}

// ParseProviderType parses a provider name, accepting common aliases.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %q", s)
	}
}

// Options configures provider construction. Zero values fall back to
// sensible defaults.
type Options struct {
	Model       string
	MaxTokens   uint32
	Temperature float32
	APIKey      string // read from the provider's env var when empty
}

// New creates a provider of the given type.
func New(ptype ProviderType, opts Options) (Provider, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(ptype.EnvVar())
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", ptype, ptype.EnvVar())
	}

	model := opts.Model
	if model == "" {
		model = ptype.DefaultModel()
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	switch ptype {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(apiKey, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", ptype)
	}
}

// NewFromName parses the name and creates the provider in one step.
func NewFromName(name string, opts Options) (Provider, error) {
	ptype, err := ParseProviderType(name)
	if err != nil {
		return nil, err
	}
	return New(ptype, opts)
}
