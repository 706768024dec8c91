// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Settings holds all application configuration.
type Settings struct {
	LLM    LLMConfig
	Search SearchConfig
	Agent  AgentConfig
	Server ServerConfig
	Memory MemoryConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   uint32
	Temperature float64
}

// SearchConfig holds search provider configuration.
type SearchConfig struct {
	APIKey   string
	Endpoint string
	Depth    string
}

// AgentConfig holds the per-turn execution limits.
type AgentConfig struct {
	MaxSteps    int
	ToolRetries uint32
}

// ServerConfig holds the HTTP serving configuration.
type ServerConfig struct {
	Addr           string
	UploadDir      string
	MaxUploadBytes int64
	DataDir        string
}

// MemoryConfig holds memory log configuration.
type MemoryConfig struct {
	RingCapacity int
}

// New loads settings from environment variables. Returns an error when
// a variable is set to an unparsable value; unset variables fall back
// to defaults.
func New(provider string) (Settings, error) {
	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}
	maxSteps, err := getEnvInt("AGENT_MAX_STEPS", 8)
	if err != nil {
		return Settings{}, err
	}
	toolRetries, err := getEnvUint32("AGENT_TOOL_RETRIES", 3)
	if err != nil {
		return Settings{}, err
	}
	maxUpload, err := getEnvInt64("SERVER_MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return Settings{}, err
	}
	ringCapacity, err := getEnvInt("MEMORY_RING_CAPACITY", 64)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       os.Getenv("LLM_MODEL"),
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Search: SearchConfig{
			APIKey:   os.Getenv("TAVILY_API_KEY"),
			Endpoint: os.Getenv("SEARCH_ENDPOINT"),
			Depth:    getEnvString("SEARCH_DEPTH", "basic"),
		},
		Agent: AgentConfig{
			MaxSteps:    maxSteps,
			ToolRetries: toolRetries,
		},
		Server: ServerConfig{
			Addr:           getEnvString("SERVER_ADDR", ":8080"),
			UploadDir:      os.Getenv("UPLOAD_DIR"),
			MaxUploadBytes: maxUpload,
			DataDir:        os.Getenv("DATA_DIR"),
		},
		Memory: MemoryConfig{
			RingCapacity: ringCapacity,
		},
	}, nil
}

// MustNew loads settings and panics on invalid values. Use only when
// configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	u, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(u), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
