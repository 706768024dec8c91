package config

import "testing"

func TestNewDefaults(t *testing.T) {
	s, err := New("anthropic")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.LLM.Provider != "anthropic" {
		t.Errorf("provider not carried: %q", s.LLM.Provider)
	}
	if s.LLM.MaxTokens != 4096 {
		t.Errorf("expected default max tokens, got %d", s.LLM.MaxTokens)
	}
	if s.Agent.MaxSteps != 8 {
		t.Errorf("expected default max steps, got %d", s.Agent.MaxSteps)
	}
	if s.Server.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", s.Server.Addr)
	}
	if s.Server.MaxUploadBytes != 10<<20 {
		t.Errorf("expected 10MB upload limit, got %d", s.Server.MaxUploadBytes)
	}
	if s.Memory.RingCapacity != 64 {
		t.Errorf("expected default ring capacity, got %d", s.Memory.RingCapacity)
	}
	if s.Search.Depth != "basic" {
		t.Errorf("expected default search depth, got %q", s.Search.Depth)
	}
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("AGENT_MAX_STEPS", "12")
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("SEARCH_DEPTH", "advanced")
	t.Setenv("LLM_TEMPERATURE", "0.2")

	s, err := New("openai")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Agent.MaxSteps != 12 {
		t.Errorf("AGENT_MAX_STEPS not applied: %d", s.Agent.MaxSteps)
	}
	if s.Server.Addr != ":9090" {
		t.Errorf("SERVER_ADDR not applied: %q", s.Server.Addr)
	}
	if s.Search.Depth != "advanced" {
		t.Errorf("SEARCH_DEPTH not applied: %q", s.Search.Depth)
	}
	if s.LLM.Temperature != 0.2 {
		t.Errorf("LLM_TEMPERATURE not applied: %v", s.LLM.Temperature)
	}
}

func TestNewRejectsInvalidNumbers(t *testing.T) {
	tests := []struct {
		key string
		val string
	}{
		{"LLM_MAX_TOKENS", "lots"},
		{"LLM_TEMPERATURE", "warm"},
		{"AGENT_MAX_STEPS", "3.5"},
		{"SERVER_MAX_UPLOAD_BYTES", "big"},
		{"MEMORY_RING_CAPACITY", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := New("openai"); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.val)
			}
		})
	}
}
