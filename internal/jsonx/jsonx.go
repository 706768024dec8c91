// Package jsonx extracts JSON payloads from model output.
//
// Models routinely wrap JSON in prose or markdown fences. The helpers
// here peel that wrapping off and decode the first well-formed object.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the JSON object embedded in s, stripping markdown
// fences and surrounding commentary. Only objects are handled; brace
// matching is first-'{' to last-'}', which is sufficient for the
// structured replies we prompt for.
func Extract(s string) (string, error) {
	s = stripFences(s)

	if json.Valid([]byte(s)) {
		return s, nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	preview := s
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// Decode extracts the JSON object in s and unmarshals it into T.
func Decode[T any](s string) (T, error) {
	var out T
	raw, err := Extract(s)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return out, nil
}

// DecodeInto extracts the JSON object in s and unmarshals it into dst.
func DecodeInto(s string, dst any) error {
	raw, err := Extract(s)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return nil
}

// stripFences removes a leading ```json or ``` fence and the matching
// trailing fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
