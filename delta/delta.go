// Package delta defines the wire contract between a server turn and the
// browser client: an ordered, append-only sequence of typed messages.
//
// The set of kinds is closed. Each kind is a concrete struct implementing
// the Delta interface, so consumers dispatch with a type switch instead
// of matching on an open string-typed envelope.
package delta

import (
	"encoding/json"
	"fmt"

	"github.com/marendel/skein/model"
)

// Kind identifies the type of a delta on the wire.
type Kind string

const (
	KindSearchStatus Kind = "search-status"
	KindSearchQuery  Kind = "search-query"
	KindSearchStep   Kind = "search-step"
	KindSearchError  Kind = "search-error"
	KindText         Kind = "text-delta"
	KindThinking     Kind = "thinking"
	KindToolCall     Kind = "tool-call"
	KindToolResult   Kind = "tool-result"
	KindFinish       Kind = "finish"
)

// Delta is one typed, immutable message appended to a turn's channel.
// It is never retracted; corrections are expressed as a new delta with
// the same natural key.
type Delta interface {
	Kind() Kind
}

// StatusDelta reports the search lifecycle phase.
type StatusDelta struct {
	Status model.Status `json:"status"`
}

func (StatusDelta) Kind() Kind { return KindSearchStatus }

// QueryDelta carries the query as sent to the search provider,
// including any minimum-length padding.
type QueryDelta struct {
	Query string `json:"query"`
}

func (QueryDelta) Kind() Kind { return KindSearchQuery }

// StepDelta carries a search progress step. Steps sharing a title
// overwrite each other on the consumer.
type StepDelta struct {
	Step model.SearchStep `json:"step"`
}

func (StepDelta) Kind() Kind { return KindSearchStep }

// ErrorDelta signals a producer-side failure. It forces the consumer
// into the error state regardless of anything that follows.
type ErrorDelta struct {
	Message string `json:"message"`
}

func (ErrorDelta) Kind() Kind { return KindSearchError }

// TextDelta streams user-visible assistant text.
type TextDelta struct {
	Text string `json:"text"`
}

func (TextDelta) Kind() Kind { return KindText }

// ThinkingDelta is the side-channel note naming the agent working a round.
type ThinkingDelta struct {
	Agent string `json:"agent"`
	Text  string `json:"text,omitempty"`
}

func (ThinkingDelta) Kind() Kind { return KindThinking }

// ToolCallDelta announces a tool invocation requested by the model.
type ToolCallDelta struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

func (ToolCallDelta) Kind() Kind { return KindToolCall }

// ToolResultDelta carries the outcome of a tool invocation.
type ToolResultDelta struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

func (ToolResultDelta) Kind() Kind { return KindToolResult }

// FinishDelta terminates a turn. Reason is "stop" for a natural end,
// "length" when the round budget ran out, "error" for the fallback path.
type FinishDelta struct {
	Reason string `json:"reason"`
}

func (FinishDelta) Kind() Kind { return KindFinish }

// envelope is the JSON wire form: {"kind": ..., "payload": ...}.
type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes a delta into its wire envelope.
func Marshal(d Delta) ([]byte, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", d.Kind(), err)
	}
	return json.Marshal(envelope{Kind: d.Kind(), Payload: payload})
}

// Unmarshal decodes a wire envelope into the concrete delta for its kind.
// Unknown kinds are an error: the kind set is closed and both ends must
// agree on it.
func Unmarshal(data []byte) (Delta, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode delta envelope: %w", err)
	}

	var d Delta
	switch env.Kind {
	case KindSearchStatus:
		d = &StatusDelta{}
	case KindSearchQuery:
		d = &QueryDelta{}
	case KindSearchStep:
		d = &StepDelta{}
	case KindSearchError:
		d = &ErrorDelta{}
	case KindText:
		d = &TextDelta{}
	case KindThinking:
		d = &ThinkingDelta{}
	case KindToolCall:
		d = &ToolCallDelta{}
	case KindToolResult:
		d = &ToolResultDelta{}
	case KindFinish:
		d = &FinishDelta{}
	default:
		return nil, fmt.Errorf("unknown delta kind: %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, d); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	return deref(d), nil
}

// deref returns the value form so consumers can type-switch on values,
// matching what producers append.
func deref(d Delta) Delta {
	switch v := d.(type) {
	case *StatusDelta:
		return *v
	case *QueryDelta:
		return *v
	case *StepDelta:
		return *v
	case *ErrorDelta:
		return *v
	case *TextDelta:
		return *v
	case *ThinkingDelta:
		return *v
	case *ToolCallDelta:
		return *v
	case *ToolResultDelta:
		return *v
	case *FinishDelta:
		return *v
	default:
		return d
	}
}
