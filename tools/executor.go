// Tool executor with retry logic.
//
// Information Hiding:
// - Retry strategy and backoff algorithm hidden
// - Error classification logic hidden

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExecutorConfig holds tool execution settings. The zero value is
// safe: 3 attempts with a 100ms base backoff.
type ExecutorConfig struct {
	MaxAttempts uint32
	BaseBackoff time.Duration
}

// Attempts returns the configured attempt count, defaulting to 3.
func (c ExecutorConfig) Attempts() uint32 {
	if c.MaxAttempts == 0 {
		return 3
	}
	return c.MaxAttempts
}

func (c ExecutorConfig) base() time.Duration {
	if c.BaseBackoff == 0 {
		return 100 * time.Millisecond
	}
	return c.BaseBackoff
}

// Oneshot marks a tool whose execution streams externally visible
// side effects and therefore must not be replayed. The executor gives
// such tools exactly one attempt regardless of the retry
// configuration.
type Oneshot interface {
	Oneshot()
}

// Executor runs tools with validation, retry and timeout support.
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates a tool executor with the given configuration.
func NewExecutor(config ExecutorConfig) *Executor {
	return &Executor{config: config}
}

// Execute runs a tool with retry logic. Transient failures are
// retried with exponential backoff; validation and permission errors
// fail immediately.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(fmt.Errorf("validation failed: %w", err)), nil
	}

	var lastErr error
	toolName := tool.Metadata().Name
	attempts := e.config.Attempts()
	if _, once := tool.(Oneshot); once {
		attempts = 1
	}

	for attempt := uint32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ToolResult{}, ctx.Err()
			case <-time.After(e.backoff(attempt)):
			}
		}

		result, err := tool.Execute(ctx, args)
		if err != nil {
			lastErr = err
			continue
		}
		if result.Success() {
			return result, nil
		}
		if !retryable(result.Error) {
			return result, nil
		}
		lastErr = result.Error
	}

	errMsg := "unknown error"
	if lastErr != nil {
		errMsg = lastErr.Error()
	}
	return FailureResultf("tool %q failed after %d attempts: %s", toolName, attempts, errMsg), nil
}

// ExecuteWithTimeout runs a tool under a per-call deadline.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, tool Tool, args json.RawMessage, timeout time.Duration) (ToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return e.Execute(ctx, tool, args)
}

func (e *Executor) backoff(attempt uint32) time.Duration {
	const maxDelay = 5 * time.Second

	delay := e.config.base() * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// retryable classifies a failure. Validation and permission errors
// never retry; timeouts and network errors always do; everything else
// retries by default.
func retryable(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"validation", "not allowed", "permission", "empty", "unsupported"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	return true
}
