package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"monarch/pkg/api"
)

// Observation error kinds recorded on failed tool executions.
const (
	ObsErrTimeout   = "timeout"
	ObsErrExecution = "tool_execution_error"
)

// Observation is the engine-facing record of one tool execution. Its JSON
// encoding is fed back to the decision layer as a tool turn.
type Observation struct {
	Succeeded bool   `json:"succeeded"`
	Tool      string `json:"tool"`
	Payload   string `json:"payload,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Executor runs tool calls under a bounded time budget. It never retries;
// recovery decisions belong to the decision layer.
type Executor struct {
	registry api.ToolCatalogue
	timeout  time.Duration
}

// NewExecutor creates an executor. A non-positive timeout falls back to
// 30 seconds.
func NewExecutor(registry api.ToolCatalogue, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{registry: registry, timeout: timeout}
}

// Execute runs one tool call and always returns an observation, never an error.
func (e *Executor) Execute(ctx context.Context, call Action) Observation {
	tool, ok := e.registry.Lookup(call.Tool)
	if !ok {
		// Decode validation normally rules this out.
		return Observation{Tool: call.Tool, ErrorKind: ObsErrExecution, Error: fmt.Sprintf("unknown tool %q", call.Tool)}
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	payload, err := runTool(execCtx, tool, call.Args)
	elapsed := time.Since(start)

	if err != nil {
		kind := ObsErrExecution
		if errors.Is(err, context.DeadlineExceeded) {
			kind = ObsErrTimeout
		}
		slog.Warn("Tool execution failed", "tool", call.Tool, "duration", elapsed.String(), "error", err)
		return Observation{Tool: call.Tool, ErrorKind: kind, Error: err.Error()}
	}

	slog.Info("Tool executed", "tool", call.Tool, "duration", elapsed.String())
	return Observation{Succeeded: true, Tool: call.Tool, Payload: payload}
}

// runTool invokes the tool on its own goroutine so the time budget holds
// even for implementations that ignore ctx, and turns panics into errors.
func runTool(ctx context.Context, tool api.Tool, args map[string]any) (string, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := tool.Execute(ctx, args)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.out, res.err
	}
}
