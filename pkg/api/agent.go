package api

import (
	"context"
	"time"

	"monarch/pkg/llm"
)

// Trace event kinds emitted by the engine over the lifetime of a request.
const (
	TraceReasoning        = "reasoning"
	TraceToolSelected     = "tool_selected"
	TraceToolResult       = "tool_result"
	TraceDelegateSelected = "delegate_selected"
	TraceFallback         = "fallback"
	TraceFinal            = "final"
)

// TraceEvent is one step in the decision trace of a single request.
// Seq starts at 1 and increases strictly within a request.
type TraceEvent struct {
	Seq       int            `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id"`
	Kind      string         `json:"kind"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// TraceSink receives trace events as they are produced. Implementations
// must not block for long; a failing sink never fails the request.
type TraceSink interface {
	AppendTrace(ev TraceEvent) error
}

// Terminal routes a request can take, recorded on the Result.
const (
	ActionToolCall       = "tool_call"
	ActionDelegateCall   = "delegate_call"
	ActionDirectResponse = "direct_response"
	ActionFallback       = "fallback"
)

// Request carries one user message plus its conversational surroundings.
type Request struct {
	RequestID   string
	ChatID      string
	UserMessage string
	History     []llm.Message
}

// Result is what the engine hands back to the caller for one request.
// FinalAnswer is always non-empty.
type Result struct {
	FinalAnswer string         `json:"final_answer"`
	Action      string         `json:"action"`
	ToolDetails map[string]any `json:"tool_details,omitempty"`
	Trace       []TraceEvent   `json:"trace"`
}

// AgentEngine resolves one user message into exactly one final answer.
// The returned error is non-nil only when ctx is cancelled; every other
// failure mode surfaces as a fallback or degraded Result.
type AgentEngine interface {
	Resolve(ctx context.Context, req Request) (*Result, error)
}
