package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"monarch/pkg/api"
	"monarch/pkg/config"
	"monarch/pkg/llm"
	"monarch/pkg/utils"
)

// Defaults applied when the system config leaves engine knobs unset.
const (
	DefaultMaxIterations = 5
	DefaultHistoryWindow = 5
)

// Fixed user-facing answers for the loop's terminal failure states.
const (
	// MaxIterationsAnswer is returned verbatim once the tool iteration cap is hit.
	MaxIterationsAnswer = "Max tool iterations reached without a final answer. Please try rephrasing or narrowing your request."
	// FallbackFailedAnswer is the last resort when even the fallback delegate fails.
	FallbackFailedAnswer = "I could not produce an answer right now. Please try again in a moment."
)

// Engine resolves one user message into exactly one final answer. It loops
// over the decision model, executing at most maxIterations tool calls, and
// degrades to the default delegate whenever the decision layer misbehaves.
// It implements api.AgentEngine.
type Engine struct {
	decision  llm.Completer
	delegates *llm.DelegateSet
	codec     *Codec
	executor  *Executor
	sink      api.TraceSink

	maxIterations int
	historyWindow int
	retryDelay    time.Duration

	mu      sync.RWMutex
	persona string
}

// NewEngine wires an engine from its collaborators. Sink may be nil for
// callers that only want in-memory traces.
func NewEngine(decision llm.Completer, delegates *llm.DelegateSet, registry api.ToolCatalogue, sys *config.SystemConfig, sink api.TraceSink, persona string) *Engine {
	maxIter := sys.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	window := sys.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}

	return &Engine{
		decision:      decision,
		delegates:     delegates,
		codec:         &Codec{Registry: registry, Delegates: delegates, HistoryWindow: window},
		executor:      NewExecutor(registry, time.Duration(sys.ToolTimeoutSec)*time.Second),
		sink:          sink,
		maxIterations: maxIter,
		historyWindow: window,
		retryDelay:    time.Duration(sys.RetryDelayMs) * time.Millisecond,
		persona:       persona,
	}
}

// SetPersona swaps the persona used by subsequent requests (hot reload).
func (e *Engine) SetPersona(p string) {
	e.mu.Lock()
	e.persona = p
	e.mu.Unlock()
}

// Persona returns the currently configured persona.
func (e *Engine) Persona() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.persona
}

// Resolve implements api.AgentEngine. The returned error is non-nil only
// when ctx is cancelled; every other failure mode yields a Result with a
// non-empty FinalAnswer.
func (e *Engine) Resolve(ctx context.Context, req api.Request) (*api.Result, error) {
	if req.RequestID == "" {
		req.RequestID = utils.NewRequestID()
	}
	rec := NewRecorder(req.RequestID, e.sink)
	rec.Emit(api.TraceReasoning, map[string]any{"chat_id": req.ChatID, "message": req.UserMessage})

	persona := e.Persona()
	working := make([]llm.Message, len(req.History))
	copy(working, req.History)

	iterations := 0
	var toolDetails map[string]any

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		system, msgs := e.codec.EncodePrompt(persona, working, req.UserMessage)
		raw, err := e.callWithRetry(ctx, e.decision, system, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Error("Decision backend failed after retry", "request_id", req.RequestID, "kind", llm.BackendKind(err), "error", err)
			return e.fallback(ctx, req, rec, "backend_error", err, toolDetails)
		}

		action, derr := e.codec.Decode(raw)
		if derr != nil {
			slog.Warn("Decision decode failed", "request_id", req.RequestID, "error", derr, "raw_preview", preview(raw))
			reason := "decode_error"
			if de, ok := derr.(*DecodeError); ok {
				reason = string(de.Kind)
			}
			return e.fallback(ctx, req, rec, reason, derr, toolDetails)
		}

		switch action.Kind {
		case ActionDirectResponse:
			rec.Emit(api.TraceFinal, map[string]any{"action": api.ActionDirectResponse})
			return &api.Result{
				FinalAnswer: action.Text,
				Action:      api.ActionDirectResponse,
				ToolDetails: toolDetails,
				Trace:       rec.Events(),
			}, nil

		case ActionDelegateCall:
			rec.Emit(api.TraceDelegateSelected, map[string]any{"delegate": action.Delegate})
			delegate, _ := e.delegates.Get(action.Delegate) // validated at decode

			dmsgs := e.windowedHistory(working)
			dmsgs = append(dmsgs, llm.NewUserMessage(action.Prompt))
			answer, derr := e.callWithRetry(ctx, delegate.Client, persona, dmsgs)
			if derr != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				slog.Error("Delegate call failed after retry", "request_id", req.RequestID, "delegate", action.Delegate, "error", derr)
				return e.fallback(ctx, req, rec, "delegate_error", derr, toolDetails)
			}
			rec.Emit(api.TraceFinal, map[string]any{"action": api.ActionDelegateCall, "delegate": action.Delegate})
			return &api.Result{
				FinalAnswer: answer,
				Action:      api.ActionDelegateCall,
				ToolDetails: map[string]any{"delegate": action.Delegate, "sub_prompt": action.Prompt},
				Trace:       rec.Events(),
			}, nil

		case ActionToolCall:
			rec.Emit(api.TraceToolSelected, map[string]any{"tool": action.Tool, "arguments": action.Args})
			obs := e.executor.Execute(ctx, action)
			rec.Emit(api.TraceToolResult, map[string]any{"tool": obs.Tool, "succeeded": obs.Succeeded, "error_kind": obs.ErrorKind})

			obsJSON, merr := json.Marshal(obs)
			if merr != nil {
				obsJSON = []byte(fmt.Sprintf(`{"succeeded":false,"tool":%q}`, obs.Tool))
			}
			working = append(working, llm.NewToolMessage(string(obsJSON)))
			toolDetails = map[string]any{"tool": action.Tool, "arguments": action.Args, "succeeded": obs.Succeeded}

			iterations++
			if iterations >= e.maxIterations {
				slog.Warn("Tool iteration limit reached", "request_id", req.RequestID, "iterations", iterations)
				rec.Emit(api.TraceFinal, map[string]any{
					"action":     api.ActionToolCall,
					"error":      ErrIterationLimit.Error(),
					"iterations": iterations,
				})
				return &api.Result{
					FinalAnswer: MaxIterationsAnswer,
					Action:      api.ActionToolCall,
					ToolDetails: toolDetails,
					Trace:       rec.Events(),
				}, nil
			}
		}
	}
}

// callWithRetry invokes a backend once, retrying a single time on failure.
// Decode errors never reach this path.
func (e *Engine) callWithRetry(ctx context.Context, client llm.Completer, system string, msgs []llm.Message) (string, error) {
	out, err := client.Complete(ctx, system, msgs)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", err
	}

	slog.Warn("Backend call failed, retrying once", "model", client.Model(), "kind", llm.BackendKind(err), "error", err)
	if e.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.retryDelay):
		}
	}
	return client.Complete(ctx, system, msgs)
}

// fallback routes the original user message, verbatim, to the default
// delegate. It is the terminal recovery path: if the delegate fails too,
// a fixed apology stands in for the answer.
func (e *Engine) fallback(ctx context.Context, req api.Request, rec *Recorder, reason string, cause error, toolDetails map[string]any) (*api.Result, error) {
	detail := map[string]any{"reason": reason}
	if cause != nil {
		detail["cause"] = cause.Error()
	}
	rec.Emit(api.TraceFallback, detail)

	delegate, ok := e.delegates.Default()
	if !ok {
		rec.Emit(api.TraceFinal, map[string]any{"action": api.ActionFallback, "error": "no default delegate"})
		return &api.Result{FinalAnswer: FallbackFailedAnswer, Action: api.ActionFallback, ToolDetails: toolDetails, Trace: rec.Events()}, nil
	}

	msgs := e.windowedHistory(req.History)
	msgs = append(msgs, llm.NewUserMessage(req.UserMessage))
	answer, err := e.callWithRetry(ctx, delegate.Client, e.Persona(), msgs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Error("Fallback delegate failed", "request_id", req.RequestID, "delegate", delegate.Name, "error", err)
		answer = FallbackFailedAnswer
	}

	rec.Emit(api.TraceFinal, map[string]any{"action": api.ActionFallback, "delegate": delegate.Name})
	return &api.Result{FinalAnswer: answer, Action: api.ActionFallback, ToolDetails: toolDetails, Trace: rec.Events()}, nil
}

// windowedHistory copies the condensed history window so later appends
// never mutate the caller's slice.
func (e *Engine) windowedHistory(history []llm.Message) []llm.Message {
	w := llm.Window(history, e.historyWindow)
	out := make([]llm.Message, 0, len(w)+1)
	return append(out, w...)
}

// preview truncates raw model output for log lines.
func preview(raw string) string {
	const limit = 120
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit] + "..."
}
