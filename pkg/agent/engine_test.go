package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"monarch/pkg/api"
	"monarch/pkg/config"
	"monarch/pkg/llm"
	"monarch/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter replays canned replies (or errors) in order and records
// every call it receives.
type scriptedCompleter struct {
	name    string
	replies []string
	errs    []error
	calls   int
	systems []string
	msgs    [][]llm.Message
}

func (s *scriptedCompleter) Complete(ctx context.Context, system string, msgs []llm.Message) (string, error) {
	i := s.calls
	s.calls++
	s.systems = append(s.systems, system)
	s.msgs = append(s.msgs, msgs)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("scripted completer exhausted")
}

func (s *scriptedCompleter) Model() string                  { return s.name }
func (s *scriptedCompleter) IsTransientError(err error) bool { return false }

type engineFixture struct {
	engine   *Engine
	decision *scriptedCompleter
	general  *scriptedCompleter
	coder    *scriptedCompleter
}

func newEngineFixture(t *testing.T, decisionReplies []string, decisionErrs []error) *engineFixture {
	t.Helper()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&fakeTool{
		name: "echo",
		params: []api.Parameter{
			{Name: "text", Type: api.ParamString, Required: true},
		},
		fn: func(ctx context.Context, args map[string]any) (string, error) {
			return "echo: " + args["text"].(string), nil
		},
	}))

	decision := &scriptedCompleter{name: "decision", replies: decisionReplies, errs: decisionErrs}
	general := &scriptedCompleter{name: "general", replies: []string{"general answer"}}
	coder := &scriptedCompleter{name: "coder", replies: []string{"coder answer"}}

	set := llm.NewDelegateSet()
	require.NoError(t, set.Add(llm.Delegate{Name: "general", Purpose: "chat", Client: general}, true))
	require.NoError(t, set.Add(llm.Delegate{Name: "coder", Purpose: "code", Client: coder}, false))

	sys := config.DefaultSystemConfig()
	sys.RetryDelayMs = 0

	return &engineFixture{
		engine:   NewEngine(decision, set, registry, sys, nil, "You are Monarch."),
		decision: decision,
		general:  general,
		coder:    coder,
	}
}

func traceKinds(trace []api.TraceEvent) []string {
	kinds := make([]string, 0, len(trace))
	for _, ev := range trace {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func TestResolveDirectResponse(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"direct_response","details":{"response":"the answer is 4"}}`,
	}, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "2+2?"})
	require.NoError(t, err)
	assert.Equal(t, "the answer is 4", res.FinalAnswer)
	assert.Equal(t, api.ActionDirectResponse, res.Action)
	assert.Equal(t, []string{api.TraceReasoning, api.TraceFinal}, traceKinds(res.Trace))
}

func TestResolveToolCallThenAnswer(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"ping"}}}`,
		`{"action_type":"direct_response","details":{"response":"tool said ping"}}`,
	}, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "run echo"})
	require.NoError(t, err)
	assert.Equal(t, "tool said ping", res.FinalAnswer)
	assert.Equal(t, api.ActionDirectResponse, res.Action)
	assert.Equal(t, []string{
		api.TraceReasoning, api.TraceToolSelected, api.TraceToolResult, api.TraceFinal,
	}, traceKinds(res.Trace))

	// The observation must have been fed back as a tool turn on the second call.
	require.Equal(t, 2, f.decision.calls)
	secondMsgs := f.decision.msgs[1]
	var toolTurn *llm.Message
	for i := range secondMsgs {
		if secondMsgs[i].Role == llm.RoleTool {
			toolTurn = &secondMsgs[i]
		}
	}
	require.NotNil(t, toolTurn, "observation should appear as a tool turn")
	assert.Contains(t, toolTurn.Content, `"succeeded":true`)
	assert.Contains(t, toolTurn.Content, "echo: ping")

	// ToolDetails records the last executed tool.
	assert.Equal(t, "echo", res.ToolDetails["tool"])
	assert.Equal(t, true, res.ToolDetails["succeeded"])
}

func TestResolveIterationLimit(t *testing.T) {
	toolReply := `{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"again"}}}`
	replies := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		replies = append(replies, toolReply)
	}
	f := newEngineFixture(t, replies, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "loop forever"})
	require.NoError(t, err)
	assert.Equal(t, MaxIterationsAnswer, res.FinalAnswer)
	assert.Equal(t, api.ActionToolCall, res.Action)
	assert.Equal(t, 5, f.decision.calls)

	kinds := traceKinds(res.Trace)
	selected := 0
	for _, k := range kinds {
		if k == api.TraceToolSelected {
			selected++
		}
	}
	assert.Equal(t, 5, selected)
	assert.Equal(t, api.TraceFinal, kinds[len(kinds)-1])
}

func TestResolveBackendFailureRetriesOnceThenFallsBack(t *testing.T) {
	backendErr := &llm.BackendError{Kind: llm.BackendTimeout, Err: errors.New("deadline exceeded")}
	f := newEngineFixture(t, nil, []error{backendErr, backendErr})

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "original question"})
	require.NoError(t, err)
	assert.Equal(t, "general answer", res.FinalAnswer)
	assert.Equal(t, api.ActionFallback, res.Action)
	assert.Equal(t, 2, f.decision.calls, "exactly one retry of the decision call")

	// The fallback delegate must receive the original user message verbatim.
	require.Equal(t, 1, f.general.calls)
	msgs := f.general.msgs[0]
	require.NotEmpty(t, msgs)
	assert.Equal(t, "original question", msgs[len(msgs)-1].Content)

	kinds := traceKinds(res.Trace)
	assert.Contains(t, kinds, api.TraceFallback)
}

func TestResolveDecodeErrorFallsBackWithoutRetry(t *testing.T) {
	f := newEngineFixture(t, []string{"certainly! here is my answer"}, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, api.ActionFallback, res.Action)
	assert.Equal(t, "general answer", res.FinalAnswer)
	assert.Equal(t, 1, f.decision.calls, "decode errors must not trigger a decision retry")

	var fallbackDetail map[string]any
	for _, ev := range res.Trace {
		if ev.Kind == api.TraceFallback {
			fallbackDetail = ev.Detail
		}
	}
	require.NotNil(t, fallbackDetail)
	assert.Equal(t, string(DecodeMalformedJSON), fallbackDetail["reason"])
}

func TestResolveUnknownToolFallsBack(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"tool_call","details":{"tool_name":"teleport","arguments":{}}}`,
	}, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, api.ActionFallback, res.Action)

	var reason any
	for _, ev := range res.Trace {
		if ev.Kind == api.TraceFallback {
			reason = ev.Detail["reason"]
		}
	}
	assert.Equal(t, string(DecodeUnknownTool), reason)
}

func TestResolveDelegateCall(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"delegate_call","details":{"delegate":"coder","sub_prompt":"write fizzbuzz"}}`,
	}, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "code please"})
	require.NoError(t, err)
	assert.Equal(t, "coder answer", res.FinalAnswer)
	assert.Equal(t, api.ActionDelegateCall, res.Action)
	assert.Equal(t, "coder", res.ToolDetails["delegate"])
	assert.Equal(t, "write fizzbuzz", res.ToolDetails["sub_prompt"])

	// Delegate sees the sub-prompt, not the raw user message.
	require.Equal(t, 1, f.coder.calls)
	msgs := f.coder.msgs[0]
	assert.Equal(t, "write fizzbuzz", msgs[len(msgs)-1].Content)

	assert.Equal(t, []string{
		api.TraceReasoning, api.TraceDelegateSelected, api.TraceFinal,
	}, traceKinds(res.Trace))
}

func TestResolveFallbackDelegateFailureDegrades(t *testing.T) {
	boom := errors.New("backend down")
	f := newEngineFixture(t, nil, []error{boom, boom})
	f.general.errs = []error{boom, boom}

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "hi"})
	require.NoError(t, err)
	assert.Equal(t, FallbackFailedAnswer, res.FinalAnswer)
	assert.Equal(t, api.ActionFallback, res.Action)
	assert.NotEmpty(t, res.FinalAnswer, "Resolve must never return an empty answer")
}

func TestResolveCancelledContext(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"direct_response","details":{"response":"never seen"}}`,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.engine.Resolve(ctx, api.Request{ChatID: "c1", UserMessage: "hi"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveTraceSequenceStrictlyIncreases(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"a"}}}`,
		`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"b"}}}`,
		`{"action_type":"direct_response","details":{"response":"done"}}`,
	}, nil)

	res, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "go"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Trace)
	for i, ev := range res.Trace {
		assert.Equal(t, i+1, ev.Seq, fmt.Sprintf("event %d", i))
		assert.Equal(t, res.Trace[0].RequestID, ev.RequestID)
	}
}

func TestResolvePersonaHotReload(t *testing.T) {
	f := newEngineFixture(t, []string{
		`{"action_type":"direct_response","details":{"response":"one"}}`,
		`{"action_type":"direct_response","details":{"response":"two"}}`,
	}, nil)

	_, err := f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "first"})
	require.NoError(t, err)
	assert.Contains(t, f.decision.systems[0], "You are Monarch.")

	f.engine.SetPersona("You are Regent.")
	_, err = f.engine.Resolve(context.Background(), api.Request{ChatID: "c1", UserMessage: "second"})
	require.NoError(t, err)
	assert.Contains(t, f.decision.systems[1], "You are Regent.")
}
