package agent

import (
	"context"
	"fmt"
	"testing"

	"monarch/pkg/api"
	"monarch/pkg/llm"
	"monarch/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name   string
	params []api.Parameter
	fn     func(ctx context.Context, args map[string]any) (string, error)
}

func (t *fakeTool) Name() string                { return t.name }
func (t *fakeTool) Description() string         { return "test tool " + t.name }
func (t *fakeTool) Parameters() []api.Parameter { return t.params }
func (t *fakeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.fn == nil {
		return "ok", nil
	}
	return t.fn(ctx, args)
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&fakeTool{
		name: "echo",
		params: []api.Parameter{
			{Name: "text", Type: api.ParamString, Description: "text to echo", Required: true},
			{Name: "count", Type: api.ParamInteger, Description: "repeat count", Required: false},
			{Name: "meta", Type: api.ParamObject, Description: "extra metadata", Required: false},
		},
	}))

	set := llm.NewDelegateSet()
	require.NoError(t, set.Add(llm.Delegate{Name: "general", Purpose: "everyday questions"}, true))
	require.NoError(t, set.Add(llm.Delegate{Name: "coder", Purpose: "code work"}, false))

	return &Codec{Registry: registry, Delegates: set, HistoryWindow: 5}
}

func TestEncodePromptIncludesCatalogues(t *testing.T) {
	codec := newTestCodec(t)

	system, msgs := codec.EncodePrompt("You are Monarch.", nil, "hello")
	assert.Contains(t, system, "You are Monarch.")
	assert.Contains(t, system, "echo")
	assert.Contains(t, system, "text (string, required)")
	assert.Contains(t, system, "general: everyday questions")
	assert.Contains(t, system, "coder: code work")
	assert.Contains(t, system, "exactly one JSON object")

	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestEncodePromptWindowsHistory(t *testing.T) {
	codec := newTestCodec(t)

	var history []llm.Message
	for i := 0; i < 12; i++ {
		history = append(history, llm.NewUserMessage(fmt.Sprintf("turn %d", i)))
	}

	_, msgs := codec.EncodePrompt("", history, "latest")
	require.Len(t, msgs, 6) // 5 history turns plus the new user message
	assert.Equal(t, "turn 7", msgs[0].Content)
	assert.Equal(t, "latest", msgs[5].Content)
}

func TestDecodeDirectResponse(t *testing.T) {
	codec := newTestCodec(t)

	action, err := codec.Decode(`{"action_type":"direct_response","details":{"response":"hi there"}}`)
	require.NoError(t, err)
	assert.Equal(t, ActionDirectResponse, action.Kind)
	assert.Equal(t, "hi there", action.Text)
}

func TestDecodeToolCall(t *testing.T) {
	codec := newTestCodec(t)

	action, err := codec.Decode(`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"hey","count":3}}}`)
	require.NoError(t, err)
	assert.Equal(t, ActionToolCall, action.Kind)
	assert.Equal(t, "echo", action.Tool)
	assert.Equal(t, "hey", action.Args["text"])
}

func TestDecodeDelegateCall(t *testing.T) {
	codec := newTestCodec(t)

	action, err := codec.Decode(`{"action_type":"delegate_call","details":{"delegate":"coder","sub_prompt":"write a loop"}}`)
	require.NoError(t, err)
	assert.Equal(t, ActionDelegateCall, action.Kind)
	assert.Equal(t, "coder", action.Delegate)
	assert.Equal(t, "write a loop", action.Prompt)
}

func TestDecodeToleratesSurroundingWhitespace(t *testing.T) {
	codec := newTestCodec(t)

	action, err := codec.Decode("\n  {\"action_type\":\"direct_response\",\"details\":{\"response\":\"ok\"}}  \n")
	require.NoError(t, err)
	assert.Equal(t, ActionDirectResponse, action.Kind)
}

func decodeKind(t *testing.T, codec *Codec, raw string) DecodeErrorKind {
	t.Helper()
	_, err := codec.Decode(raw)
	require.Error(t, err)
	var derr *DecodeError
	require.ErrorAs(t, err, &derr)
	return derr.Kind
}

func TestDecodeMalformedJSON(t *testing.T) {
	codec := newTestCodec(t)

	assert.Equal(t, DecodeMalformedJSON, decodeKind(t, codec, "I think the answer is 42"))
	assert.Equal(t, DecodeMalformedJSON, decodeKind(t, codec, `{"action_type":`))
	assert.Equal(t, DecodeMalformedJSON, decodeKind(t, codec, ""))
}

func TestDecodeRejectsTrailingContent(t *testing.T) {
	codec := newTestCodec(t)

	kind := decodeKind(t, codec, `{"action_type":"direct_response","details":{"response":"hi"}} and some prose`)
	assert.Equal(t, DecodeMalformedJSON, kind)
}

func TestDecodeUnknownActionType(t *testing.T) {
	codec := newTestCodec(t)

	kind := decodeKind(t, codec, `{"action_type":"think_harder","details":{}}`)
	assert.Equal(t, DecodeUnknownActionType, kind)
}

func TestDecodeMissingFields(t *testing.T) {
	codec := newTestCodec(t)

	assert.Equal(t, DecodeMissingField, decodeKind(t, codec, `{"details":{"response":"hi"}}`))
	assert.Equal(t, DecodeMissingField, decodeKind(t, codec, `{"action_type":"direct_response"}`))
	assert.Equal(t, DecodeMissingField, decodeKind(t, codec, `{"action_type":"direct_response","details":{}}`))
	assert.Equal(t, DecodeMissingField, decodeKind(t, codec, `{"action_type":"tool_call","details":{"arguments":{}}}`))
	assert.Equal(t, DecodeMissingField, decodeKind(t, codec, `{"action_type":"delegate_call","details":{"delegate":"coder"}}`))
}

func TestDecodeUnknownTool(t *testing.T) {
	codec := newTestCodec(t)

	kind := decodeKind(t, codec, `{"action_type":"tool_call","details":{"tool_name":"teleport","arguments":{}}}`)
	assert.Equal(t, DecodeUnknownTool, kind)
}

func TestDecodeUnknownDelegate(t *testing.T) {
	codec := newTestCodec(t)

	kind := decodeKind(t, codec, `{"action_type":"delegate_call","details":{"delegate":"lawyer","sub_prompt":"sue"}}`)
	assert.Equal(t, DecodeUnknownDelegate, kind)
}

func TestDecodeArgumentValidation(t *testing.T) {
	codec := newTestCodec(t)

	// Missing required argument
	kind := decodeKind(t, codec, `{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{}}}`)
	assert.Equal(t, DecodeArgumentValidation, kind)

	// Uncoercible value for string parameter
	kind = decodeKind(t, codec, `{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":{"a":1}}}}`)
	assert.Equal(t, DecodeArgumentValidation, kind)

	// Fractional value for integer parameter
	kind = decodeKind(t, codec, `{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"x","count":1.5}}}`)
	assert.Equal(t, DecodeArgumentValidation, kind)

	// Non-object for object parameter
	kind = decodeKind(t, codec, `{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"x","meta":[1,2]}}}`)
	assert.Equal(t, DecodeArgumentValidation, kind)
}

func TestDecodeCoercesArgumentTypes(t *testing.T) {
	codec := newTestCodec(t)

	// Numeric string for an integer parameter
	action, err := codec.Decode(`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"x","count":"3"}}}`)
	require.NoError(t, err)
	assert.Equal(t, float64(3), action.Args["count"])

	// Number for a string parameter
	action, err = codec.Decode(`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":7}}}`)
	require.NoError(t, err)
	assert.Equal(t, "7", action.Args["text"])

	// Fractional string still rejected for an integer parameter
	kind := decodeKind(t, codec, `{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"x","count":"2.5"}}}`)
	assert.Equal(t, DecodeArgumentValidation, kind)
}

func TestCoerceArgument(t *testing.T) {
	cases := []struct {
		name  string
		typ   api.ParamType
		in    any
		want  any
		valid bool
	}{
		{"string passthrough", api.ParamString, "hi", "hi", true},
		{"number to string", api.ParamString, float64(2.5), "2.5", true},
		{"bool to string", api.ParamString, true, "true", true},
		{"bool passthrough", api.ParamBoolean, false, false, true},
		{"true string to bool", api.ParamBoolean, "true", true, true},
		{"false string to bool", api.ParamBoolean, " false ", false, true},
		{"prose is not a bool", api.ParamBoolean, "maybe", nil, false},
		{"whole float as integer", api.ParamInteger, float64(4), float64(4), true},
		{"numeric string as integer", api.ParamInteger, "12", float64(12), true},
		{"fractional rejected as integer", api.ParamInteger, float64(1.5), nil, false},
		{"numeric string as number", api.ParamNumber, "2.5", float64(2.5), true},
		{"prose is not a number", api.ParamNumber, "plenty", nil, false},
		{"object passthrough", api.ParamObject, map[string]any{"a": 1}, map[string]any{"a": 1}, true},
		{"string is not an object", api.ParamObject, "{}", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := coerceArgument(tc.typ, tc.in)
			require.Equal(t, tc.valid, ok)
			if tc.valid {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestDecodeToleratesExtraArguments(t *testing.T) {
	codec := newTestCodec(t)

	action, err := codec.Decode(`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"x","surprise":true}}}`)
	require.NoError(t, err)
	assert.Equal(t, true, action.Args["surprise"])
}

func TestDecodeWholeIntegerAccepted(t *testing.T) {
	codec := newTestCodec(t)

	action, err := codec.Decode(`{"action_type":"tool_call","details":{"tool_name":"echo","arguments":{"text":"x","count":4}}}`)
	require.NoError(t, err)
	assert.Equal(t, float64(4), action.Args["count"])
}
