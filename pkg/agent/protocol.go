package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"monarch/pkg/api"
	"monarch/pkg/llm"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireDecision mirrors the JSON object the decision model must emit.
type wireDecision struct {
	ActionType string              `json:"action_type"`
	Details    jsoniter.RawMessage `json:"details"`
}

type wireToolDetails struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

type wireDelegateDetails struct {
	Delegate  string `json:"delegate"`
	SubPrompt string `json:"sub_prompt"`
}

type wireDirectDetails struct {
	Response string `json:"response"`
}

// Codec builds decision prompts and decodes decision replies against the
// configured tool catalogue and delegate set.
type Codec struct {
	Registry      api.ToolCatalogue
	Delegates     *llm.DelegateSet
	HistoryWindow int
}

// EncodePrompt renders the system prompt and message window for one
// decision round. The user message is always the last entry.
func (c *Codec) EncodePrompt(persona string, history []llm.Message, userMsg string) (string, []llm.Message) {
	var sb strings.Builder
	if persona != "" {
		sb.WriteString(persona)
		sb.WriteString("\n\n")
	}
	sb.WriteString("You are the decision layer of an agent. Pick the single next action for the user's message.\n\n")

	sb.WriteString("Available tools:\n")
	descriptors := c.Registry.Describe()
	if len(descriptors) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, d := range descriptors {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		for _, p := range d.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&sb, "    - %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}

	sb.WriteString("\nAvailable delegate models:\n")
	for _, d := range c.Delegates.All() {
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Purpose)
	}

	sb.WriteString(`
Respond with exactly one JSON object and nothing else. No prose, no code fences.

Formats:
{"action_type": "tool_call", "details": {"tool_name": "<name>", "arguments": {<parameters>}}}
{"action_type": "delegate_call", "details": {"delegate": "<name>", "sub_prompt": "<task for the delegate>"}}
{"action_type": "direct_response", "details": {"response": "<answer for the user>"}}

Tool results arrive back as JSON observations; use them to decide the next action.
`)

	window := c.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	msgs := make([]llm.Message, 0, window+1)
	msgs = append(msgs, llm.Window(history, window)...)
	msgs = append(msgs, llm.NewUserMessage(userMsg))
	return sb.String(), msgs
}

// Decode parses and validates a raw decision reply. Every protocol
// violation comes back as a *DecodeError.
func (c *Codec) Decode(raw string) (Action, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed[0] != '{' {
		return Action{}, &DecodeError{Kind: DecodeMalformedJSON, Detail: "reply is not a JSON object"}
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var wire wireDecision
	if err := dec.Decode(&wire); err != nil {
		return Action{}, &DecodeError{Kind: DecodeMalformedJSON, Detail: err.Error()}
	}
	if dec.More() {
		return Action{}, &DecodeError{Kind: DecodeMalformedJSON, Detail: "trailing content after JSON object"}
	}

	switch wire.ActionType {
	case "":
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "action_type is missing"}
	case string(ActionToolCall):
		return c.decodeToolCall(wire.Details)
	case string(ActionDelegateCall):
		return c.decodeDelegateCall(wire.Details)
	case string(ActionDirectResponse):
		return c.decodeDirectResponse(wire.Details)
	default:
		return Action{}, &DecodeError{Kind: DecodeUnknownActionType, Detail: fmt.Sprintf("unknown action_type %q", wire.ActionType)}
	}
}

func (c *Codec) decodeToolCall(details jsoniter.RawMessage) (Action, error) {
	if len(details) == 0 {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "details is missing"}
	}
	var d wireToolDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return Action{}, &DecodeError{Kind: DecodeMalformedJSON, Detail: fmt.Sprintf("invalid details: %v", err)}
	}
	if d.ToolName == "" {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "tool_name is missing"}
	}
	tool, ok := c.Registry.Lookup(d.ToolName)
	if !ok {
		return Action{}, &DecodeError{Kind: DecodeUnknownTool, Detail: fmt.Sprintf("unknown tool %q", d.ToolName)}
	}
	args := d.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := validateArguments(tool, args); err != nil {
		return Action{}, err
	}
	return Action{Kind: ActionToolCall, Tool: d.ToolName, Args: args}, nil
}

func (c *Codec) decodeDelegateCall(details jsoniter.RawMessage) (Action, error) {
	if len(details) == 0 {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "details is missing"}
	}
	var d wireDelegateDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return Action{}, &DecodeError{Kind: DecodeMalformedJSON, Detail: fmt.Sprintf("invalid details: %v", err)}
	}
	if d.Delegate == "" {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "delegate is missing"}
	}
	if _, ok := c.Delegates.Get(d.Delegate); !ok {
		return Action{}, &DecodeError{Kind: DecodeUnknownDelegate, Detail: fmt.Sprintf("unknown delegate %q", d.Delegate)}
	}
	if strings.TrimSpace(d.SubPrompt) == "" {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "sub_prompt is missing"}
	}
	return Action{Kind: ActionDelegateCall, Delegate: d.Delegate, Prompt: d.SubPrompt}, nil
}

func (c *Codec) decodeDirectResponse(details jsoniter.RawMessage) (Action, error) {
	if len(details) == 0 {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "details is missing"}
	}
	var d wireDirectDetails
	if err := json.Unmarshal(details, &d); err != nil {
		return Action{}, &DecodeError{Kind: DecodeMalformedJSON, Detail: fmt.Sprintf("invalid details: %v", err)}
	}
	if strings.TrimSpace(d.Response) == "" {
		return Action{}, &DecodeError{Kind: DecodeMissingField, Detail: "response is missing"}
	}
	return Action{Kind: ActionDirectResponse, Text: d.Response}, nil
}

// validateArguments checks required presence against the tool's declared
// schema and coerces values to the declared types where possible, writing
// the coerced value back into args. Extra arguments are tolerated.
func validateArguments(tool api.Tool, args map[string]any) error {
	for _, p := range tool.Parameters() {
		val, ok := args[p.Name]
		if !ok {
			if p.Required {
				return &DecodeError{Kind: DecodeArgumentValidation, Detail: fmt.Sprintf("missing required argument %q", p.Name)}
			}
			continue
		}
		coerced, ok := coerceArgument(p.Type, val)
		if !ok {
			return &DecodeError{Kind: DecodeArgumentValidation, Detail: fmt.Sprintf("argument %q is not a valid %s", p.Name, p.Type)}
		}
		args[p.Name] = coerced
	}
	return nil
}

// coerceArgument converts one decoded JSON value to a declared parameter
// type, best-effort: numeric strings parse to numbers, numbers and booleans
// format to strings, "true"/"false" parse to booleans. JSON numbers arrive
// as float64 and stay that way; integers must have no fraction.
func coerceArgument(t api.ParamType, val any) (any, bool) {
	switch t {
	case api.ParamString:
		switch v := val.(type) {
		case string:
			return v, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(v), true
		}
	case api.ParamBoolean:
		switch v := val.(type) {
		case bool:
			return v, true
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b, true
			}
		}
	case api.ParamInteger:
		switch v := val.(type) {
		case float64:
			if v == math.Trunc(v) {
				return v, true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f == math.Trunc(f) {
				return f, true
			}
		}
	case api.ParamNumber:
		switch v := val.(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	case api.ParamObject:
		if m, ok := val.(map[string]any); ok {
			return m, true
		}
	}
	return nil, false
}
