package api

import "context"

// ParamType is the schema type of a tool parameter. The set is closed:
// registration fails for anything outside it.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamObject  ParamType = "object"
)

// Parameter describes a single argument accepted by a tool. The decision
// layer validates incoming arguments against these declarations before a
// tool is ever executed.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description"`
	Required    bool      `json:"required"`
}

// Tool defines the structural interface for any capability the agent can
// execute. The metadata methods feed the decision prompt; Execute performs
// the actual action and returns its result as text.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Parameter
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolDescriptor is the prompt-facing projection of a registered tool.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// ToolCatalogue is the read surface the decision layer needs from a tool
// registry. Describe and Names report tools in registration order.
type ToolCatalogue interface {
	Lookup(name string) (Tool, bool)
	Describe() []ToolDescriptor
	Names() []string
}
