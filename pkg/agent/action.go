package agent

// ActionKind discriminates the decision layer's three possible moves.
type ActionKind string

const (
	ActionToolCall       ActionKind = "tool_call"
	ActionDelegateCall   ActionKind = "delegate_call"
	ActionDirectResponse ActionKind = "direct_response"
)

// Action is the decoded decision for one loop iteration. Exactly one of
// the three payload groups is meaningful, selected by Kind.
type Action struct {
	Kind ActionKind

	// tool_call
	Tool string
	Args map[string]any

	// delegate_call
	Delegate string
	Prompt   string

	// direct_response
	Text string
}
