package tools

import (
	"context"
	"fmt"

	"monarch/pkg/api"
)

// StateStore is the persistence surface the agent_state tool needs.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
}

// AgentStateTool reads and writes persistent key-value state for the agent,
// letting it remember facts across requests and restarts.
type AgentStateTool struct {
	store StateStore
}

func NewAgentStateTool(store StateStore) *AgentStateTool {
	return &AgentStateTool{store: store}
}

func (t *AgentStateTool) Name() string { return "agent_state" }

func (t *AgentStateTool) Description() string {
	return "Get or set a persistent key-value entry in the agent's own state store."
}

func (t *AgentStateTool) Parameters() []api.Parameter {
	return []api.Parameter{
		{Name: "action", Type: api.ParamString, Description: "Either \"get\" or \"set\".", Required: true},
		{Name: "key", Type: api.ParamString, Description: "State key.", Required: true},
		{Name: "value", Type: api.ParamString, Description: "Value to store (required for \"set\").", Required: false},
	}
}

func (t *AgentStateTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	action, _ := args["action"].(string)
	key, _ := args["key"].(string)
	if key == "" {
		return "", fmt.Errorf("key must not be empty")
	}

	switch action {
	case "get":
		value, found, err := t.store.GetState(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to read state %q: %w", key, err)
		}
		if !found {
			return fmt.Sprintf("No value stored under %q.", key), nil
		}
		return value, nil

	case "set":
		value, ok := args["value"].(string)
		if !ok {
			return "", fmt.Errorf("'value' is required for action \"set\"")
		}
		if err := t.store.SetState(ctx, key, value); err != nil {
			return "", fmt.Errorf("failed to store state %q: %w", key, err)
		}
		return fmt.Sprintf("Stored %q under %q.", value, key), nil

	default:
		return "", fmt.Errorf("unknown action %q, expected \"get\" or \"set\"", action)
	}
}
