package openailm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"monarch/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// Client is a wrapper around the official OpenAI Go SDK. With a custom
// base URL it also serves any OpenAI-compatible endpoint (local servers,
// DeepSeek, Mistral platform, etc.).
type Client struct {
	client   *openai.Client
	provider string
	model    string
	options  map[string]any
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(provider string, apiKey string, model string, baseURL string, options map[string]any) (*Client, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(opts...)

	return &Client{
		client:   &client,
		provider: provider,
		model:    model,
		options:  options,
	}, nil
}

// Model implements the llm.Completer interface.
func (c *Client) Model() string { return c.model }

// Complete implements llm.Completer via one chat-completions call.
func (c *Client) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	for _, m := range messages {
		switch m.Role {
		case llm.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case llm.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			// Tool observations travel as user turns on the wire
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: msgs,
	}

	reqOpts := []option.RequestOption{}

	// Handle unified "temperature" option (optional)
	if t, ok := c.options["temperature"].(float64); ok {
		reqOpts = append(reqOpts, option.WithJSONSet("temperature", t))
	}

	// Handle unified "max_tokens" option (mapped to max_completion_tokens for newer models)
	if maxTok, ok := c.options["max_tokens"].(float64); ok {
		reqOpts = append(reqOpts, option.WithJSONSet("max_completion_tokens", int(maxTok)))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return "", classify(err)
	}
	if len(completion.Choices) == 0 {
		return "", &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: fmt.Errorf("no choices returned by %s", c.model)}
	}

	out := completion.Choices[0].Message.Content
	if strings.TrimSpace(out) == "" {
		return "", &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: fmt.Errorf("empty completion from %s", c.model)}
	}
	return out, nil
}

// classify maps SDK failures onto the engine's backend error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		return &llm.BackendError{Kind: llm.BackendTimeout, Err: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host"):
		return &llm.BackendError{Kind: llm.BackendConnectionRefused, Err: err}
	default:
		return &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: err}
	}
}

// IsTransientError implements the llm.Completer interface.
func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	// Transient: network-level issues
	if strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") {
		return true
	}

	// Transient: server-side temporary failures
	if strings.Contains(msg, "500 internal") ||
		strings.Contains(msg, "502 bad gateway") ||
		strings.Contains(msg, "503 service unavailable") ||
		strings.Contains(msg, "overloaded") {
		return true
	}

	// Everything else (400 Bad Request, 401 Unauthorized, etc.) is non-transient
	return false
}
