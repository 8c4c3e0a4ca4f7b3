package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"monarch/pkg/llm"

	"github.com/ollama/ollama/api"
)

// OllamaClient talks to a local Ollama server over its native chat API.
type OllamaClient struct {
	client  *api.Client
	model   string
	options map[string]any
}

// NewOllamaClient creates an Ollama client bound to one model.
func NewOllamaClient(model string, baseURL string, options map[string]any) (*OllamaClient, error) {
	// Custom Transport so long local generations are never cut off by the
	// HTTP client itself; the per-request context carries the real budget.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   0,
	}

	var client *api.Client
	var err error
	if baseURL != "" {
		u, perr := url.Parse(baseURL)
		if perr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", perr)
		}
		client = api.NewClient(u, httpClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Ollama client initialized", "model", model, "base_url", baseURL)

	return &OllamaClient{
		client:  client,
		model:   model,
		options: options,
	}, nil
}

// Model implements the llm.Completer interface.
func (o *OllamaClient) Model() string { return o.model }

// Complete implements llm.Completer via a single non-streaming chat call.
func (o *OllamaClient) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	apiMessages := make([]api.Message, 0, len(messages)+1)
	if systemPrompt != "" {
		apiMessages = append(apiMessages, api.Message{Role: llm.RoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		role := m.Role
		if role == llm.RoleTool {
			// Observations travel as user turns on the wire
			role = llm.RoleUser
		}
		apiMessages = append(apiMessages, api.Message{Role: role, Content: m.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: apiMessages,
		Options:  o.options,
		Stream:   &stream,
	}

	var sb strings.Builder
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", classify(err)
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: fmt.Errorf("empty completion from %s", o.model)}
	}
	return out, nil
}

// classify maps transport failures onto the engine's backend error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return &llm.BackendError{Kind: llm.BackendTimeout, Err: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host"):
		return &llm.BackendError{Kind: llm.BackendConnectionRefused, Err: err}
	default:
		return &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: err}
	}
}

// IsTransientError implements the llm.Completer interface.
func (o *OllamaClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()

	// 1. Connection related errors (Connection refused, reset)
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "connection reset") {
		return true
	}

	// 2. High load
	if strings.Contains(strings.ToLower(errMsg), "overloaded") {
		return true
	}

	return false
}
