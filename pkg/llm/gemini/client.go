package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"monarch/pkg/llm"

	"google.golang.org/genai"
)

// GeminiClient Google Gemini API client
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini client with a single model and API key.
func NewGeminiClient(apiKey string, model string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Model implements the llm.Completer interface.
func (g *GeminiClient) Model() string { return g.model }

// Complete implements llm.Completer via one GenerateContent call.
func (g *GeminiClient) Complete(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
	contents, systemInstruction := g.convertMessages(systemPrompt, messages)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: fmt.Errorf("no candidates returned by %s", g.model)}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: fmt.Errorf("empty completion from %s", g.model)}
	}
	return out, nil
}

// convertMessages converts the message list to GenAI format. System turns
// are folded into the SystemInstruction; Gemini has no system role.
func (g *GeminiClient) convertMessages(systemPrompt string, messages []llm.Message) ([]*genai.Content, *genai.Content) {
	systemText := systemPrompt
	var contents []*genai.Content

	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if systemText != "" {
				systemText += "\n"
			}
			systemText += m.Content
			continue
		}

		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	var systemInstruction *genai.Content
	if systemText != "" {
		systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemText}}}
	}
	return contents, systemInstruction
}

// classify maps API failures onto the engine's backend error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return &llm.BackendError{Kind: llm.BackendTimeout, Err: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host"):
		return &llm.BackendError{Kind: llm.BackendConnectionRefused, Err: err}
	default:
		return &llm.BackendError{Kind: llm.BackendInvalidResponse, Err: err}
	}
}

// IsTransientError implements the llm.Completer interface.
func (g *GeminiClient) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()

	// 1. Google API common 503 Service Unavailable / Overloaded
	if strings.Contains(errMsg, "503") || strings.Contains(strings.ToLower(errMsg), "overloaded") {
		return true
	}

	// 2. 429 Too Many Requests (Rate Limit)
	if strings.Contains(errMsg, "429") || strings.Contains(strings.ToLower(errMsg), "resource exhausted") {
		return true
	}

	// 3. 500 Internal Error (Occasional Google Gemini crashes)
	if strings.Contains(errMsg, "500") || strings.Contains(strings.ToLower(errMsg), "internal error") {
		return true
	}

	return false
}
