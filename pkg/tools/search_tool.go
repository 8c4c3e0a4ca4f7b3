package tools

import (
	"context"
	"fmt"
	"strings"

	"monarch/pkg/api"
)

// searchEntry is one canned document in the simulated search corpus.
type searchEntry struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// searchCorpus backs the simulated internet search. Matching is a plain
// case-insensitive substring check over title and snippet.
var searchCorpus = []searchEntry{
	{Title: "The Go Programming Language", Snippet: "Go is an open source programming language that makes it easy to build simple, reliable, and efficient software."},
	{Title: "Large language models explained", Snippet: "Large language models are neural networks trained on text corpora to predict the next token, enabling chat, summarization, and tool use."},
	{Title: "SQLite: small, fast, self-contained", Snippet: "SQLite is a C-language library that implements a small, fast, self-contained, full-featured SQL database engine."},
	{Title: "WebSocket protocol overview", Snippet: "The WebSocket protocol enables two-way communication between a client and a server over a single TCP connection."},
	{Title: "Agent architectures for task automation", Snippet: "Agent systems pair a decision model with tools and specialist delegates, looping until a final answer is produced."},
	{Title: "Ollama: run models locally", Snippet: "Ollama lets you run open large language models such as Mistral and DeepSeek on your own hardware."},
}

// InternetSearchTool simulates a web search against the canned corpus.
// It keeps the decision loop exercisable without network access.
type InternetSearchTool struct{}

func NewInternetSearchTool() *InternetSearchTool { return &InternetSearchTool{} }

func (t *InternetSearchTool) Name() string { return "internet_search" }

func (t *InternetSearchTool) Description() string {
	return "Search the web for a query and return the top results (simulated, offline)."
}

func (t *InternetSearchTool) Parameters() []api.Parameter {
	return []api.Parameter{
		{Name: "query", Type: api.ParamString, Description: "Search query.", Required: true},
	}
}

func (t *InternetSearchTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query must not be empty")
	}

	lower := strings.ToLower(query)
	var hits []searchEntry
	for _, e := range searchCorpus {
		if strings.Contains(strings.ToLower(e.Title), lower) || strings.Contains(strings.ToLower(e.Snippet), lower) {
			hits = append(hits, e)
			continue
		}
		// Fall back to matching any single query word
		for _, word := range strings.Fields(lower) {
			if strings.Contains(strings.ToLower(e.Title), word) || strings.Contains(strings.ToLower(e.Snippet), word) {
				hits = append(hits, e)
				break
			}
		}
	}

	if len(hits) == 0 {
		return fmt.Sprintf("No results found for %q.", query), nil
	}
	out, err := json.Marshal(hits)
	if err != nil {
		return "", fmt.Errorf("failed to encode search results: %w", err)
	}
	return string(out), nil
}
