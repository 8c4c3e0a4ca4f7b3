package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"monarch/pkg/api"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxQueryMatches caps how many matching lines the report carries.
const maxQueryMatches = 10

// DocumentAnalysisTool computes basic statistics over a document and,
// when a query is given, extracts the lines mentioning it. The document
// comes either inline or from a workspace file.
type DocumentAnalysisTool struct {
	ws *Workspace
}

func NewDocumentAnalysisTool(ws *Workspace) *DocumentAnalysisTool {
	return &DocumentAnalysisTool{ws: ws}
}

func (t *DocumentAnalysisTool) Name() string { return "document_analysis" }

func (t *DocumentAnalysisTool) Description() string {
	return "Analyze a document: word/line/character counts, plus the lines matching an optional query. Provide either 'content' or 'filename'."
}

func (t *DocumentAnalysisTool) Parameters() []api.Parameter {
	return []api.Parameter{
		{Name: "content", Type: api.ParamString, Description: "Document text to analyze directly.", Required: false},
		{Name: "filename", Type: api.ParamString, Description: "Workspace file to analyze when 'content' is not given.", Required: false},
		{Name: "query", Type: api.ParamString, Description: "Optional keyword to locate inside the document.", Required: false},
	}
}

func (t *DocumentAnalysisTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	if content == "" {
		filename, _ := args["filename"].(string)
		if filename == "" {
			return "", fmt.Errorf("either 'content' or 'filename' must be provided")
		}
		path, err := t.ws.ResolvePath(filename)
		if err != nil {
			return "", err
		}
		data, err := readWorkspaceFile(path, filename)
		if err != nil {
			return "", err
		}
		content = data
	}

	lines := strings.Split(content, "\n")
	report := map[string]any{
		"words":      len(strings.Fields(content)),
		"lines":      len(lines),
		"characters": utf8.RuneCountInString(content),
	}

	if query, _ := args["query"].(string); query != "" {
		matches := []string{}
		lower := strings.ToLower(query)
		for i, line := range lines {
			if strings.Contains(strings.ToLower(line), lower) {
				matches = append(matches, fmt.Sprintf("%d: %s", i+1, strings.TrimSpace(line)))
				if len(matches) >= maxQueryMatches {
					break
				}
			}
		}
		report["query"] = query
		report["matches"] = matches
	}

	out, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis report: %w", err)
	}
	return string(out), nil
}
