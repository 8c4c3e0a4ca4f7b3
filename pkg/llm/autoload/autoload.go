// Package autoload registers all built-in LLM providers via side effects.
// Import it blank from main to populate the provider registry.
package autoload

import (
	_ "monarch/pkg/llm/gemini"
	_ "monarch/pkg/llm/ollama"
	_ "monarch/pkg/llm/openailm"
)
