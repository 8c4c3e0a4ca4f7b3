package gemini

import (
	"monarch/pkg/config"
	"monarch/pkg/llm"
)

// GeminiFactory handles creation of Gemini Clients
type GeminiFactory struct{}

// Create implements ProviderFactory
func (f *GeminiFactory) Create(cfg llm.ModelConfig, sys *config.SystemConfig) (llm.Completer, error) {
	return NewGeminiClient(cfg.APIKey, cfg.Model)
}

func init() {
	llm.RegisterProvider("gemini", &GeminiFactory{})
}
