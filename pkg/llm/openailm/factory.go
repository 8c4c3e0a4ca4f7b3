package openailm

import (
	"monarch/pkg/config"
	"monarch/pkg/llm"
)

// OpenAIFactory handles creation of OpenAI-compatible Clients
type OpenAIFactory struct{}

// Create implements ProviderFactory
func (f *OpenAIFactory) Create(cfg llm.ModelConfig, sys *config.SystemConfig) (llm.Completer, error) {
	return NewClient("openai", cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Options)
}

func init() {
	llm.RegisterProvider("openai", &OpenAIFactory{})
}
