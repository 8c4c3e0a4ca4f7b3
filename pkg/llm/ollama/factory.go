package ollama

import (
	"monarch/pkg/config"
	"monarch/pkg/llm"
)

// OllamaFactory handles creation of Ollama Clients
type OllamaFactory struct{}

// Create implements ProviderFactory
func (f *OllamaFactory) Create(cfg llm.ModelConfig, sys *config.SystemConfig) (llm.Completer, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" && sys != nil {
		baseURL = sys.OllamaDefaultURL
	}
	return NewOllamaClient(cfg.Model, baseURL, cfg.Options)
}

func init() {
	llm.RegisterProvider("ollama", &OllamaFactory{})
}
