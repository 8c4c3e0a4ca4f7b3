package llm

import (
	"monarch/pkg/config"
)

// ModelConfig describes one model endpoint in config.json.
type ModelConfig struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	APIKey   string         `json:"api_key,omitempty"`
	BaseURL  string         `json:"base_url,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// ProviderFactory builds a Completer for one configured model.
type ProviderFactory interface {
	Create(cfg ModelConfig, system *config.SystemConfig) (Completer, error)
}

// Global provider registry, populated by the provider packages' init()
// functions via the autoload blank imports.
var providerRegistry = make(map[string]ProviderFactory)

// RegisterProvider registers a Provider Factory.
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// GetProviderFactory retrieves a Provider Factory by name.
func GetProviderFactory(name string) (ProviderFactory, bool) {
	f, ok := providerRegistry[name]
	return f, ok
}
