package llm

import (
	"fmt"
	"log/slog"

	"monarch/pkg/config"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DelegateConfig extends ModelConfig with routing metadata for one
// specialist model in the "delegates" section of config.json.
type DelegateConfig struct {
	ModelConfig
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
	Default bool   `json:"default,omitempty"`
}

// NewFromConfig builds the decision client and the delegate set from the
// raw "decision" and "delegates" sections of config.json.
func NewFromConfig(rawDecision, rawDelegates jsoniter.RawMessage, system *config.SystemConfig) (Completer, *DelegateSet, error) {
	if len(rawDecision) == 0 {
		return nil, nil, fmt.Errorf("missing 'decision' config")
	}

	var decCfg ModelConfig
	if err := json.Unmarshal(rawDecision, &decCfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse 'decision' config: %w", err)
	}
	decision, err := buildClient(decCfg, system)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init decision client: %w", err)
	}
	slog.Info("Decision client ready", "provider", decCfg.Provider, "model", decCfg.Model)

	if len(rawDelegates) == 0 {
		return nil, nil, fmt.Errorf("missing 'delegates' config")
	}
	var delCfgs []DelegateConfig
	if err := json.Unmarshal(rawDelegates, &delCfgs); err != nil {
		return nil, nil, fmt.Errorf("failed to parse 'delegates' config: %w", err)
	}

	set := NewDelegateSet()
	for _, dc := range delCfgs {
		client, err := buildClient(dc.ModelConfig, system)
		if err != nil {
			slog.Warn("Skipping delegate", "name", dc.Name, "model", dc.Model, "error", err)
			continue
		}
		name := dc.Name
		if name == "" {
			name = dc.Model
		}
		d := Delegate{Name: name, Purpose: dc.Purpose, Client: client}
		if err := set.Add(d, dc.Default); err != nil {
			slog.Warn("Skipping delegate", "name", name, "error", err)
			continue
		}
		slog.Info("Delegate ready", "name", name, "provider", dc.Provider, "model", dc.Model, "default", dc.Default)
	}

	if set.Len() == 0 {
		return nil, nil, fmt.Errorf("no delegates could be initialized")
	}

	return decision, set, nil
}

func buildClient(cfg ModelConfig, system *config.SystemConfig) (Completer, error) {
	factory, ok := GetProviderFactory(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Provider)
	}
	return factory.Create(cfg, system)
}
