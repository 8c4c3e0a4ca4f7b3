package web

import (
	"fmt"
	"time"

	"monarch/pkg/channels"
	"monarch/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// WebFactory builds the web channel from its raw configuration block.
type WebFactory struct{}

// Create implements channels.ChannelFactory.
func (f *WebFactory) Create(rawConfig jsoniter.RawMessage, deps channels.Deps) (gateway.Channel, error) {
	pCfg := WebConfig{Port: 8080}
	if err := json.Unmarshal(rawConfig, &pCfg); err != nil {
		return nil, fmt.Errorf("failed to parse web config: %w", err)
	}

	configView := map[string]any{}
	if deps.Config != nil {
		names := make([]string, 0, len(deps.Config.Channels))
		for name := range deps.Config.Channels {
			names = append(names, name)
		}
		configView["channels"] = names
		configView["workspace"] = deps.Config.Workspace
		configView["store_path"] = deps.Config.StorePath
	}

	replyTimeout := time.Duration(deps.System.LLMTimeoutMs) * time.Millisecond
	return NewWebChannel(pCfg, deps.Store, deps.Tasks, configView, replyTimeout), nil
}

func init() {
	channels.RegisterChannel("web", &WebFactory{})
}
