package channels

import (
	"log/slog"

	"monarch/pkg/gateway"

	jsoniter "github.com/json-iterator/go"
)

// BuildFromConfig resolves the configured channels into concrete instances.
// Unknown channel types and failed constructions are logged and skipped so
// one bad channel never blocks the rest.
func BuildFromConfig(configs map[string]jsoniter.RawMessage, deps Deps) []gateway.Channel {
	var out []gateway.Channel
	for name, rawConfig := range configs {
		factory, ok := GetChannelFactory(name)
		if !ok {
			slog.Warn("Unknown channel type", "name", name)
			continue
		}

		channel, err := factory.Create(rawConfig, deps)
		if err != nil {
			slog.Error("Failed to create channel", "name", name, "error", err)
			continue
		}
		if channel == nil {
			continue
		}

		out = append(out, channel)
		slog.Info("Channel built", "name", name)
	}
	return out
}
