package gateway

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"monarch/pkg/config"
	"monarch/pkg/monitor"
)

// GatewayManager owns every registered channel and routes messages between
// them and the core handler. It implements api.ChannelContext.
type GatewayManager struct {
	channels      map[string]Channel
	msgHandler    MessageHandler
	monitor       monitor.Monitor
	channelBuffer int
	mu            sync.RWMutex
}

// NewGatewayManager creates an empty manager with default buffering.
func NewGatewayManager() *GatewayManager {
	return &GatewayManager{
		channels:      make(map[string]Channel),
		channelBuffer: 100,
	}
}

// WithSystemConfig applies engine-level technical parameters.
func (g *GatewayManager) WithSystemConfig(cfg *config.SystemConfig) {
	if cfg != nil && cfg.InternalChannelBuffer > 0 {
		g.channelBuffer = cfg.InternalChannelBuffer
	}
}

// SetMessageHandler installs the core message processing logic.
func (g *GatewayManager) SetMessageHandler(handler MessageHandler) {
	g.msgHandler = handler
}

// SetMonitor installs a monitor that observes all traffic.
func (g *GatewayManager) SetMonitor(m monitor.Monitor) {
	g.monitor = m
}

// Register adds a channel to the gateway.
func (g *GatewayManager) Register(c Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[c.ID()] = c
}

// GetChannel retrieves a registered channel by ID.
func (g *GatewayManager) GetChannel(id string) (Channel, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.channels[id]
	return c, ok
}

// StartAll starts every registered channel, passing itself as the context.
func (g *GatewayManager) StartAll() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Starting channel", "channel", id)
		if err := c.Start(g); err != nil {
			return fmt.Errorf("failed to start channel %s: %w", id, err)
		}
	}
	return nil
}

// StopAll stops every registered channel.
func (g *GatewayManager) StopAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for id, c := range g.channels {
		slog.Info("Stopping channel", "channel", id)
		if err := c.Stop(); err != nil {
			slog.Warn("Error stopping channel", "channel", id, "error", err)
		}
	}
}

// SendReply routes an assistant reply back to the originating channel and
// broadcasts it to the monitor.
func (g *GatewayManager) SendReply(session SessionContext, content string) error {
	slog.Debug("Gateway reply", "channel", session.ChannelID, "username", session.Username)

	if g.monitor != nil {
		g.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   time.Now(),
			MessageType: "ASSISTANT",
			ChannelID:   session.ChannelID,
			Username:    session.Username,
			Content:     content,
		})
	}

	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}
	return c.Send(session, content)
}

// SendSignal sends a control signal (e.g. thinking) to the channel.
// Channels without signal support ignore it silently.
func (g *GatewayManager) SendSignal(session SessionContext, signal string) error {
	c, ok := g.GetChannel(session.ChannelID)
	if !ok {
		return fmt.Errorf("channel %s not found", session.ChannelID)
	}

	if sc, ok := c.(SignalingChannel); ok {
		slog.Debug("Gateway signal", "channel", session.ChannelID, "signal", signal)
		return sc.SendSignal(session, signal)
	}
	return nil
}

// OnMessage implements the ChannelContext interface, receiving inbound
// messages from channels and forwarding them to the handler.
func (g *GatewayManager) OnMessage(channelID string, msg *UnifiedMessage) {
	slog.Info("Gateway received message",
		"channel", channelID, "username", msg.Session.Username, "user_id", msg.Session.UserID)

	if g.monitor != nil {
		g.monitor.OnMessage(monitor.MonitorMessage{
			Timestamp:   time.Now(),
			MessageType: "USER",
			ChannelID:   channelID,
			Username:    msg.Session.Username,
			Content:     msg.Content,
		})
	}

	if g.msgHandler != nil {
		g.msgHandler(msg)
	} else {
		slog.Warn("No message handler set, dropping message", "channel", channelID)
	}
}
