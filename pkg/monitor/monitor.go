package monitor

import "time"

// MonitorMessage is one message observed on a channel, either inbound
// from a user or outbound from the agent.
type MonitorMessage struct {
	Timestamp   time.Time
	MessageType string // "USER" or "ASSISTANT"
	ChannelID   string
	Username    string
	Content     string
}

// Monitor observes the message flow across every channel.
type Monitor interface {
	// Start activates the monitor.
	Start() error

	// Stop shuts the monitor down.
	Stop() error

	// OnMessage receives and displays one monitoring message.
	OnMessage(msg MonitorMessage)
}
