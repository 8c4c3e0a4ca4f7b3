package llm

import "time"

// Conversation roles shared by the engine, the providers and the store.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation. Content is plain text; tool
// observations travel as their JSON encoding in a RoleTool message.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(role, text string) Message {
	return Message{
		Role:      role,
		Content:   text,
		Timestamp: time.Now().Unix(),
	}
}

// NewSystemMessage creates a system turn.
func NewSystemMessage(text string) Message { return NewMessage(RoleSystem, text) }

// NewUserMessage creates a user turn.
func NewUserMessage(text string) Message { return NewMessage(RoleUser, text) }

// NewAssistantMessage creates an assistant turn.
func NewAssistantMessage(text string) Message { return NewMessage(RoleAssistant, text) }

// NewToolMessage creates a tool observation turn.
func NewToolMessage(text string) Message { return NewMessage(RoleTool, text) }

// Window returns the last n messages of history. The original slice is
// returned unchanged when it already fits.
func Window(history []Message, n int) []Message {
	if n <= 0 || len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
