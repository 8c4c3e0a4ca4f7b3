package handler

import (
	"context"
	"log/slog"
	"time"

	"monarch/pkg/api"
	"monarch/pkg/config"
	"monarch/pkg/llm"
	"monarch/pkg/store"
	"monarch/pkg/utils"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ChatHandler bridges the gateway and the agent engine: it persists the
// user turn, loads recent history, runs the engine, persists the outcome
// and routes the final answer back through the responder.
// It implements api.MessageProcessor and api.ResponderAware.
type ChatHandler struct {
	engine    api.AgentEngine
	store     *store.DB
	sysCfg    *config.SystemConfig
	responder api.MessageResponder
}

// NewChatHandler creates a handler. The responder is injected later by the
// gateway builder via SetResponder.
func NewChatHandler(engine api.AgentEngine, db *store.DB, sysCfg *config.SystemConfig) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		store:  db,
		sysCfg: sysCfg,
	}
}

// SetResponder implements api.ResponderAware.
func (h *ChatHandler) SetResponder(responder api.MessageResponder) {
	h.responder = responder
}

// OnMessage is the primary entry point for processing incoming user
// messages. Each message is resolved on its own goroutine so one slow
// backend never blocks the gateway.
func (h *ChatHandler) OnMessage(msg *api.UnifiedMessage) {
	if msg.RequestID == "" {
		msg.RequestID = utils.NewRequestID()
	}
	go h.process(msg)
}

func (h *ChatHandler) process(msg *api.UnifiedMessage) {
	start := time.Now()
	slog.Info("Message received",
		"channel", msg.Session.ChannelID, "user", msg.Session.Username,
		"chat_id", msg.Session.ChatID, "request_id", msg.RequestID)

	timeout := time.Duration(h.sysCfg.LLMTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Let the channel show a thinking indicator while the engine works.
	if err := h.responder.SendSignal(msg.Session, "thinking"); err != nil {
		slog.Debug("Thinking signal not delivered", "channel", msg.Session.ChannelID, "error", err)
	}

	chatID := msg.Session.ChatID

	history, err := h.store.RecentHistory(ctx, chatID, h.sysCfg.HistoryWindow)
	if err != nil {
		slog.Error("Failed to load history", "chat_id", chatID, "error", err)
		history = nil // Resolve without context rather than dropping the message
	}

	if err := h.store.SaveMessage(ctx, store.StoredMessage{
		ID:      msg.RequestID,
		ChatID:  chatID,
		Role:    llm.RoleUser,
		Content: msg.Content,
	}); err != nil {
		slog.Error("Failed to persist user turn", "request_id", msg.RequestID, "error", err)
	}

	result, err := h.engine.Resolve(ctx, api.Request{
		RequestID:   msg.RequestID,
		ChatID:      chatID,
		UserMessage: msg.Content,
		History:     history,
	})
	if err != nil {
		// Only cancellation reaches here; the timeout above is the usual cause.
		slog.Error("Resolve aborted", "request_id", msg.RequestID, "error", err)
		if rerr := h.responder.SendReply(msg.Session, "Request timed out, please try again."); rerr != nil {
			slog.Error("Failed to send timeout reply", "error", rerr)
		}
		return
	}

	toolDetails := ""
	if len(result.ToolDetails) > 0 {
		if b, merr := json.Marshal(result.ToolDetails); merr == nil {
			toolDetails = string(b)
		}
	}
	if err := h.store.SaveMessage(context.Background(), store.StoredMessage{
		ChatID:      chatID,
		Role:        llm.RoleAssistant,
		Content:     result.FinalAnswer,
		AgentAction: result.Action,
		ToolDetails: toolDetails,
	}); err != nil {
		slog.Error("Failed to persist assistant turn", "request_id", msg.RequestID, "error", err)
	}

	if err := h.responder.SendReply(msg.Session, result.FinalAnswer); err != nil {
		slog.Error("Failed to send reply", "channel", msg.Session.ChannelID, "error", err)
	}

	slog.Info("Agent loop finished",
		"request_id", msg.RequestID, "action", result.Action,
		"trace_events", len(result.Trace), "duration", time.Since(start).String())
}
