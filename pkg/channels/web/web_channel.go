package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"monarch/pkg/api"
	"monarch/pkg/store"
	"monarch/pkg/tasks"
	"monarch/pkg/utils"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for decoupled UI
	},
}

// restUserPrefix marks synthetic sessions created by the synchronous REST
// chat endpoint so replies route to the waiting HTTP request instead of a
// websocket connection.
const restUserPrefix = "rest:"

type WebConfig struct {
	Port int `json:"port"` // Default: 8080
}

type IncomingMessage struct {
	Text   string `json:"text"`
	ChatID string `json:"chat_id"`
}

// SafeConn serializes websocket writes; gorilla connections do not allow
// concurrent writers.
type SafeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *SafeConn) WriteMessage(messageType int, data []byte) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.Conn.WriteMessage(messageType, data)
}

// WebChannel exposes the agent over a websocket plus a small REST API for
// history, traces, background tasks and configuration inspection.
type WebChannel struct {
	config       WebConfig
	server       *http.Server
	store        *store.DB
	tasks        *tasks.Runner
	configView   map[string]any
	replyTimeout time.Duration

	connections map[string]*SafeConn   // UserID -> WS connection
	waiters     map[string]chan string // REST UserID -> reply waiter
	mu          sync.RWMutex
}

func NewWebChannel(cfg WebConfig, db *store.DB, runner *tasks.Runner, configView map[string]any, replyTimeout time.Duration) *WebChannel {
	if replyTimeout <= 0 {
		replyTimeout = 2 * time.Minute
	}
	return &WebChannel{
		config:       cfg,
		store:        db,
		tasks:        runner,
		configView:   configView,
		replyTimeout: replyTimeout,
		connections:  make(map[string]*SafeConn),
		waiters:      make(map[string]chan string),
	}
}

func (c *WebChannel) ID() string {
	return "web"
}

func (c *WebChannel) Start(ctx api.ChannelContext) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c.handleWebSocket(w, r, ctx)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		c.handleChat(w, r, ctx)
	})
	mux.HandleFunc("/api/history", c.handleHistory)
	mux.HandleFunc("/api/trace", c.handleTrace)
	mux.HandleFunc("/api/tasks", c.handleTasks)
	mux.HandleFunc("/api/config", c.handleConfig)

	addr := fmt.Sprintf(":%d", c.config.Port)
	c.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	slog.Info("Web API listening", "port", c.config.Port)

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Web API server error", "error", err)
		}
	}()

	return nil
}

func (c *WebChannel) Stop() error {
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

// Send routes a reply either to a waiting REST request or to the user's
// websocket connection.
func (c *WebChannel) Send(session api.SessionContext, message string) error {
	if strings.HasPrefix(session.UserID, restUserPrefix) {
		c.mu.RLock()
		waiter, ok := c.waiters[session.UserID]
		c.mu.RUnlock()
		if !ok {
			return fmt.Errorf("rest request %s no longer waiting", session.UserID)
		}
		select {
		case waiter <- message:
		default:
		}
		return nil
	}

	c.mu.RLock()
	conn, ok := c.connections[session.UserID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("web user %s not connected", session.UserID)
	}

	payload, err := json.Marshal(map[string]string{"type": "message", "text": message})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// SendSignal implements the gateway.SignalingChannel interface.
// REST sessions have no UI state, so signals only reach websockets.
func (c *WebChannel) SendSignal(session api.SessionContext, signal string) error {
	if strings.HasPrefix(session.UserID, restUserPrefix) {
		return nil
	}

	c.mu.RLock()
	conn, ok := c.connections[session.UserID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("web user %s not connected", session.UserID)
	}

	jsonData, err := json.Marshal(map[string]string{
		"type":  "signal",
		"value": signal,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, jsonData)
}

func (c *WebChannel) handleWebSocket(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS upgrade failed", "error", err)
		return
	}

	conn := &SafeConn{Conn: rawConn}
	userID := r.RemoteAddr

	// A non-global chat can reconnect to its own history via ?chat_id=...
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = "global"
	}

	c.mu.Lock()
	c.connections[userID] = conn
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.connections, userID)
		c.mu.Unlock()
		conn.Close()
	}()

	// Push recent history on connect so the UI can restore the conversation.
	if msgs, err := c.store.ChatMessages(r.Context(), chatID, 50); err == nil && len(msgs) > 0 {
		historyJSON, err := json.Marshal(map[string]any{"type": "history", "data": msgs})
		if err != nil {
			slog.Error("Failed to marshal history", "error", err)
		} else {
			conn.WriteMessage(websocket.TextMessage, historyJSON)
		}
	}

	session := api.SessionContext{
		ChannelID: "web",
		UserID:    userID,
		ChatID:    chatID,
		Username:  "WebUser",
	}

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}

		content := string(msgBytes)
		msgSession := session

		// JSON envelopes may carry an explicit chat; bare text is accepted too.
		var incoming IncomingMessage
		if err := json.Unmarshal(msgBytes, &incoming); err == nil && incoming.Text != "" {
			content = incoming.Text
			if incoming.ChatID != "" {
				msgSession.ChatID = incoming.ChatID
			}
		}

		ctx.OnMessage(c.ID(), &api.UnifiedMessage{
			Session:   msgSession,
			Content:   content,
			RequestID: utils.NewRequestID(),
		})
	}
}

// handleChat is the synchronous REST entry point: it submits the message
// through the normal gateway path and blocks until the reply comes back.
func (c *WebChannel) handleChat(w http.ResponseWriter, r *http.Request, ctx api.ChannelContext) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Message string `json:"message"`
		ChatID  string `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if body.ChatID == "" {
		body.ChatID = "global"
	}

	requestID := utils.NewRequestID()
	userID := restUserPrefix + requestID
	waiter := make(chan string, 1)

	c.mu.Lock()
	c.waiters[userID] = waiter
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, userID)
		c.mu.Unlock()
	}()

	ctx.OnMessage(c.ID(), &api.UnifiedMessage{
		Session: api.SessionContext{
			ChannelID: "web",
			UserID:    userID,
			ChatID:    body.ChatID,
			Username:  "RestUser",
		},
		Content:   body.Message,
		RequestID: requestID,
	})

	select {
	case reply := <-waiter:
		c.writeJSON(w, map[string]any{"request_id": requestID, "reply": reply})
	case <-time.After(c.replyTimeout):
		http.Error(w, "timed out waiting for reply", http.StatusGatewayTimeout)
	case <-r.Context().Done():
	}
}

func (c *WebChannel) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		chatID = "global"
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := c.store.ChatMessages(r.Context(), chatID, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.writeJSON(w, map[string]any{"chat_id": chatID, "messages": msgs})
}

func (c *WebChannel) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		http.Error(w, "request_id is required", http.StatusBadRequest)
		return
	}

	events, err := c.store.TraceForRequest(r.Context(), requestID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.writeJSON(w, map[string]any{"request_id": requestID, "events": events})
}

func (c *WebChannel) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := c.store.ListTasks(r.Context(), 50)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		c.writeJSON(w, map[string]any{"tasks": list})

	case http.MethodPost:
		var body struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Description) == "" {
			http.Error(w, "description is required", http.StatusBadRequest)
			return
		}
		task, err := c.tasks.Submit(r.Context(), body.Description)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		c.writeJSON(w, task)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleConfig exposes a redacted configuration view for the UI.
func (c *WebChannel) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c.writeJSON(w, c.configView)
}

func (c *WebChannel) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
