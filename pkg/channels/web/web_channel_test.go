package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"monarch/pkg/api"
	"monarch/pkg/llm"
	"monarch/pkg/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway captures the messages a channel hands back to the gateway core.
type fakeGateway struct {
	messages chan *api.UnifiedMessage
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{messages: make(chan *api.UnifiedMessage, 4)}
}

func (g *fakeGateway) OnMessage(channelID string, msg *api.UnifiedMessage) { g.messages <- msg }
func (g *fakeGateway) SendReply(session api.SessionContext, content string) error {
	return nil
}
func (g *fakeGateway) SendSignal(session api.SessionContext, signal string) error {
	return nil
}

func newTestChannel(t *testing.T) (*WebChannel, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWebChannel(WebConfig{}, db, nil, nil, time.Second), db
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketHonorsChatIDQueryParam(t *testing.T) {
	ch, db := newTestChannel(t)
	gw := newFakeGateway()

	require.NoError(t, db.SaveMessage(context.Background(), store.StoredMessage{
		ChatID: "project-x", Role: llm.RoleUser, Content: "resume here", CreatedAt: time.Now().UTC(),
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch.handleWebSocket(w, r, gw)
	}))
	defer srv.Close()

	conn := dialWS(t, srv, "?chat_id=project-x")

	// History for the requested chat arrives first.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type string                `json:"type"`
		Data []store.StoredMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "history", frame.Type)
	require.Len(t, frame.Data, 1)
	assert.Equal(t, "resume here", frame.Data[0].Content)

	// Messages inherit the chat from the connection.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	select {
	case msg := <-gw.messages:
		assert.Equal(t, "project-x", msg.Session.ChatID)
		assert.Equal(t, "hello", msg.Content)
		assert.NotEmpty(t, msg.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message reached the gateway")
	}
}

func TestWebSocketDefaultsToGlobalChat(t *testing.T) {
	ch, _ := newTestChannel(t)
	gw := newFakeGateway()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch.handleWebSocket(w, r, gw)
	}))
	defer srv.Close()

	conn := dialWS(t, srv, "")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hi")))

	select {
	case msg := <-gw.messages:
		assert.Equal(t, "global", msg.Session.ChatID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message reached the gateway")
	}

	// An explicit chat_id in the envelope still overrides per message.
	require.NoError(t, conn.WriteJSON(map[string]string{"text": "switch", "chat_id": "side"}))
	select {
	case msg := <-gw.messages:
		assert.Equal(t, "side", msg.Session.ChatID)
		assert.Equal(t, "switch", msg.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("no message reached the gateway")
	}
}
