package handler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"monarch/pkg/api"
	"monarch/pkg/config"
	"monarch/pkg/llm"
	"monarch/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedEngine returns a canned result and records the request it saw.
type fixedEngine struct {
	result *api.Result
	req    api.Request
}

func (e *fixedEngine) Resolve(ctx context.Context, req api.Request) (*api.Result, error) {
	e.req = req
	return e.result, nil
}

// captureResponder records replies and signals, unblocking waiters when the
// reply arrives.
type captureResponder struct {
	replies chan string
	signals []string
}

func newCaptureResponder() *captureResponder {
	return &captureResponder{replies: make(chan string, 1)}
}

func (r *captureResponder) SendReply(session api.SessionContext, content string) error {
	r.replies <- content
	return nil
}

func (r *captureResponder) SendSignal(session api.SessionContext, signal string) error {
	r.signals = append(r.signals, signal)
	return nil
}

func TestOnMessageResolvesAndPersists(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "handler.db"))
	require.NoError(t, err)
	defer db.Close()

	engine := &fixedEngine{result: &api.Result{
		FinalAnswer: "42",
		Action:      api.ActionDirectResponse,
		ToolDetails: map[string]any{"tool": "echo"},
	}}
	responder := newCaptureResponder()

	h := NewChatHandler(engine, db, config.DefaultSystemConfig())
	h.SetResponder(responder)

	h.OnMessage(&api.UnifiedMessage{
		Session: api.SessionContext{ChannelID: "web", UserID: "u1", ChatID: "chat-9", Username: "tester"},
		Content: "what is the answer?",
	})

	select {
	case reply := <-responder.replies:
		assert.Equal(t, "42", reply)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply delivered")
	}

	assert.Equal(t, "chat-9", engine.req.ChatID)
	assert.Equal(t, "what is the answer?", engine.req.UserMessage)
	assert.NotEmpty(t, engine.req.RequestID)
	assert.Contains(t, responder.signals, "thinking")

	msgs, err := db.ChatMessages(context.Background(), "chat-9", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "42", msgs[0].Content)
	assert.Equal(t, api.ActionDirectResponse, msgs[0].AgentAction)
	assert.Contains(t, msgs[0].ToolDetails, "echo")
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
}

func TestOnMessageFeedsHistoryToEngine(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "handler.db"))
	require.NoError(t, err)
	defer db.Close()

	base := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, db.SaveMessage(context.Background(), store.StoredMessage{
		ChatID: "chat-1", Role: llm.RoleUser, Content: "earlier question", CreatedAt: base,
	}))
	require.NoError(t, db.SaveMessage(context.Background(), store.StoredMessage{
		ChatID: "chat-1", Role: llm.RoleAssistant, Content: "earlier answer", CreatedAt: base.Add(time.Second),
	}))

	engine := &fixedEngine{result: &api.Result{FinalAnswer: "ok", Action: api.ActionDirectResponse}}
	responder := newCaptureResponder()
	h := NewChatHandler(engine, db, config.DefaultSystemConfig())
	h.SetResponder(responder)

	h.OnMessage(&api.UnifiedMessage{
		Session: api.SessionContext{ChannelID: "web", ChatID: "chat-1"},
		Content: "follow-up",
	})

	select {
	case <-responder.replies:
	case <-time.After(2 * time.Second):
		t.Fatal("no reply delivered")
	}

	require.Len(t, engine.req.History, 2)
	assert.Equal(t, "earlier question", engine.req.History[0].Content)
	assert.Equal(t, "earlier answer", engine.req.History[1].Content)
}
