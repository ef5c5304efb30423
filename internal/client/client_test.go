// ABOUTME: Client tests against a real server - CRUD, streaming, reconciliation
// ABOUTME: Full stack: HTTP API, SQLite store, scripted provider

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/braid/internal/api"
	"github.com/2389/braid/internal/auth"
	"github.com/2389/braid/internal/chat"
	"github.com/2389/braid/internal/provider"
	"github.com/2389/braid/internal/store"
)

// newTestStack spins up a real server over a temp SQLite store and returns
// a client authenticated as owner-1.
func newTestStack(t *testing.T, p provider.Provider) (*Client, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	if p == nil {
		p = &provider.ScriptedProvider{Tokens: []string{"ok"}}
	}
	chatSvc := chat.New(st, p, chat.Defaults{Model: "gpt-4o-mini", Temperature: 0.7}, nil)
	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	srv := httptest.NewServer(api.NewServer(st, chatSvc, verifier, 15*time.Second, nil).Routes())
	t.Cleanup(srv.Close)

	token, err := verifier.Generate("owner-1", time.Hour)
	require.NoError(t, err)
	return New(srv.URL, token), st
}

func TestClient_ConversationCRUD(t *testing.T) {
	c, _ := newTestStack(t, nil)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, CreateConversationRequest{Title: "My chat"})
	require.NoError(t, err)
	assert.Equal(t, "My chat", conv.Title)

	got, err := c.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	newTitle := "Renamed"
	patched, err := c.UpdateConversation(ctx, conv.ID, ConversationPatch{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", patched.Title)

	page, err := c.ListConversations(ctx, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Conversations, 1)
	assert.Equal(t, 1, page.TotalCount)

	require.NoError(t, c.DeleteConversation(ctx, conv.ID))

	_, err = c.GetConversation(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_SideThreadAndMessages(t *testing.T) {
	c, _ := newTestStack(t, nil)
	ctx := context.Background()

	parent, err := c.CreateConversation(ctx, CreateConversationRequest{Title: "Parent"})
	require.NoError(t, err)
	anchor, err := c.CreateMessage(ctx, parent.ID, "assistant", "the quick brown fox")
	require.NoError(t, err)

	child, err := c.CreateSideThread(ctx, SideThreadRequest{
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                4,
		End:                  9,
		SelectedText:         "quick",
	})
	require.NoError(t, err)
	assert.True(t, child.IsSideThread())
	assert.Equal(t, "Side: quick", child.Title)

	page, err := c.ListMessages(ctx, parent.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Len(t, page.Messages[0].Annotations, 1)
	assert.Equal(t, child.ID, page.Messages[0].Annotations[0].ChildConversationID)
}

func TestClient_ValidationErrorMapping(t *testing.T) {
	c, _ := newTestStack(t, nil)
	ctx := context.Background()

	_, err := c.CreateMessage(ctx, "", "user", "hi")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = c.ListMessages(ctx, "missing-conversation", 1, 20)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconcile_CompletedPersistsAndRefetches(t *testing.T) {
	c, st := newTestStack(t, &provider.ScriptedProvider{Tokens: []string{"Hel", "lo"}})
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, CreateConversationRequest{Title: "Chat"})
	require.NoError(t, err)

	session, err := c.SendMessage(ctx, conv.ID, "hi")
	require.NoError(t, err)
	require.NoError(t, session.Wait(ctx))
	require.Equal(t, StateCompleted, session.State())

	page, err := c.Reconcile(ctx, session, 20)
	require.NoError(t, err)

	// User message then the persisted assistant reply, both with server ids
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "user", page.Messages[0].Role)
	assert.Equal(t, "hi", page.Messages[0].Content)
	assert.Equal(t, "assistant", page.Messages[1].Role)
	assert.Equal(t, "Hello", page.Messages[1].Content)
	assert.NotEmpty(t, page.Messages[1].ID)

	msgs, err := st.ListAllMessages(ctx, conv.ID, "owner-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestReconcile_AnonymousUsesDoneConversationID(t *testing.T) {
	c, _ := newTestStack(t, &provider.ScriptedProvider{Tokens: []string{"Hi"}})
	ctx := context.Background()

	session, err := c.StartStream(ctx, ChatStreamRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hello there"}},
	})
	require.NoError(t, err)
	require.NoError(t, session.Wait(ctx))

	require.NotEmpty(t, session.ConversationID())

	page, err := c.Reconcile(ctx, session, 20)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "assistant", page.Messages[0].Role)
	assert.Equal(t, "Hi", page.Messages[0].Content)
}

func TestReconcile_ErroredDiscards(t *testing.T) {
	c, st := newTestStack(t, &provider.ScriptedProvider{
		Tokens:    []string{"par"},
		Err:       errors.New("upstream exploded"),
		FailAfter: 1,
	})
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, CreateConversationRequest{Title: "Chat"})
	require.NoError(t, err)
	_, err = c.CreateMessage(ctx, conv.ID, "user", "hi")
	require.NoError(t, err)

	session, err := c.StartStream(ctx, ChatStreamRequest{ConversationID: conv.ID})
	require.NoError(t, err)
	require.NoError(t, session.Wait(ctx))
	require.Equal(t, StateErrored, session.State())

	_, err = c.Reconcile(ctx, session, 20)
	assert.ErrorIs(t, err, ErrStream)

	// Nothing was persisted for the failed stream
	msgs, err := st.ListAllMessages(ctx, conv.ID, "owner-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestReconcile_StoppedPersistsPartialText(t *testing.T) {
	// Real store behind the API, but a hand-rolled slow stream endpoint so
	// the session can be stopped mid-flight.
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	chatSvc := chat.New(st, &provider.ScriptedProvider{}, chat.Defaults{Model: "m", Temperature: 0.7}, nil)
	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	apiRoutes := api.NewServer(st, chatSvc, verifier, 15*time.Second, nil).Routes()

	mux := http.NewServeMux()
	mux.Handle("/", apiRoutes)
	mux.Handle("POST /api/chat/stream", sseHandler(t, 5*time.Millisecond, repeatFrames(tokenFrame("x"), 200)...))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	token, err := verifier.Generate("owner-1", time.Hour)
	require.NoError(t, err)
	c := New(srv.URL, token)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, CreateConversationRequest{Title: "Chat"})
	require.NoError(t, err)

	session, err := c.StartStream(ctx, ChatStreamRequest{ConversationID: conv.ID})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return session.Text() != "" },
		2*time.Second, 5*time.Millisecond)
	session.Stop()
	require.Equal(t, StateStopped, session.State())
	partial := session.Text()
	require.NotEmpty(t, partial)

	page, err := c.Reconcile(ctx, session, 20)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "assistant", page.Messages[0].Role)
	assert.Equal(t, partial, page.Messages[0].Content)
}

func repeatFrames(frame string, n int) []string {
	frames := make([]string, n)
	for i := range frames {
		frames[i] = frame
	}
	return frames
}
