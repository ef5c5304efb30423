// ABOUTME: Tests for the chat service streaming and context assembly
// ABOUTME: Uses a real SQLite store and a scripted provider

package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/braid/internal/provider"
	"github.com/2389/braid/internal/store"
)

func newTestService(t *testing.T, p *provider.ScriptedProvider) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := New(st, p, Defaults{Model: "gpt-4o-mini", Temperature: 0.7}, nil)
	return svc, st
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d so far", len(out))
		}
	}
}

func seedConversation(t *testing.T, st store.Store, ownerID string) *store.Conversation {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	conv := &store.Conversation{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       "Seeded",
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, st.CreateConversation(context.Background(), conv))
	return conv
}

func seedMessage(t *testing.T, st store.Store, conv *store.Conversation, role, content string, at time.Time) *store.Message {
	t.Helper()
	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		OwnerID:        conv.OwnerID,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
	require.NoError(t, st.CreateMessage(context.Background(), msg))
	return msg
}

func TestSend_AnonymousStreamsAndCreatesConversation(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"Hel", "lo"}}
	svc, st := newTestService(t, p)

	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:  "owner-1",
		Messages: []IncomingMessage{{Role: store.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ConversationID)

	events := collect(t, resp.Events)
	require.Len(t, events, 3)
	assert.Equal(t, EventToken, events[0].Type)
	assert.Equal(t, "Hel", events[0].Token)
	assert.Equal(t, EventToken, events[1].Type)
	assert.Equal(t, "lo", events[1].Token)
	assert.Equal(t, EventDone, events[2].Type)
	assert.Equal(t, resp.ConversationID, events[2].ConversationID)

	conv, err := st.GetConversation(context.Background(), resp.ConversationID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", conv.Title)
	assert.Equal(t, "gpt-4o-mini", conv.Model)

	// Streaming persists nothing but the conversation record
	msgs, err := st.ListAllMessages(context.Background(), conv.ID, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.Len(t, p.Requests, 1)
	require.Len(t, p.Requests[0].Messages, 1)
	assert.Equal(t, "hi", p.Requests[0].Messages[0].Content)
}

func TestSend_AnonymousRequiresMessages(t *testing.T) {
	svc, _ := newTestService(t, &provider.ScriptedProvider{})

	_, err := svc.Send(context.Background(), &SendRequest{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestSend_UnknownModeRejected(t *testing.T) {
	svc, st := newTestService(t, &provider.ScriptedProvider{})
	conv := seedConversation(t, st, "owner-1")

	_, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: conv.ID,
		Mode:           "rewind",
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestSend_InvalidRoleRejected(t *testing.T) {
	svc, _ := newTestService(t, &provider.ScriptedProvider{})

	_, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:  "owner-1",
		Messages: []IncomingMessage{{Role: "robot", Content: "beep"}},
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestSend_UnknownConversation(t *testing.T) {
	svc, _ := newTestService(t, &provider.ScriptedProvider{})

	_, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: "missing",
		Messages:       []IncomingMessage{{Role: store.RoleUser, Content: "hi"}},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSend_ExistingConversationAssemblesHistory(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"ok"}}
	svc, st := newTestService(t, p)

	conv := seedConversation(t, st, "owner-1")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	seedMessage(t, st, conv, store.RoleUser, "first question", base)
	seedMessage(t, st, conv, store.RoleAssistant, "first answer", base.Add(time.Second))

	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: conv.ID,
		Messages:       []IncomingMessage{{Role: store.RoleUser, Content: "follow-up"}},
	})
	require.NoError(t, err)
	collect(t, resp.Events)

	require.Len(t, p.Requests, 1)
	got := p.Requests[0].Messages
	require.Len(t, got, 3)
	assert.Equal(t, "first question", got[0].Content)
	assert.Equal(t, "first answer", got[1].Content)
	assert.Equal(t, "follow-up", got[2].Content)
}

func TestSend_DuplicateTailMessageNotDoubled(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"ok"}}
	svc, st := newTestService(t, p)

	conv := seedConversation(t, st, "owner-1")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	seedMessage(t, st, conv, store.RoleUser, "already persisted", base)

	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: conv.ID,
		Messages:       []IncomingMessage{{Role: store.RoleUser, Content: "already persisted"}},
	})
	require.NoError(t, err)
	collect(t, resp.Events)

	require.Len(t, p.Requests, 1)
	require.Len(t, p.Requests[0].Messages, 1)
	assert.Equal(t, "already persisted", p.Requests[0].Messages[0].Content)
}

func TestSend_SideThreadIncludesParentContext(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"ok"}}
	svc, st := newTestService(t, p)
	ctx := context.Background()

	parent := seedConversation(t, st, "owner-1")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	seedMessage(t, st, parent, store.RoleUser, "parent question", base)
	anchor := seedMessage(t, st, parent, store.RoleAssistant, "the quick brown fox", base.Add(time.Second))
	// Messages after the anchor must not leak into the side thread
	seedMessage(t, st, parent, store.RoleUser, "later parent turn", base.Add(2*time.Second))

	child, err := svc.CreateSideThread(ctx, &SideThreadRequest{
		OwnerID:              "owner-1",
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                4,
		End:                  9,
		SelectedText:         "quick",
	})
	require.NoError(t, err)

	resp, err := svc.Send(ctx, &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: child.ID,
	})
	require.NoError(t, err)
	collect(t, resp.Events)

	require.Len(t, p.Requests, 1)
	got := p.Requests[0].Messages
	require.Len(t, got, 3)
	assert.Equal(t, "parent question", got[0].Content)
	assert.Equal(t, "the quick brown fox", got[1].Content)
	assert.Equal(t, "Discuss this: quick", got[2].Content)
}

func TestSend_RegenerateDropsTrailingAssistant(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"ok"}}
	svc, st := newTestService(t, p)

	conv := seedConversation(t, st, "owner-1")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	seedMessage(t, st, conv, store.RoleUser, "question", base)
	seedMessage(t, st, conv, store.RoleAssistant, "stale answer", base.Add(time.Second))

	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: conv.ID,
		Mode:           ModeRegenerate,
	})
	require.NoError(t, err)
	collect(t, resp.Events)

	require.Len(t, p.Requests, 1)
	got := p.Requests[0].Messages
	require.Len(t, got, 1)
	assert.Equal(t, "question", got[0].Content)
}

func TestSend_ContinueKeepsTrailingAssistant(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"ok"}}
	svc, st := newTestService(t, p)

	conv := seedConversation(t, st, "owner-1")
	base := time.Now().UTC().Truncate(time.Second).Add(-time.Minute)
	seedMessage(t, st, conv, store.RoleUser, "question", base)
	seedMessage(t, st, conv, store.RoleAssistant, "partial answer", base.Add(time.Second))

	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: conv.ID,
		Mode:           ModeContinue,
	})
	require.NoError(t, err)
	collect(t, resp.Events)

	require.Len(t, p.Requests, 1)
	got := p.Requests[0].Messages
	require.Len(t, got, 2)
	assert.Equal(t, "partial answer", got[1].Content)
}

func TestSend_ProviderFailureBecomesErrorEvent(t *testing.T) {
	p := &provider.ScriptedProvider{
		Tokens:    []string{"par", "tial"},
		Err:       errors.New("upstream exploded"),
		FailAfter: 2,
	}
	svc, _ := newTestService(t, p)

	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:  "owner-1",
		Messages: []IncomingMessage{{Role: store.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	events := collect(t, resp.Events)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Contains(t, last.Message, "upstream exploded")
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, EventToken, ev.Type)
	}
}

func TestSend_RequestOverridesModelAndTemperature(t *testing.T) {
	p := &provider.ScriptedProvider{Tokens: []string{"ok"}}
	svc, st := newTestService(t, p)

	conv := seedConversation(t, st, "owner-1")
	base := time.Now().UTC().Truncate(time.Second)
	seedMessage(t, st, conv, store.RoleUser, "question", base)

	temp := 0.1
	resp, err := svc.Send(context.Background(), &SendRequest{
		OwnerID:        "owner-1",
		ConversationID: conv.ID,
		Model:          "gpt-4o",
		Temperature:    &temp,
	})
	require.NoError(t, err)
	collect(t, resp.Events)

	require.Len(t, p.Requests, 1)
	assert.Equal(t, "gpt-4o", p.Requests[0].Model)
	assert.InDelta(t, 0.1, p.Requests[0].Temperature, 1e-9)
}

func TestCreateSideThread(t *testing.T) {
	svc, st := newTestService(t, &provider.ScriptedProvider{})
	ctx := context.Background()

	parent := seedConversation(t, st, "owner-1")
	anchor := seedMessage(t, st, parent, store.RoleAssistant, "the quick brown fox", time.Now().UTC().Truncate(time.Second))

	child, err := svc.CreateSideThread(ctx, &SideThreadRequest{
		OwnerID:              "owner-1",
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                4,
		End:                  9,
		SelectedText:         "quick",
	})
	require.NoError(t, err)

	assert.True(t, child.IsSideThread())
	assert.Equal(t, "Side: quick", child.Title)
	assert.Equal(t, parent.Model, child.Model)

	// Annotation lands on the anchor message
	msg, err := st.GetMessage(ctx, anchor.ID, "owner-1")
	require.NoError(t, err)
	require.Len(t, msg.Annotations, 1)
	assert.Equal(t, store.ButtonAnnotation{Start: 4, End: 9, ChildConversationID: child.ID}, msg.Annotations[0])

	// Seed message quotes the selection
	msgs, err := st.ListAllMessages(ctx, child.ID, "owner-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, "Discuss this: quick", msgs[0].Content)
}

func TestCreateSideThread_BadRangeLeavesNothingBehind(t *testing.T) {
	svc, st := newTestService(t, &provider.ScriptedProvider{})
	ctx := context.Background()

	parent := seedConversation(t, st, "owner-1")
	anchor := seedMessage(t, st, parent, store.RoleAssistant, "short", time.Now().UTC().Truncate(time.Second))

	_, err := svc.CreateSideThread(ctx, &SideThreadRequest{
		OwnerID:              "owner-1",
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                0,
		End:                  99,
		SelectedText:         "way too long",
	})
	assert.ErrorIs(t, err, store.ErrValidation)

	// No annotation and no dangling child link on the anchor
	msg, err := st.GetMessage(ctx, anchor.ID, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, msg.Annotations)
}

// seedFailStore fails inserts of side-thread seed messages while recording
// the child conversation id, so tests can check the cleanup path.
type seedFailStore struct {
	store.Store
	childID string
}

func (s *seedFailStore) CreateConversation(ctx context.Context, conv *store.Conversation) error {
	if conv.ParentConversationID != nil {
		s.childID = conv.ID
	}
	return s.Store.CreateConversation(ctx, conv)
}

func (s *seedFailStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	if strings.HasPrefix(msg.Content, "Discuss this:") {
		return errors.New("disk full")
	}
	return s.Store.CreateMessage(ctx, msg)
}

func TestCreateSideThread_SeedFailureLeavesNothingBehind(t *testing.T) {
	_, st := newTestService(t, &provider.ScriptedProvider{})
	failing := &seedFailStore{Store: st}
	svc := New(failing, &provider.ScriptedProvider{}, Defaults{Model: "gpt-4o-mini", Temperature: 0.7}, nil)
	ctx := context.Background()

	parent := seedConversation(t, st, "owner-1")
	anchor := seedMessage(t, st, parent, store.RoleAssistant, "the quick brown fox", time.Now().UTC().Truncate(time.Second))

	_, err := svc.CreateSideThread(ctx, &SideThreadRequest{
		OwnerID:              "owner-1",
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                4,
		End:                  9,
		SelectedText:         "quick",
	})
	require.Error(t, err)

	// The half-created child is deleted again
	require.NotEmpty(t, failing.childID)
	_, err = st.GetConversation(ctx, failing.childID, "owner-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// And the anchor never got an annotation pointing at it
	msg, err := st.GetMessage(ctx, anchor.ID, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, msg.Annotations)
}

func TestCreateSideThread_AnchorFromOtherConversation(t *testing.T) {
	svc, st := newTestService(t, &provider.ScriptedProvider{})
	ctx := context.Background()

	parent := seedConversation(t, st, "owner-1")
	other := seedConversation(t, st, "owner-1")
	anchor := seedMessage(t, st, other, store.RoleAssistant, "elsewhere", time.Now().UTC().Truncate(time.Second))

	_, err := svc.CreateSideThread(ctx, &SideThreadRequest{
		OwnerID:              "owner-1",
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                0,
		End:                  4,
		SelectedText:         "else",
	})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestCreateSideThread_ForeignOwner(t *testing.T) {
	svc, st := newTestService(t, &provider.ScriptedProvider{})
	ctx := context.Background()

	parent := seedConversation(t, st, "alice")
	anchor := seedMessage(t, st, parent, store.RoleAssistant, "private", time.Now().UTC().Truncate(time.Second))

	_, err := svc.CreateSideThread(ctx, &SideThreadRequest{
		OwnerID:              "bob",
		ParentConversationID: parent.ID,
		ParentMessageID:      anchor.ID,
		Start:                0,
		End:                  4,
		SelectedText:         "priv",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
