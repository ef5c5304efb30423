// ABOUTME: Reconciliation - persists a finished stream's text and refetches history
// ABOUTME: The streamed buffer is provisional; the paginated listing is the truth

package client

import (
	"context"
	"fmt"
)

// Reconcile settles a terminal session against persisted history: completed
// and stopped sessions with text get it persisted as an assistant message,
// then page 1 of the conversation is refetched so the caller can swap its
// provisional buffer for server-identified messages. Errored sessions are
// discarded and their stream error returned.
func (c *Client) Reconcile(ctx context.Context, session *Session, pageSize int) (*MessagePage, error) {
	if pageSize <= 0 {
		pageSize = 20
	}

	state := session.State()
	if !state.terminal() {
		return nil, fmt.Errorf("cannot reconcile session in state %q", state)
	}
	if state == StateErrored {
		return nil, session.Err()
	}

	conversationID := session.ConversationID()
	if conversationID == "" {
		return nil, fmt.Errorf("%w: session has no conversation", ErrStream)
	}

	if text := session.Text(); text != "" {
		if _, err := c.CreateMessage(ctx, conversationID, "assistant", text); err != nil {
			return nil, fmt.Errorf("persisting assistant message: %w", err)
		}
	}

	page, err := c.ListMessages(ctx, conversationID, 1, pageSize)
	if err != nil {
		return nil, fmt.Errorf("refetching history: %w", err)
	}
	return page, nil
}

// SendMessage persists the user's message and starts the completion stream
// for it in one call. The returned session reconciles the assistant half.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*Session, error) {
	if _, err := c.CreateMessage(ctx, conversationID, "user", content); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}
	return c.StartStream(ctx, ChatStreamRequest{
		ConversationID: conversationID,
		Messages:       []ChatMessage{{Role: "user", Content: content}},
	})
}

// Regenerate streams a replacement for the conversation's last assistant
// message. The caller reconciles the result as usual.
func (c *Client) Regenerate(ctx context.Context, conversationID string) (*Session, error) {
	return c.StartStream(ctx, ChatStreamRequest{
		ConversationID: conversationID,
		Mode:           "regenerate",
	})
}

// Continue streams an extension of the conversation's last assistant
// message.
func (c *Client) Continue(ctx context.Context, conversationID string) (*Session, error) {
	return c.StartStream(ctx, ChatStreamRequest{
		ConversationID: conversationID,
		Mode:           "continue",
	})
}
