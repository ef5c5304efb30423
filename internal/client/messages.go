// ABOUTME: Typed message calls - paginated listing and creation
// ABOUTME: CreateMessage is the persistence half of reconciliation

package client

import (
	"context"
	"fmt"
	"net/url"
)

// Annotation is a selection range on a message linking to a child
// conversation.
type Annotation struct {
	Start               int    `json:"start"`
	End                 int    `json:"end"`
	ChildConversationID string `json:"child_conversation_id"`
}

// Message is the client-side view of a message.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Role           string       `json:"role"`
	Content        string       `json:"content"`
	Annotations    []Annotation `json:"annotations"`
	CreatedAt      string       `json:"created_at"`
}

// MessagePage is one page of a conversation's history. Page 1 holds the
// newest messages, oldest first within the page.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int       `json:"total_count"`
	HasMore    bool      `json:"has_more"`
}

// ListMessages returns one page of a conversation's messages.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page, pageSize int) (*MessagePage, error) {
	path := fmt.Sprintf("/api/messages?conversation_id=%s&page=%d&page_size=%d",
		url.QueryEscape(conversationID), page, pageSize)
	var out MessagePage
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateMessage persists a message in a conversation.
func (c *Client) CreateMessage(ctx context.Context, conversationID, role, content string) (*Message, error) {
	body := map[string]string{
		"conversation_id": conversationID,
		"role":            role,
		"content":         content,
	}
	var out Message
	if err := c.doJSON(ctx, "POST", "/api/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
