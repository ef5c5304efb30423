// ABOUTME: Typed conversation calls - list, create, side threads, patch, delete
// ABOUTME: Wire shapes mirror the server's JSON exactly

package client

import (
	"context"
	"fmt"
	"net/url"
)

// Conversation is the client-side view of a conversation.
type Conversation struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Model                string  `json:"model"`
	Temperature          float64 `json:"temperature"`
	ParentConversationID *string `json:"parent_conversation_id,omitempty"`
	ParentMessageID      *string `json:"parent_message_id,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

// IsSideThread reports whether the conversation hangs off a parent message.
func (c *Conversation) IsSideThread() bool {
	return c.ParentConversationID != nil
}

// ConversationPage is one page of the conversation listing.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	Page          int            `json:"page"`
	PageSize      int            `json:"page_size"`
	TotalCount    int            `json:"total_count"`
	HasMore       bool           `json:"has_more"`
}

// ListConversations returns one page of root conversations, newest
// activity first.
func (c *Client) ListConversations(ctx context.Context, page, pageSize int) (*ConversationPage, error) {
	path := fmt.Sprintf("/api/conversations?page=%d&page_size=%d", page, pageSize)
	var out ConversationPage
	if err := c.doJSON(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversationRequest names a new root conversation.
type CreateConversationRequest struct {
	Title       string   `json:"title,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// CreateConversation creates a root conversation.
func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	var out Conversation
	if err := c.doJSON(ctx, "POST", "/api/conversations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var out Conversation
	if err := c.doJSON(ctx, "GET", "/api/conversations/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConversationPatch holds the fields an update may change; nil means
// unchanged.
type ConversationPatch struct {
	Title       *string  `json:"title,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// UpdateConversation applies a partial update and returns the result.
func (c *Client) UpdateConversation(ctx context.Context, id string, patch ConversationPatch) (*Conversation, error) {
	var out Conversation
	if err := c.doJSON(ctx, "PATCH", "/api/conversations/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation and its whole side-thread
// subtree.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.doJSON(ctx, "DELETE", "/api/conversations/"+url.PathEscape(id), nil, nil)
}

// SideThreadRequest describes the selection a new side thread hangs off.
type SideThreadRequest struct {
	ParentConversationID string `json:"parent_conversation_id"`
	ParentMessageID      string `json:"parent_message_id"`
	Start                int    `json:"start"`
	End                  int    `json:"end"`
	SelectedText         string `json:"selected_text"`
}

// CreateSideThread spawns a child conversation from a selection on a parent
// message.
func (c *Client) CreateSideThread(ctx context.Context, req SideThreadRequest) (*Conversation, error) {
	var out Conversation
	if err := c.doJSON(ctx, "POST", "/api/conversations/side-thread", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
