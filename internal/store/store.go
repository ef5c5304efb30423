// ABOUTME: Store interface and data types for braid persistence
// ABOUTME: Defines Conversation, Message, ButtonAnnotation and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is not
// owned by the caller. The two cases are deliberately indistinguishable so
// that existence of another user's data never leaks.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input is malformed (missing fields, bad
// annotation ranges, dangling parent references).
var ErrValidation = errors.New("validation failed")

// Role constants for message authors
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is one of the accepted message roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// Conversation is a chat thread. A side thread has both parent fields set;
// a root conversation has both nil. The parent relation forms a forest.
type Conversation struct {
	ID                   string
	OwnerID              string
	Title                string
	Model                string
	Temperature          float64
	ParentConversationID *string
	ParentMessageID      *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsSideThread reports whether the conversation was spawned from a text
// selection in another conversation's message.
func (c *Conversation) IsSideThread() bool {
	return c.ParentConversationID != nil
}

// ButtonAnnotation marks a character range of a message's rendered plain
// text that links to a child conversation. Ranges on one message never
// overlap.
type ButtonAnnotation struct {
	Start               int    `json:"start"`
	End                 int    `json:"end"`
	ChildConversationID string `json:"child_conversation_id"`
}

// Message is a single entry in a conversation. Content is immutable once
// persisted; only the annotations column is ever updated.
type Message struct {
	ID             string
	ConversationID string
	OwnerID        string
	Role           string
	Content        string
	Annotations    []ButtonAnnotation
	CreatedAt      time.Time
}

// Page carries pagination metadata alongside a listing result.
type Page struct {
	Page       int
	PageSize   int
	TotalCount int
	HasMore    bool
}

// ConversationPatch lists the fields a conversation update may change.
// A nil field means "unchanged".
type ConversationPatch struct {
	Title       *string
	Model       *string
	Temperature *float64
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations. ListConversations returns root conversations only,
	// newest activity first.
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id, ownerID string) (*Conversation, error)
	ListConversations(ctx context.Context, ownerID string, page, pageSize int) ([]*Conversation, *Page, error)
	UpdateConversation(ctx context.Context, id, ownerID string, patch ConversationPatch) (*Conversation, error)

	// DeleteConversation removes the conversation, its messages, and every
	// descendant side thread in a single transaction.
	DeleteConversation(ctx context.Context, id, ownerID string) error

	// Messages. ListMessages pages newest-first: page 1 holds the most
	// recent pageSize messages, returned oldest-first within the page.
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id, ownerID string) (*Message, error)
	ListMessages(ctx context.Context, conversationID, ownerID string, page, pageSize int) ([]*Message, *Page, error)
	ListAllMessages(ctx context.Context, conversationID, ownerID string) ([]*Message, error)

	// AttachButtonAnnotation adds a selection range to a message. An exact
	// (start,end) duplicate replaces the existing entry; overlapping ranges
	// are rejected with ErrValidation.
	AttachButtonAnnotation(ctx context.Context, messageID, ownerID string, ann ButtonAnnotation) (*Message, error)

	// Close releases any resources held by the store
	Close() error
}
