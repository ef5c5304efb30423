// ABOUTME: Side-thread creation - spawns a child conversation from a text selection
// ABOUTME: Links the selection range on the parent message and seeds the new thread

package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/braid/internal/provider"
	"github.com/2389/braid/internal/store"
)

// SideThreadRequest describes a selection on a parent message to spawn a
// child conversation from. Start and End are offsets into the message's
// rendered plain text.
type SideThreadRequest struct {
	OwnerID              string
	ParentConversationID string
	ParentMessageID      string
	Start                int
	End                  int
	SelectedText         string
}

// CreateSideThread creates a child conversation anchored at the selection,
// records the button annotation on the parent message, and seeds the thread
// with a user message quoting the selection. The child inherits the parent's
// model and temperature.
func (s *Service) CreateSideThread(ctx context.Context, req *SideThreadRequest) (*store.Conversation, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", store.ErrValidation)
	}

	parent, err := s.store.GetConversation(ctx, req.ParentConversationID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	anchor, err := s.store.GetMessage(ctx, req.ParentMessageID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if anchor.ConversationID != parent.ID {
		return nil, fmt.Errorf("%w: message %s is not part of conversation %s",
			store.ErrValidation, req.ParentMessageID, req.ParentConversationID)
	}

	now := time.Now().UTC()
	child := &store.Conversation{
		ID:                   uuid.NewString(),
		OwnerID:              req.OwnerID,
		Title:                provider.SideThreadTitle(req.SelectedText),
		Model:                parent.Model,
		Temperature:          parent.Temperature,
		ParentConversationID: &parent.ID,
		ParentMessageID:      &anchor.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.CreateConversation(ctx, child); err != nil {
		return nil, fmt.Errorf("creating side thread: %w", err)
	}

	seed := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: child.ID,
		OwnerID:        req.OwnerID,
		Role:           store.RoleUser,
		Content:        "Discuss this: " + req.SelectedText,
		CreatedAt:      now,
	}
	if err := s.store.CreateMessage(ctx, seed); err != nil {
		s.cleanupChild(ctx, child.ID, req.OwnerID, "seed failure")
		return nil, fmt.Errorf("seeding side thread: %w", err)
	}

	// Annotation goes last: until it lands, nothing on the parent points at
	// the child, so every failure path can simply delete the child.
	ann := store.ButtonAnnotation{
		Start:               req.Start,
		End:                 req.End,
		ChildConversationID: child.ID,
	}
	if _, err := s.store.AttachButtonAnnotation(ctx, anchor.ID, req.OwnerID, ann); err != nil {
		s.cleanupChild(ctx, child.ID, req.OwnerID, "annotation failure")
		return nil, err
	}

	s.logger.Info("created side thread",
		"conversation_id", child.ID,
		"parent_conversation_id", parent.ID,
		"parent_message_id", anchor.ID)
	return child, nil
}

// cleanupChild deletes a half-created side thread so the parent is left
// untouched.
func (s *Service) cleanupChild(ctx context.Context, childID, ownerID, reason string) {
	if err := s.store.DeleteConversation(ctx, childID, ownerID); err != nil {
		s.logger.Error("cleaning up side thread after "+reason,
			"conversation_id", childID,
			"error", err)
	}
}
