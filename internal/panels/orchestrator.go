// ABOUTME: Side-thread orchestrator - turns text selections into docked panels
// ABOUTME: Creates the child conversation, then opens or unminimizes its panel

package panels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/braid/internal/client"
)

// ThreadCreator is what the orchestrator needs from the API client.
type ThreadCreator interface {
	CreateSideThread(ctx context.Context, req client.SideThreadRequest) (*client.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, page, pageSize int) (*client.MessagePage, error)
}

// Orchestrator owns the dock and translates selections into side threads.
type Orchestrator struct {
	dock    *Dock
	threads ThreadCreator
	logger  *slog.Logger
}

// NewOrchestrator wires a dock to a thread creator.
func NewOrchestrator(dock *Dock, threads ThreadCreator) *Orchestrator {
	return &Orchestrator{
		dock:    dock,
		threads: threads,
		logger:  slog.Default().With("component", "panels"),
	}
}

// Dock returns the orchestrator's dock.
func (o *Orchestrator) Dock() *Dock {
	return o.dock
}

// CreateFromSelection creates a child conversation for the selected range
// and opens its panel. If the anchor message is unknown - its id may still
// be provisional while reconciliation is in flight - the history is
// reloaded and the creation retried once; a second miss is a silent no-op
// returning nil.
func (o *Orchestrator) CreateFromSelection(ctx context.Context, req client.SideThreadRequest) (*client.Conversation, error) {
	if req.Start < 0 || req.Start >= req.End {
		return nil, fmt.Errorf("%w: selection range [%d,%d) is empty", client.ErrValidation, req.Start, req.End)
	}

	conv, err := o.threads.CreateSideThread(ctx, req)
	if errors.Is(err, client.ErrNotFound) {
		if _, reloadErr := o.threads.ListMessages(ctx, req.ParentConversationID, 1, 20); reloadErr != nil {
			return nil, fmt.Errorf("reloading history for retry: %w", reloadErr)
		}
		conv, err = o.threads.CreateSideThread(ctx, req)
		if errors.Is(err, client.ErrNotFound) {
			o.logger.Warn("selection anchor still unknown after reload",
				"parent_conversation_id", req.ParentConversationID,
				"parent_message_id", req.ParentMessageID)
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	o.dock.Open(conv.ID, req.ParentConversationID, req.ParentMessageID)
	return conv, nil
}

// OpenThread opens (or unminimizes) the panel for an existing side thread,
// for example when the user clicks an annotation button.
func (o *Orchestrator) OpenThread(conv *client.Conversation) {
	parentConv, parentMsg := "", ""
	if conv.ParentConversationID != nil {
		parentConv = *conv.ParentConversationID
	}
	if conv.ParentMessageID != nil {
		parentMsg = *conv.ParentMessageID
	}
	o.dock.Open(conv.ID, parentConv, parentMsg)
}
