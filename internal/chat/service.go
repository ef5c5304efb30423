// ABOUTME: Chat service - assembles provider context and streams completions
// ABOUTME: Owns anonymous conversation creation and side-thread history flattening

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/braid/internal/provider"
	"github.com/2389/braid/internal/store"
)

// Send modes. An empty mode is a normal send; regenerate rebuilds the last
// assistant turn, continue extends it.
const (
	ModeRegenerate = "regenerate"
	ModeContinue   = "continue"
)

// EventType identifies a stream event.
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one item of a completion stream. Token events carry Token; the
// terminal done event carries ConversationID; the terminal error event
// carries Message. Exactly one terminal event ends every stream.
type Event struct {
	Type           EventType
	Token          string
	ConversationID string
	Message        string
}

// IncomingMessage is a client-supplied context turn.
type IncomingMessage struct {
	Role    string
	Content string
}

// SendRequest describes one streaming send.
type SendRequest struct {
	OwnerID        string
	ConversationID string // empty starts an anonymous conversation
	Messages       []IncomingMessage
	Model          string
	Temperature    *float64
	Mode           string
}

// SendResponse is the accepted stream. ConversationID is set immediately,
// including for anonymous sends where the conversation was just created.
type SendResponse struct {
	ConversationID string
	Events         <-chan Event
}

// Defaults are applied when a request leaves model or temperature unset.
type Defaults struct {
	Model       string
	Temperature float64
}

// Service streams completions against persisted conversation history.
type Service struct {
	store    store.Store
	provider provider.Provider
	defaults Defaults
	logger   *slog.Logger
}

// New creates a chat service.
func New(st store.Store, p provider.Provider, defaults Defaults, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		provider: p,
		defaults: defaults,
		logger:   logger.With("component", "chat"),
	}
}

// Send validates the request, resolves or creates the conversation, and
// starts streaming. Validation and lookup failures are returned before any
// event is produced; after that, failures arrive as the terminal error
// event. The service persists only the anonymous conversation record:
// message persistence is the caller's reconciliation step.
func (s *Service) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner is required", store.ErrValidation)
	}
	if req.Mode != "" && req.Mode != ModeRegenerate && req.Mode != ModeContinue {
		return nil, fmt.Errorf("%w: unknown mode %q", store.ErrValidation, req.Mode)
	}
	for _, m := range req.Messages {
		if !store.ValidRole(m.Role) {
			return nil, fmt.Errorf("%w: invalid role %q", store.ErrValidation, m.Role)
		}
	}

	conv, history, err := s.resolveContext(ctx, req)
	if err != nil {
		return nil, err
	}

	provReq := provider.Request{
		Model:       conv.Model,
		Temperature: conv.Temperature,
		Messages:    history,
	}
	if req.Model != "" {
		provReq.Model = req.Model
	}
	if req.Temperature != nil {
		provReq.Temperature = *req.Temperature
	}

	events := make(chan Event, 32)
	go s.stream(ctx, conv.ID, provReq, events)

	return &SendResponse{ConversationID: conv.ID, Events: events}, nil
}

// stream runs the provider call and forwards tokens until a terminal event.
func (s *Service) stream(ctx context.Context, conversationID string, req provider.Request, events chan<- Event) {
	defer close(events)

	err := s.provider.Stream(ctx, req, func(token string) error {
		select {
		case events <- Event{Type: EventToken, Token: token}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		s.logger.Warn("completion stream failed",
			"conversation_id", conversationID,
			"error", err)
		select {
		case events <- Event{Type: EventError, Message: err.Error()}:
		case <-ctx.Done():
		}
		return
	}

	select {
	case events <- Event{Type: EventDone, ConversationID: conversationID}:
	case <-ctx.Done():
	}
}

// resolveContext returns the target conversation and the provider context
// assembled from persisted history plus the request's messages.
func (s *Service) resolveContext(ctx context.Context, req *SendRequest) (*store.Conversation, []provider.Message, error) {
	if req.ConversationID == "" {
		return s.createAnonymous(ctx, req)
	}

	conv, err := s.store.GetConversation(ctx, req.ConversationID, req.OwnerID)
	if err != nil {
		return nil, nil, err
	}

	var history []provider.Message

	if conv.IsSideThread() {
		parentCtx, err := s.parentContext(ctx, conv, req.OwnerID)
		if err != nil {
			return nil, nil, err
		}
		history = append(history, parentCtx...)
	}

	own, err := s.store.ListAllMessages(ctx, conv.ID, req.OwnerID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading history: %w", err)
	}
	for _, m := range own {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}

	switch req.Mode {
	case ModeRegenerate:
		// Rebuild the last assistant turn from the context before it
		if n := len(history); n > 0 && history[n-1].Role == store.RoleAssistant {
			history = history[:n-1]
		}
	case ModeContinue:
		// Keep the trailing assistant text so the model extends it
	default:
		history = appendIfNew(history, req.Messages)
	}

	if len(history) == 0 {
		return nil, nil, fmt.Errorf("%w: nothing to send", store.ErrValidation)
	}
	return conv, history, nil
}

// createAnonymous creates a conversation for a send that names none. The
// title comes from the first user message.
func (s *Service) createAnonymous(ctx context.Context, req *SendRequest) (*store.Conversation, []provider.Message, error) {
	if len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("%w: messages are required without a conversation id", store.ErrValidation)
	}
	if req.Mode != "" {
		return nil, nil, fmt.Errorf("%w: mode %q requires an existing conversation", store.ErrValidation, req.Mode)
	}

	title := ""
	for _, m := range req.Messages {
		if m.Role == store.RoleUser {
			title = provider.TitleFromMessage(m.Content)
			break
		}
	}
	if title == "" {
		title = provider.TitleFromMessage("")
	}

	model := req.Model
	if model == "" {
		model = s.defaults.Model
	}
	temperature := s.defaults.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:          uuid.NewString(),
		OwnerID:     req.OwnerID,
		Title:       title,
		Model:       model,
		Temperature: temperature,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, nil, fmt.Errorf("creating conversation: %w", err)
	}
	s.logger.Info("created anonymous conversation",
		"conversation_id", conv.ID,
		"title", title)

	history := make([]provider.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	return conv, history, nil
}

// parentContext flattens the parent conversation up to and including the
// anchor message the side thread hangs off. Deeper ancestors are not walked:
// the parent's own context was already present in its messages.
func (s *Service) parentContext(ctx context.Context, conv *store.Conversation, ownerID string) ([]provider.Message, error) {
	parentMsgs, err := s.store.ListAllMessages(ctx, *conv.ParentConversationID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading parent history: %w", err)
	}

	var out []provider.Message
	for _, m := range parentMsgs {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content})
		if m.ID == *conv.ParentMessageID {
			break
		}
	}
	return out, nil
}

// appendIfNew appends the request's messages to the persisted history,
// skipping a leading message that duplicates the current tail. Clients
// resend the user message they just persisted; this keeps it single.
func appendIfNew(history []provider.Message, incoming []IncomingMessage) []provider.Message {
	for i, m := range incoming {
		if i == 0 && len(history) > 0 {
			tail := history[len(history)-1]
			if tail.Role == m.Role && strings.TrimSpace(tail.Content) == strings.TrimSpace(m.Content) {
				continue
			}
		}
		history = append(history, provider.Message{Role: m.Role, Content: m.Content})
	}
	return history
}
