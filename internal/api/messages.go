// ABOUTME: Message REST handlers - paginated listing and creation
// ABOUTME: Creation is the persistence half of client-side reconciliation

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/braid/internal/auth"
	"github.com/2389/braid/internal/store"
)

// messageJSON is the wire shape of a message.
type messageJSON struct {
	ID             string                   `json:"id"`
	ConversationID string                   `json:"conversation_id"`
	Role           string                   `json:"role"`
	Content        string                   `json:"content"`
	Annotations    []store.ButtonAnnotation `json:"annotations"`
	CreatedAt      string                   `json:"created_at"`
}

func toMessageJSON(m *store.Message) messageJSON {
	anns := m.Annotations
	if anns == nil {
		anns = []store.ButtonAnnotation{}
	}
	return messageJSON{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Annotations:    anns,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type messageListResponse struct {
	Messages   []messageJSON `json:"messages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int           `json:"total_count"`
	HasMore    bool          `json:"has_more"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "conversation_id query param is required")
		return
	}
	page, pageSize, err := pagingParams(r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, meta, err := s.store.ListMessages(r.Context(), conversationID, ownerID, page, pageSize)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	resp := messageListResponse{
		Messages:   make([]messageJSON, 0, len(msgs)),
		Page:       meta.Page,
		PageSize:   meta.PageSize,
		TotalCount: meta.TotalCount,
		HasMore:    meta.HasMore,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, toMessageJSON(m))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

type createMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
	Content        string `json:"content"`
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConversationID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if req.Content == "" {
		s.sendJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		OwnerID:        ownerID,
		Role:           req.Role,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, toMessageJSON(msg))
}
