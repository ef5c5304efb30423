// ABOUTME: Conversation REST handlers - list, create, side threads, patch, delete
// ABOUTME: All handlers are owner-scoped via the auth middleware

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/braid/internal/auth"
	"github.com/2389/braid/internal/chat"
	"github.com/2389/braid/internal/store"
)

// conversationJSON is the wire shape of a conversation.
type conversationJSON struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Model                string  `json:"model"`
	Temperature          float64 `json:"temperature"`
	ParentConversationID *string `json:"parent_conversation_id,omitempty"`
	ParentMessageID      *string `json:"parent_message_id,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

func toConversationJSON(c *store.Conversation) conversationJSON {
	return conversationJSON{
		ID:                   c.ID,
		Title:                c.Title,
		Model:                c.Model,
		Temperature:          c.Temperature,
		ParentConversationID: c.ParentConversationID,
		ParentMessageID:      c.ParentMessageID,
		CreatedAt:            c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:            c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type conversationListResponse struct {
	Conversations []conversationJSON `json:"conversations"`
	Page          int                `json:"page"`
	PageSize      int                `json:"page_size"`
	TotalCount    int                `json:"total_count"`
	HasMore       bool               `json:"has_more"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	page, pageSize, err := pagingParams(r)
	if err != nil {
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	convs, meta, err := s.store.ListConversations(r.Context(), ownerID, page, pageSize)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	resp := conversationListResponse{
		Conversations: make([]conversationJSON, 0, len(convs)),
		Page:          meta.Page,
		PageSize:      meta.PageSize,
		TotalCount:    meta.TotalCount,
		HasMore:       meta.HasMore,
	}
	for _, c := range convs {
		resp.Conversations = append(resp.Conversations, toConversationJSON(c))
	}
	s.sendJSON(w, http.StatusOK, resp)
}

type createConversationRequest struct {
	Title       string   `json:"title"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       req.Title,
		Model:       req.Model,
		Temperature: 0.7,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if conv.Title == "" {
		conv.Title = "New conversation"
	}
	if conv.Model == "" {
		conv.Model = "gpt-4o-mini"
	}
	if req.Temperature != nil {
		conv.Temperature = *req.Temperature
	}

	if err := s.store.CreateConversation(r.Context(), conv); err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, toConversationJSON(conv))
}

type sideThreadRequest struct {
	ParentConversationID string `json:"parent_conversation_id"`
	ParentMessageID      string `json:"parent_message_id"`
	Start                int    `json:"start"`
	End                  int    `json:"end"`
	SelectedText         string `json:"selected_text"`
}

func (s *Server) handleCreateSideThread(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	var req sideThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ParentConversationID == "" || req.ParentMessageID == "" {
		s.sendJSONError(w, http.StatusBadRequest, "parent_conversation_id and parent_message_id are required")
		return
	}

	child, err := s.chat.CreateSideThread(r.Context(), &chat.SideThreadRequest{
		OwnerID:              ownerID,
		ParentConversationID: req.ParentConversationID,
		ParentMessageID:      req.ParentMessageID,
		Start:                req.Start,
		End:                  req.End,
		SelectedText:         req.SelectedText,
	})
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, toConversationJSON(child))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	conv, err := s.store.GetConversation(r.Context(), r.PathValue("id"), ownerID)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toConversationJSON(conv))
}

type updateConversationRequest struct {
	Title       *string  `json:"title"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	var req updateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	conv, err := s.store.UpdateConversation(r.Context(), r.PathValue("id"), ownerID, store.ConversationPatch{
		Title:       req.Title,
		Model:       req.Model,
		Temperature: req.Temperature,
	})
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, toConversationJSON(conv))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	if err := s.store.DeleteConversation(r.Context(), r.PathValue("id"), ownerID); err != nil {
		s.sendStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
