// ABOUTME: HTTP API server - routing, error mapping, and JSON helpers
// ABOUTME: REST surface for conversations/messages plus the SSE chat stream

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/braid/internal/auth"
	"github.com/2389/braid/internal/chat"
	"github.com/2389/braid/internal/store"
)

// Server exposes the braid HTTP API.
type Server struct {
	store     store.Store
	chat      *chat.Service
	verifier  auth.TokenVerifier
	keepAlive time.Duration
	logger    *slog.Logger
}

// NewServer creates the API server. keepAlive is the SSE comment interval;
// zero picks the 15s default.
func NewServer(st store.Store, chatSvc *chat.Service, verifier auth.TokenVerifier, keepAlive time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &Server{
		store:     st,
		chat:      chatSvc,
		verifier:  verifier,
		keepAlive: keepAlive,
		logger:    logger.With("component", "api"),
	}
}

// Routes builds the HTTP handler. Everything under /api requires a bearer
// token except the health endpoint.
func (s *Server) Routes() http.Handler {
	authed := http.NewServeMux()
	authed.HandleFunc("GET /api/conversations", s.handleListConversations)
	authed.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	authed.HandleFunc("POST /api/conversations/side-thread", s.handleCreateSideThread)
	authed.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	authed.HandleFunc("PATCH /api/conversations/{id}", s.handleUpdateConversation)
	authed.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)

	authed.HandleFunc("GET /api/messages", s.handleListMessages)
	authed.HandleFunc("POST /api/messages", s.handleCreateMessage)

	authed.HandleFunc("POST /api/chat", s.handleChat)
	authed.HandleFunc("POST /api/chat/stream", s.handleChatStream)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("/api/", auth.Middleware(s.verifier)(authed))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sendJSON writes a JSON response with the given status.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// sendStoreError maps service errors onto HTTP statuses. Validation failures
// carry their message; anything unexpected is logged and masked.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// pagingParams reads page/page_size query params with defaults.
func pagingParams(r *http.Request) (page, pageSize int, err error) {
	page, pageSize = 1, 20
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		pageSize, err = strconv.Atoi(v)
		if err != nil || pageSize < 1 {
			return 0, 0, errors.New("page_size must be a positive integer")
		}
	}
	return page, pageSize, nil
}
