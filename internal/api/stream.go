// ABOUTME: Chat endpoints - SSE token streaming and the non-streaming fallback
// ABOUTME: Writes token/done/error events with periodic keep-alive comments

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/braid/internal/auth"
	"github.com/2389/braid/internal/chat"
)

// chatRequest is the wire shape of both chat endpoints. Field names follow
// the browser client.
type chatRequest struct {
	ConversationID string        `json:"conversationId"`
	Messages       []chatMessage `json:"messages"`
	Model          string        `json:"model"`
	Temperature    *float64      `json:"temperature"`
	Mode           string        `json:"mode"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (r *chatRequest) toSendRequest(ownerID string) *chat.SendRequest {
	req := &chat.SendRequest{
		OwnerID:        ownerID,
		ConversationID: r.ConversationID,
		Model:          r.Model,
		Temperature:    r.Temperature,
		Mode:           r.Mode,
	}
	for _, m := range r.Messages {
		req.Messages = append(req.Messages, chat.IncomingMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

// handleChatStream streams a completion over SSE. After the headers are
// written, failures can only be reported as the terminal error event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	resp, err := s.chat.Send(r.Context(), req.toSendRequest(ownerID))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()

		case ev, ok := <-resp.Events:
			if !ok {
				return
			}
			s.writeSSEEvent(w, ev)
			flusher.Flush()
		}
	}
}

// writeSSEEvent frames one chat event as event: <type>\ndata: <json>\n\n.
func (s *Server) writeSSEEvent(w http.ResponseWriter, ev chat.Event) {
	var payload any
	switch ev.Type {
	case chat.EventToken:
		payload = map[string]string{"content": ev.Token}
	case chat.EventDone:
		payload = map[string]string{"conversationId": ev.ConversationID}
	case chat.EventError:
		payload = map[string]string{"message": ev.Message}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encoding SSE event", "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\n", ev.Type)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

type chatResponse struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// handleChat is the non-streaming fallback: same request shape, whole
// completion as one JSON response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.MustOwnerFromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.chat.Send(r.Context(), req.toSendRequest(ownerID))
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	var content string
	for ev := range resp.Events {
		switch ev.Type {
		case chat.EventToken:
			content += ev.Token
		case chat.EventError:
			s.sendJSONError(w, http.StatusBadGateway, ev.Message)
			return
		}
	}

	s.sendJSON(w, http.StatusOK, chatResponse{
		ConversationID: resp.ConversationID,
		Content:        content,
	})
}
