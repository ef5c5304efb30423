// ABOUTME: Streaming session state machine over the SSE chat endpoint
// ABOUTME: Accumulates tokens monotonically; Stop guarantees no growth after return

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SessionState is the lifecycle state of a streaming session.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateStreaming SessionState = "streaming"
	StateCompleted SessionState = "completed"
	StateStopped   SessionState = "stopped"
	StateErrored   SessionState = "errored"
)

// terminal reports whether no further transition is allowed.
func (s SessionState) terminal() bool {
	return s == StateCompleted || s == StateStopped || s == StateErrored
}

// ChatMessage is one context turn sent with a stream request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatStreamRequest starts a completion stream. An empty ConversationID
// creates a new conversation server-side; its id arrives with the done
// event.
type ChatStreamRequest struct {
	ConversationID string        `json:"conversationId,omitempty"`
	Messages       []ChatMessage `json:"messages,omitempty"`
	Model          string        `json:"model,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
	Mode           string        `json:"mode,omitempty"`
}

// Session is one in-flight streaming completion. The accumulated text only
// ever grows while streaming and freezes at the terminal transition; reads
// and writes are serialized on one mutex, so after Stop returns no caller
// can observe further growth.
type Session struct {
	mu             sync.Mutex
	state          SessionState
	text           strings.Builder
	conversationID string
	err            error

	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the accumulated completion text. An errored session has no
// usable text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateErrored {
		return ""
	}
	return s.text.String()
}

// ConversationID returns the target conversation. For anonymous sends it is
// empty until the done event arrives.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Err returns the stream error for an errored session, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateErrored {
		return nil
	}
	return s.err
}

// Stop halts the stream. The state is settled before the network is
// touched, so once Stop returns the text cannot grow. Stopping an already
// terminal session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.state.terminal() {
		s.state = StateStopped
	}
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until the session reaches a terminal state or ctx ends.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// appendToken grows the text. Tokens arriving after a terminal transition
// (a stop racing the reader) are dropped.
func (s *Session) appendToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return
	}
	s.text.WriteString(token)
}

// finish moves the session to a terminal state. The first terminal
// transition wins; later ones are ignored.
func (s *Session) finish(state SessionState, conversationID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return
	}
	s.state = state
	if conversationID != "" {
		s.conversationID = conversationID
	}
	s.err = err
}

// StartStream opens a streaming completion. The returned session is already
// streaming; read its state after Wait, or Stop it early.
func (c *Client) StartStream(ctx context.Context, req ChatStreamRequest) (*Session, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := c.newRequest(streamCtx, "POST", "/api/chat/stream", req)
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, c.statusError(resp)
	}

	session := &Session{
		state:          StateStreaming,
		conversationID: req.ConversationID,
		cancel:         cancel,
		done:           make(chan struct{}),
	}

	go c.consumeStream(session, resp)
	return session, nil
}

// consumeStream reads SSE events into the session until a terminal event or
// transport failure.
func (c *Client) consumeStream(session *Session, resp *http.Response) {
	defer close(session.done)
	defer resp.Body.Close()

	err := readSSE(resp.Body, func(event, data string) error {
		switch event {
		case "token":
			var payload struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return fmt.Errorf("%w: bad token payload: %v", ErrStream, err)
			}
			session.appendToken(payload.Content)

		case "done":
			var payload struct {
				ConversationID string `json:"conversationId"`
			}
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return fmt.Errorf("%w: bad done payload: %v", ErrStream, err)
			}
			session.finish(StateCompleted, payload.ConversationID, nil)

		case "error":
			var payload struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return fmt.Errorf("%w: bad error payload: %v", ErrStream, err)
			}
			session.finish(StateErrored, "", fmt.Errorf("%w: %s", ErrStream, payload.Message))
		}
		return nil
	})

	if err != nil {
		// Transport failure before a terminal event. If the session was
		// stopped this is just the cancelled read; finish is a no-op then.
		session.finish(StateErrored, "", fmt.Errorf("%w: %v", ErrStream, err))
		return
	}

	// Stream ended without a terminal event
	session.finish(StateErrored, "", fmt.Errorf("%w: connection closed before done", ErrStream))
}
