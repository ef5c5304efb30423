// ABOUTME: Token-stream provider interface and title heuristics
// ABOUTME: Abstracts the upstream LLM so chat logic never sees a vendor SDK

package provider

import (
	"context"
	"strings"
)

// Message is one turn of provider context.
type Message struct {
	Role    string
	Content string
}

// Request describes one completion call.
type Request struct {
	Model       string
	Temperature float64
	Messages    []Message
}

// Provider produces a completion as a stream of opaque text tokens.
// Implementations call emit once per token, in order; a non-nil error from
// emit aborts the stream and is returned unchanged. Token boundaries carry no
// meaning, only concatenation order does.
type Provider interface {
	Stream(ctx context.Context, req Request, emit func(token string) error) error
}

// Complete runs a streaming request to completion and returns the
// concatenated text. Used by the non-streaming chat endpoint.
func Complete(ctx context.Context, p Provider, req Request) (string, error) {
	var sb strings.Builder
	err := p.Stream(ctx, req, func(token string) error {
		sb.WriteString(token)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

const (
	titleMaxWords    = 8
	sideTitleMaxLen  = 30
	sideTitlePrefix  = "Side: "
	fallbackTitle    = "New conversation"
)

// TitleFromMessage derives a conversation title from its first user message:
// the first 8 words, with an ellipsis when truncated.
func TitleFromMessage(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return fallbackTitle
	}
	if len(words) <= titleMaxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:titleMaxWords], " ") + "…"
}

// SideThreadTitle derives a title from the selected text a side thread was
// spawned from, truncated at 30 runes.
func SideThreadTitle(selection string) string {
	selection = strings.Join(strings.Fields(selection), " ")
	if selection == "" {
		return sideTitlePrefix + "discussion"
	}
	runes := []rune(selection)
	if len(runes) <= sideTitleMaxLen {
		return sideTitlePrefix + selection
	}
	head := strings.TrimRight(string(runes[:sideTitleMaxLen]), " ")
	return sideTitlePrefix + head + "…"
}
