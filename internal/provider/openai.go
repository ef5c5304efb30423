// ABOUTME: OpenAI-backed Provider using the go-openai streaming client
// ABOUTME: Receives completion deltas and forwards them as opaque tokens

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider streams completions from an OpenAI-compatible API.
type OpenAIProvider struct {
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIProvider creates a provider for the given API key. baseURL
// overrides the endpoint for OpenAI-compatible servers; empty means the
// default OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		logger: slog.Default().With("component", "provider"),
	}
}

// Stream sends the request and emits each completion delta as it arrives.
// Context cancellation interrupts the stream and returns ctx.Err().
func (p *OpenAIProvider) Stream(ctx context.Context, req Request, emit func(token string) error) error {
	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: float32(req.Temperature),
		Stream:      true,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return fmt.Errorf("starting completion stream: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			p.logger.Warn("closing completion stream", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receiving completion chunk: %w", err)
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
}

var _ Provider = (*OpenAIProvider)(nil)
