// Package anthropic implements the LLM client port on the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/polichat/polichat/pkg/ports"
)

// Client calls the Anthropic Messages API. Safe for concurrent use.
type Client struct {
	api    anthropic.Client
	model  anthropic.Model
	logger *zap.Logger
}

// NewClient creates an Anthropic-backed LLM client.
func NewClient(apiKey, model string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_0)
	}
	return &Client{
		api:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		logger: logger,
	}, nil
}

// Complete performs a non-streaming completion and returns the
// concatenated text blocks of the response.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	msg, err := c.api.Messages.New(ctx, c.params(req))
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}
	return messageText(msg), nil
}

// StreamChat performs a streaming completion, invoking onToken for
// every text delta as it arrives, and returns the accumulated text.
func (c *Client) StreamChat(ctx context.Context, req ports.CompletionRequest, onToken func(token string)) (string, error) {
	stream := c.api.Messages.NewStreaming(ctx, c.params(req))

	var acc anthropic.Message
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return "", fmt.Errorf("anthropic stream accumulate: %w", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && onToken != nil {
				onToken(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic stream: %w", err)
	}

	text := messageText(&acc)
	c.logger.Debug("stream completed",
		zap.String("model", string(c.model)),
		zap.Int("chars", len(text)))
	return text, nil
}

func (c *Client) params(req ports.CompletionRequest) anthropic.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages:  toMessageParams(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}

// toMessageParams converts port messages to API turns. System-role
// turns inside the history are folded into user turns since the API
// accepts system text only at the request level.
func toMessageParams(msgs []ports.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == ports.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func messageText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
