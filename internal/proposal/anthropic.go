package proposal

import (
	"context"
	"errors"
	"strings"

	"github.com/lanceworks/autobid-cli/pkg/anthropic"
)

// AnthropicGenerator produces proposals via the Anthropic API.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a generator backed by the given Anthropic client.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicGenerator{client: client, model: model, maxTokens: maxTokens}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: BuildPrompt(req)},
		},
	})
	if err != nil {
		return "", generationError(err, req)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", generationError(errors.New("empty completion"), req)
	}
	return text, nil
}
