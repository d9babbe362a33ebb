package proposal

import (
	"context"
	"errors"
	"strings"

	"github.com/lanceworks/autobid-cli/internal/faults"
	"github.com/lanceworks/autobid-cli/pkg/textgen"
)

// TextGenGenerator produces proposals via an OpenAI-compatible service.
type TextGenGenerator struct {
	client      textgen.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewTextGen creates a generator backed by the given textgen client.
func NewTextGen(client textgen.Client, model string, maxTokens int, temperature float64) *TextGenGenerator {
	return &TextGenGenerator{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (g *TextGenGenerator) Generate(ctx context.Context, req Request) (string, error) {
	chatReq := textgen.ChatCompletionRequest{
		Model: g.model,
		Messages: []textgen.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
	}
	if g.maxTokens > 0 {
		mt := g.maxTokens
		chatReq.MaxTokens = &mt
	}
	if g.temperature > 0 {
		t := g.temperature
		chatReq.Temperature = &t
	}

	resp, err := g.client.ChatCompletion(ctx, chatReq)
	if err != nil {
		return "", generationError(err, req)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", generationError(errors.New("empty completion"), req)
	}
	return text, nil
}

// generationError normalizes any provider failure into a
// *faults.GenerationServiceError carrying the input dimensions, which is
// what distinguishes an oversized prompt from a service outage in the logs.
func generationError(err error, req Request) error {
	ge := &faults.GenerationServiceError{
		JobTitle: req.JobTitle,
		TitleLen: len(req.JobTitle),
		DescLen:  len(req.JobDescription),
		Err:      err,
	}
	var apiErr *textgen.APIError
	if errors.As(err, &apiErr) {
		ge.StatusCode = apiErr.StatusCode
		ge.Body = apiErr.Body
	}
	return ge
}
