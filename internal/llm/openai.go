package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIGenerator calls the chat completions API, or any compatible server
// when a base URL is given.
type OpenAIGenerator struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIGenerator creates a client for model (e.g. "gpt-4o-mini").
func NewOpenAIGenerator(apiKey, baseURL, model string, maxTokens int, opts ...option.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" && baseURL == "" {
		return nil, errors.New("openai generator: API key is not set")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	reqOpts = append(reqOpts, opts...)
	return &OpenAIGenerator{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Generate sends prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(g.maxTokens))
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai generate: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Name returns "openai/<model>".
func (g *OpenAIGenerator) Name() string {
	return "openai/" + g.model
}

// Close is a no-op.
func (g *OpenAIGenerator) Close() error {
	return nil
}
