package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*OpenAIGenerator)(nil)

// OpenAIGenerator sends a single user message to a Chat Completions
// endpoint. Ollama serves the same API under /v1, so both providers share it.
type OpenAIGenerator struct {
	client   openai.Client
	model    string
	provider string
}

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &OpenAIGenerator{
		client:   openai.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		provider: "openai",
	}, nil
}

// NewOllamaGenerator targets a local Ollama server, e.g. http://localhost:11434.
func NewOllamaGenerator(baseURL, model string) (*OpenAIGenerator, error) {
	if baseURL == "" {
		return nil, errors.New("ollama base url empty")
	}
	if model == "" {
		model = "mistral:latest"
	}
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return newOpenAICompatible(base, "ollama", model, "ollama"), nil
}

func newOpenAICompatible(baseURL, apiKey, model, provider string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client: openai.NewClient(
			option.WithBaseURL(baseURL+"/"),
			option.WithAPIKey(apiKey),
		),
		model:    model,
		provider: provider,
	}
}

func (g *OpenAIGenerator) Provider() string { return g.provider }

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrGeneration, g.provider, err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", fmt.Errorf("%w: %s returned no content", domain.ErrGeneration, g.provider)
}
