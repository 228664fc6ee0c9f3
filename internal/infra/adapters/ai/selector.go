package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/config"
	"freshdesk-simulator/internal/domain/ports/adapter"
)

// ErrNoProvider means no generation backend is configured.
var ErrNoProvider = errors.New("no text generation provider configured; set ai.ollama_base_url, ai.openai_key or ai.gemini_key")

// NewGenerator picks one provider at startup and wraps it with the token
// budget and concurrency limit. With ai.provider empty the first configured
// backend wins, in order: ollama, openai, gemini.
func NewGenerator(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.TextGenerator, error) {
	base, err := selectProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("component", "generator").Str("provider", base.Provider()).Msg("text generation provider selected")
	g := NewBudgetedGenerator(base, cfg.MaxPromptTokens, nil, logger)
	return NewLimitedGenerator(g, cfg.ConcurrentLimit), nil
}

func selectProvider(ctx context.Context, cfg config.AIConfig) (adapter.TextGenerator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		return NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel)
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIModel)
	case "gemini":
		return NewGeminiGenerator(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.GeminiModel)
	case "":
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	switch {
	case cfg.OllamaBaseURL != "":
		return NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel)
	case cfg.OpenAIKey != "":
		return NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIModel)
	case cfg.GeminiKey != "":
		return NewGeminiGenerator(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.GeminiModel)
	}
	return nil, ErrNoProvider
}
