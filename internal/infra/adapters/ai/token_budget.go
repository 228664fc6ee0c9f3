package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"

	"freshdesk-simulator/internal/domain"
	"freshdesk-simulator/internal/domain/ports/adapter"
	"freshdesk-simulator/internal/infra/metrics"
)

var _ adapter.TextGenerator = (*budgetedGenerator)(nil)

// TokenCounter estimates the token length of a prompt.
type TokenCounter func(text string) int

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// CountTokens uses the cl100k_base encoding. If the encoding cannot be
// loaded it falls back to four characters per token.
func CountTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	if enc == nil {
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

type budgetedGenerator struct {
	inner     adapter.TextGenerator
	maxTokens int
	count     TokenCounter
	log       *zerolog.Logger
}

// NewBudgetedGenerator rejects prompts longer than maxTokens with
// domain.ErrPromptTooLarge and records latency for every call.
// maxTokens <= 0 disables the check.
func NewBudgetedGenerator(inner adapter.TextGenerator, maxTokens int, count TokenCounter, logger *zerolog.Logger) adapter.TextGenerator {
	if count == nil {
		count = CountTokens
	}
	l := logger.With().Str("component", "generator").Str("provider", inner.Provider()).Logger()
	return &budgetedGenerator{inner: inner, maxTokens: maxTokens, count: count, log: &l}
}

func (b *budgetedGenerator) Provider() string { return b.inner.Provider() }

func (b *budgetedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	tokens := b.count(prompt)
	metrics.ObservePromptTokens(b.inner.Provider(), tokens)
	if b.maxTokens > 0 && tokens > b.maxTokens {
		return "", fmt.Errorf("%w: %d > %d tokens", domain.ErrPromptTooLarge, tokens, b.maxTokens)
	}

	start := time.Now()
	out, err := b.inner.Generate(ctx, prompt)
	took := time.Since(start)
	metrics.ObserveGeneration(b.inner.Provider(), took.Milliseconds(), err == nil)
	if err != nil {
		b.log.Warn().Err(err).Int("prompt_tokens", tokens).Dur("took", took).Msg("generation failed")
		return "", err
	}
	b.log.Debug().Int("prompt_tokens", tokens).Dur("took", took).Msg("generated")
	return out, nil
}
