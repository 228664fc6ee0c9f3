package ai

import (
	"context"

	"freshdesk-simulator/internal/domain/ports/adapter"
)

var _ adapter.TextGenerator = (*limitedGenerator)(nil)

type limitedGenerator struct {
	inner adapter.TextGenerator
	sem   chan struct{}
}

// NewLimitedGenerator caps concurrent calls into inner. Waiting callers
// give up when their context ends.
func NewLimitedGenerator(inner adapter.TextGenerator, maxConcurrent int) adapter.TextGenerator {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGenerator{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGenerator) Provider() string { return l.inner.Provider() }

func (l *limitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Generate(ctx, prompt)
}
