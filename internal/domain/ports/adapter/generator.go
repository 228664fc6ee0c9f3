package adapter

import "context"

// TextGenerator is the single capability the workflows need from an LLM
// backend. Which provider answers is decided once at startup.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Provider names the backend for logs and metrics.
	Provider() string
}
