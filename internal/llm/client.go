// ABOUTME: Capability interfaces for the completion and embedding service
// ABOUTME: The pipeline depends on these, not on a concrete model client
package llm

import (
	"context"
	"time"
)

// CompletionOptions tunes a single completion call
type CompletionOptions struct {
	Model       string
	System      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Completer turns a prompt into text
type Completer interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// CompleterFunc adapts a function to Completer
type CompleterFunc func(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	return f(ctx, prompt, opts)
}

// EmbedderFunc adapts a function to Embedder
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Service is a backend that both completes and embeds
type Service interface {
	Completer
	Embedder
}
