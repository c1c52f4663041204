// ABOUTME: AnswerGenerator drafts cited answers from retrieved chunks
// ABOUTME: Each retry lowers the temperature and carries the judge's issues into the prompt
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/llm"
	"github.com/harper/wellrag/internal/logger"
)

// Generator drafts answers
type Generator interface {
	Generate(ctx context.Context, in PromptInput, attempt int) (string, error)
}

// AnswerGenerator calls the chat model with a mode profile
type AnswerGenerator struct {
	completer llm.Completer
	model     string
	gen       config.GenerationConfig
	timeouts  config.TimeoutConfig
	log       logger.Logger
}

// NewAnswerGenerator creates an AnswerGenerator
func NewAnswerGenerator(completer llm.Completer, cfg *config.Config, log logger.Logger) *AnswerGenerator {
	if log == nil {
		log = logger.NewNop()
	}
	return &AnswerGenerator{
		completer: completer,
		model:     cfg.Service.ChatModel,
		gen:       cfg.Generation,
		timeouts:  cfg.Timeouts,
		log:       log,
	}
}

// Temperature for a zero-based attempt, floored at 0
func (g *AnswerGenerator) Temperature(attempt int) float64 {
	return max(0, g.gen.Temperature-g.gen.RetryTemperatureStep*float64(attempt))
}

// Generate drafts an answer. attempt is zero for the first draft.
func (g *AnswerGenerator) Generate(ctx context.Context, in PromptInput, attempt int) (string, error) {
	if len(in.Chunks) == 0 {
		return "", errors.New("no context chunks to answer from")
	}

	maxTokens := g.gen.MaxTokens[string(in.Mode)]
	if maxTokens <= 0 {
		maxTokens = profileFor(in.Mode).maxTokens
	}

	opts := llm.CompletionOptions{
		Model:       g.model,
		Temperature: g.Temperature(attempt),
		MaxTokens:   maxTokens,
		Timeout:     g.timeouts.ForMode(in.Mode),
	}
	g.log.Debug("generating answer", "mode", in.Mode, "attempt", attempt, "temperature", opts.Temperature, "chunks", len(in.Chunks))

	out, err := g.completer.Complete(ctx, BuildPrompt(in), opts)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(out), nil
}
