// ABOUTME: OpenAI-compatible client for completions and embeddings
// ABOUTME: Talks to a local Ollama /v1 endpoint by default, with retries and ServiceUnavailable mapping
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/wellrag/internal/config"
	"github.com/harper/wellrag/internal/logger"
	"github.com/harper/wellrag/internal/models"
	"github.com/harper/wellrag/internal/util"
)

// defaultCallTimeout applies when a caller passes no timeout
const defaultCallTimeout = 120 * time.Second

// OpenAIClient wraps the go-openai client with retry logic
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	maxRetries     int
	retryDelay     time.Duration
	log            logger.Logger
}

// NewOpenAIClient creates a client for the configured endpoint
func NewOpenAIClient(cfg config.ServiceConfig, log logger.Logger) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, models.NewConfigError("service.base_url is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but go-openai always sends one
		apiKey = "ollama"
	}
	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		embeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryBaseDelay,
		log:            log.With("component", "llm"),
	}, nil
}

// Complete runs a chat completion. opts.Model overrides the default chat model.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.chatModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if opts.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: opts.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	var content string
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, isRetryable, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout(opts.Timeout))
		defer cancel()

		start := time.Now()
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: float32(opts.Temperature),
			MaxTokens:   opts.MaxTokens,
		})
		if err != nil {
			c.log.Warn("completion attempt failed", "model", model, "attempt", attempt+1, "error", err)
			return fmt.Errorf("attempt %d: %w", attempt+1, err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("attempt %d: no completion choices returned", attempt+1)
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		c.log.Debug("completion done", "model", model, "elapsed", time.Since(start))
		return nil
	})
	if err != nil {
		return "", models.Unavailable("completion", model, err)
	}
	return content, nil
}

// Embed returns the embedding vector for text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	var vector []float64
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, isRetryable, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout(0))
		defer cancel()

		resp, err := c.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		if err != nil {
			c.log.Warn("embedding attempt failed", "model", c.embeddingModel, "attempt", attempt+1, "error", err)
			return fmt.Errorf("attempt %d: %w", attempt+1, err)
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("attempt %d: no embeddings returned", attempt+1)
		}

		// Convert []float32 to []float64
		embedding32 := resp.Data[0].Embedding
		vector = make([]float64, len(embedding32))
		for i, v := range embedding32 {
			vector[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, models.Unavailable("embedding", string(c.embeddingModel), err)
	}
	return vector, nil
}

func callTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultCallTimeout
	}
	return d
}

// isRetryable treats transport failures, timeouts, 429 and 5xx as transient
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
