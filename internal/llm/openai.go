// Package llm adapts an OpenAI-compatible chat endpoint to the
// domain.LanguageModel port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"fedquery/internal/config"
	"fedquery/internal/domain"
)

// OpenAIClient calls one OpenAI-compatible chat model. Completions run at
// temperature 0 in JSON mode. The adapter never retries; a model timeout
// aborts the whole request per the error policy.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIClient builds a client from config. BaseURL may point at any
// OpenAI-compatible gateway.
func NewOpenAIClient(cfg config.LLMConfig, logger *slog.Logger) *OpenAIClient {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "llm"),
	}
}

// Complete implements domain.LanguageModel.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		// A literal 0 is dropped by the client's omitempty and the server
		// would fall back to its default; the smallest serializable float
		// keeps extraction deterministic.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	c.logger.Debug("completion finished",
		"model", c.model,
		"elapsed", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

var _ domain.LanguageModel = (*OpenAIClient)(nil)
