// Package llm wraps an eino chat model behind a plain completion call so
// the pipeline stages do not deal in message slices.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/estctiger/estctiger/config"
)

// Client is a thin completion wrapper over an eino chat model.
type Client struct {
	chatModel model.BaseChatModel
	logger    *zap.Logger
}

// New builds the chat model named by the configured provider.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch strings.ToLower(cfg.LLMProvider) {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BackendURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.ChatModel,
		})
	case "deepseek":
		chatModel, err = deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey: cfg.DeepSeekAPIKey,
			Model:  cfg.ChatModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s chat model: %w", cfg.LLMProvider, err)
	}

	logger.Info("chat model ready",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.ChatModel))

	return &Client{chatModel: chatModel, logger: logger}, nil
}

// Complete sends one system+user prompt pair and returns the assistant
// text.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}
	resp, err := c.chatModel.Generate(ctx, messages, model.WithMaxTokens(maxTokens))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return resp.Content, nil
}
