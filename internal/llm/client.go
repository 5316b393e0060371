package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"emart_admin/internal/config"

	openrouter "github.com/revrost/go-openrouter"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("llm is not configured")
	ErrEmptyResponse = errors.New("llm returned empty response")
)

type ToolCall = openrouter.ToolCall

type Client struct {
	client  *openrouter.Client
	model   string
	logger  *zap.Logger
	enabled bool
}

func NewClient(cfg config.Config, logger *zap.Logger) (*Client, error) {
	logger = logger.Named("llm")
	model := strings.TrimSpace(cfg.LLMModel)
	apiKey := strings.TrimSpace(cfg.LLMAPIKey)

	if model == "" || apiKey == "" {
		logger.Debug("llm config is incomplete; narration disabled",
			zap.Bool("has_model", model != ""),
			zap.Bool("has_api_key", apiKey != ""),
		)
		return &Client{
			model:  model,
			logger: logger,
		}, nil
	}

	cfgClient := openrouter.DefaultConfig(apiKey)
	if strings.TrimSpace(cfg.LLMBaseURL) != "" {
		cfgClient.BaseURL = strings.TrimSpace(cfg.LLMBaseURL)
	}
	cfgClient.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:  openrouter.NewClientWithConfig(*cfgClient),
		model:   model,
		logger:  logger,
		enabled: true,
	}, nil
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Complete sends one system+user exchange and returns the trimmed answer.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.ChatWithMessages(ctx, []openrouter.ChatCompletionMessage{
		openrouter.SystemMessage(systemPrompt),
		openrouter.UserMessage(userPrompt),
	}, nil)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content.Text), nil
}

func (c *Client) ChatWithMessages(ctx context.Context, messages []openrouter.ChatCompletionMessage, tools []openrouter.Tool) (openrouter.ChatCompletionResponse, error) {
	if c == nil || !c.enabled || c.client == nil {
		return openrouter.ChatCompletionResponse{}, ErrNotConfigured
	}

	request := openrouter.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}

	resp, err := c.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return openrouter.ChatCompletionResponse{}, err
	}
	c.logUsage(resp)
	return resp, nil
}

func (c *Client) logUsage(resp openrouter.ChatCompletionResponse) {
	if resp.Usage == nil {
		return
	}
	c.logger.Info("llm usage",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Float64("cost", resp.Usage.Cost),
	)
}
