package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/models"
)

const deepSeekBaseURL = "https://api.deepseek.com"

// DeepSeek talks to the DeepSeek chat API through its OpenAI-compatible
// endpoint. Token usage comes from the API response.
type DeepSeek struct {
	client  *openai.Client
	cfg     config.ProviderConfig
	pricing Pricing
	timeout time.Duration
	logger  *slog.Logger
}

// NewDeepSeek returns a provider for the DeepSeek API.
func NewDeepSeek(cfg config.ProviderConfig, pricing Pricing, logger *slog.Logger) *DeepSeek {
	return newDeepSeek(cfg, deepSeekBaseURL, pricing, logger)
}

func newDeepSeek(cfg config.ProviderConfig, baseURL string, pricing Pricing, logger *slog.Logger) *DeepSeek {
	clientCfg := openai.DefaultConfig(cfg.DeepSeekAPIKey)
	clientCfg.BaseURL = baseURL

	return &DeepSeek{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		pricing: pricing,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Name implements Provider.
func (d *DeepSeek) Name() string { return "deepseek" }

// Analyze implements Provider.
func (d *DeepSeek) Analyze(ctx context.Context, systemPrompt, comment string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            d.cfg.DeepSeekModel,
		MaxTokens:        d.cfg.DeepSeekMaxTokens,
		Temperature:      d.cfg.DeepSeekTemperature,
		TopP:             d.cfg.DeepSeekTopP,
		FrequencyPenalty: d.cfg.DeepSeekFrequencyPenalty,
		PresencePenalty:  d.cfg.DeepSeekPresencePenalty,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: comment},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("deepseek completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("deepseek returned no choices")
	}

	usage := models.TokenUsage{
		InputTokens:   resp.Usage.PromptTokens,
		OutputTokens:  resp.Usage.CompletionTokens,
		TotalTokens:   resp.Usage.TotalTokens,
		EstimatedCost: d.pricing.Cost(d.cfg.DeepSeekModel, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}
	d.logger.Debug("deepseek response",
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"cost", usage.EstimatedCost)

	return Result{Response: resp.Choices[0].Message.Content, Usage: usage}, nil
}

// CheckHealth implements Provider. It issues a minimal one-token completion
// to verify credentials and model access.
func (d *DeepSeek) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     d.cfg.DeepSeekModel,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hello, this is a test."},
		},
	})
	if err != nil {
		return fmt.Errorf("deepseek health check: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("deepseek health check returned no choices")
	}
	return nil
}
