package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/models"
)

// Anthropic talks to the Anthropic Messages API. Token usage comes from the
// API response.
type Anthropic struct {
	client  anthropic.Client
	cfg     config.ProviderConfig
	pricing Pricing
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnthropic returns a provider for the Anthropic API.
func NewAnthropic(cfg config.ProviderConfig, pricing Pricing, logger *slog.Logger) *Anthropic {
	return &Anthropic{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey)),
		cfg:     cfg,
		pricing: pricing,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic" }

// Analyze implements Provider.
func (a *Anthropic) Analyze(ctx context.Context, systemPrompt, comment string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.AnthropicModel),
		MaxTokens:   int64(a.cfg.AnthropicMaxTokens),
		Temperature: anthropic.Float(0.1),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(comment)),
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("anthropic message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	inputTokens := int(msg.Usage.InputTokens)
	outputTokens := int(msg.Usage.OutputTokens)
	usage := models.TokenUsage{
		InputTokens:   inputTokens,
		OutputTokens:  outputTokens,
		TotalTokens:   inputTokens + outputTokens,
		EstimatedCost: a.pricing.Cost(a.cfg.AnthropicModel, inputTokens, outputTokens),
	}
	a.logger.Debug("anthropic response",
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"cost", usage.EstimatedCost)

	return Result{Response: b.String(), Usage: usage}, nil
}

// CheckHealth implements Provider.
func (a *Anthropic) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.AnthropicModel),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Hello, this is a test.")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check: %w", err)
	}
	return nil
}
