package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/models"
)

// Ollama talks to a local Ollama server over its native HTTP API. Token
// usage is estimated because the generate endpoint does not report it, and
// a local model costs nothing.
type Ollama struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *retryablehttp.Client
	logger  *slog.Logger
}

// NewOllama returns a provider for the configured Ollama server.
func NewOllama(cfg config.ProviderConfig, logger *slog.Logger) *Ollama {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.RetryMax = 2
	client.Logger = nil

	return &Ollama{
		baseURL: strings.TrimRight(cfg.OllamaURL, "/"),
		model:   cfg.OllamaModel,
		timeout: cfg.Timeout,
		client:  client,
		logger:  logger,
	}
}

// Name implements Provider.
func (o *Ollama) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Analyze implements Provider.
func (o *Ollama) Analyze(ctx context.Context, systemPrompt, comment string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	fullPrompt := fmt.Sprintf("%s\n\nComment to analyze: %s", systemPrompt, comment)
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  o.model,
		Prompt: fullPrompt,
		Stream: false,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding generate request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, body)
	}

	var generated ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return Result{}, fmt.Errorf("decoding ollama response: %w", err)
	}

	inputTokens := EstimateTokens(fullPrompt)
	outputTokens := EstimateTokens(generated.Response)
	return Result{
		Response: generated.Response,
		Usage: models.TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
	}, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// CheckHealth implements Provider. It verifies the server responds and the
// configured model is present in the local library.
func (o *Ollama) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building tags request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to ollama at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags returned status %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decoding tags response: %w", err)
	}

	available := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if strings.Contains(m.Name, o.model) {
			o.logger.Info("ollama model available", "model", o.model)
			return nil
		}
		available = append(available, m.Name)
	}

	return fmt.Errorf("model %q not found, available: %v", o.model, available)
}
