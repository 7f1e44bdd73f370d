package provider

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPricing holds per-thousand-token USD rates for one model.
type ModelPricing struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Pricing maps model names to rates. Models not listed cost zero, which is
// also how local backends are represented.
type Pricing struct {
	Models map[string]ModelPricing `yaml:"models"`
}

// DefaultPricing covers the bundled cloud models.
func DefaultPricing() Pricing {
	return Pricing{Models: map[string]ModelPricing{
		"deepseek-chat":           {InputPer1K: 0.00014, OutputPer1K: 0.00028},
		"claude-3-5-haiku-latest": {InputPer1K: 0.0008, OutputPer1K: 0.004},
	}}
}

// LoadPricing reads a pricing table from a YAML file. An empty path returns
// the default table.
func LoadPricing(path string) (Pricing, error) {
	if path == "" {
		return DefaultPricing(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("reading pricing file: %w", err)
	}

	var p Pricing
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Pricing{}, fmt.Errorf("parsing pricing file: %w", err)
	}
	return p, nil
}

// Cost returns the estimated USD cost for a call, rounded to six decimal
// places. Unknown models cost zero.
func (p Pricing) Cost(model string, inputTokens, outputTokens int) float64 {
	rates, ok := p.Models[model]
	if !ok {
		return 0
	}

	cost := float64(inputTokens)/1000*rates.InputPer1K + float64(outputTokens)/1000*rates.OutputPer1K
	return math.Round(cost*1e6) / 1e6
}
