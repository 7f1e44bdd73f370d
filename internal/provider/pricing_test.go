package provider

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
		{"a comment of modest length here", 7},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestPricingCost(t *testing.T) {
	p := DefaultPricing()

	if got := p.Cost("deepseek-chat", 1000, 1000); got != 0.00042 {
		t.Errorf("Cost(deepseek-chat, 1000, 1000) = %v, want 0.00042", got)
	}
	if got := p.Cost("unknown-model", 1000, 1000); got != 0 {
		t.Errorf("Cost for unknown model = %v, want 0", got)
	}
}

func TestPricingCostRoundsToSixPlaces(t *testing.T) {
	p := DefaultPricing()

	got := p.Cost("deepseek-chat", 1234, 567)
	if got != 0.000332 {
		t.Errorf("Cost(deepseek-chat, 1234, 567) = %v, want 0.000332", got)
	}
}

func TestLoadPricingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	content := []byte(`models:
  my-model:
    input_per_1k: 0.001
    output_per_1k: 0.002
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing pricing file: %v", err)
	}

	p, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("LoadPricing returned error: %v", err)
	}
	if got := p.Cost("my-model", 1000, 1000); got != 0.003 {
		t.Errorf("Cost(my-model, 1000, 1000) = %v, want 0.003", got)
	}
}

func TestLoadPricingEmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPricing("")
	if err != nil {
		t.Fatalf("LoadPricing returned error: %v", err)
	}
	if _, ok := p.Models["deepseek-chat"]; !ok {
		t.Error("expected default pricing to include deepseek-chat")
	}
}

func TestLoadPricingBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	if err := os.WriteFile(path, []byte("models: [not a map"), 0o644); err != nil {
		t.Fatalf("writing pricing file: %v", err)
	}
	if _, err := LoadPricing(path); err == nil {
		t.Fatal("expected error for malformed pricing file")
	}
}
