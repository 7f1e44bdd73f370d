package provider

import (
	"fmt"
	"log/slog"

	"github.com/modwatch/modwatch/internal/config"
)

// New constructs the provider selected by the configuration. Config loading
// validates credentials, so an unknown kind here is the only failure mode.
func New(cfg config.ProviderConfig, pricing Pricing, logger *slog.Logger) (Provider, error) {
	switch cfg.Kind {
	case config.ProviderOllama:
		return NewOllama(cfg, logger), nil
	case config.ProviderDeepSeek:
		return NewDeepSeek(cfg, pricing, logger), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg, pricing, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Kind)
	}
}
