package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Reddit    RedditConfig
	Provider  ProviderConfig
	Adaptive  AdaptiveConfig
	RateLimit RateLimitConfig
	Ledger    LedgerConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig

	// SafeMode logs would-remove decisions without calling the platform's
	// removal action. Defaults to on.
	SafeMode bool

	// ModeratorAllowlist holds account names whose comments are never
	// analyzed. The bot's own account is always skipped regardless.
	ModeratorAllowlist []string

	// SystemPrompt overrides the built-in moderation prompt when set.
	SystemPrompt string

	// DataDir is the directory for persisted JSON state.
	DataDir string
}

// RedditConfig holds platform API credentials and targeting.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	Subreddit    string

	// FirstRunLimit bounds how many recent comments are fetched when no
	// poll cursor exists yet.
	FirstRunLimit int
	Timeout       time.Duration
}

// ProviderKind selects the LLM backend.
type ProviderKind string

const (
	ProviderOllama    ProviderKind = "ollama"
	ProviderDeepSeek  ProviderKind = "deepseek"
	ProviderAnthropic ProviderKind = "anthropic"
)

// ProviderConfig holds LLM backend selection and per-backend parameters.
type ProviderConfig struct {
	Kind        ProviderKind
	Timeout     time.Duration
	PricingFile string

	OllamaURL   string
	OllamaModel string

	DeepSeekAPIKey           string
	DeepSeekModel            string
	DeepSeekMaxTokens        int
	DeepSeekTemperature      float32
	DeepSeekTopP             float32
	DeepSeekFrequencyPenalty float32
	DeepSeekPresencePenalty  float32

	AnthropicAPIKey    string
	AnthropicModel     string
	AnthropicMaxTokens int
}

// AdaptiveConfig controls poll interval growth under inactivity.
type AdaptiveConfig struct {
	BaseInterval time.Duration
	MaxDelay     time.Duration
	GrowthPct    float64
}

// RateLimitConfig controls outbound call spacing toward the platform.
type RateLimitConfig struct {
	MinDelay          time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int
}

// LedgerConfig controls the transparency ledger and its publication.
type LedgerConfig struct {
	Enabled         bool
	PageName        string
	AutoThreshold   int
	MinPublishDelay time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
	File   string
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string
}

const (
	defaultAdaptiveBase   = 3 * time.Second
	defaultAdaptiveMax    = 900 * time.Second
	defaultAdaptiveGrowth = 20.0

	defaultMinRequestDelay   = 7 * time.Second
	defaultMaxRequestDelay   = 12 * time.Second
	defaultRequestsPerMinute = 4

	defaultProviderTimeout = 500 * time.Second
	defaultRedditTimeout   = 30 * time.Second
	defaultFirstRunLimit   = 100

	defaultLedgerPage      = "removed_comments"
	defaultLedgerThreshold = 10
	defaultPublishDelay    = 60 * time.Second

	defaultLogFormat = "text"
	defaultDataDir   = "./data"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided. Missing platform credentials are a fatal
// configuration error and abort initialization.
func Load() (Config, error) {
	cfg := Config{
		Reddit: RedditConfig{
			ClientID:      os.Getenv("REDDIT_CLIENT_ID"),
			ClientSecret:  os.Getenv("REDDIT_CLIENT_SECRET"),
			Username:      os.Getenv("REDDIT_USERNAME"),
			Password:      os.Getenv("REDDIT_PASSWORD"),
			UserAgent:     os.Getenv("REDDIT_USER_AGENT"),
			Subreddit:     os.Getenv("SUBREDDIT_TO_MONITOR"),
			FirstRunLimit: defaultFirstRunLimit,
			Timeout:       defaultRedditTimeout,
		},
		Provider: ProviderConfig{
			Kind:        ProviderKind(strings.ToLower(getEnv("LLM_PROVIDER", "deepseek"))),
			Timeout:     defaultProviderTimeout,
			PricingFile: getEnv("PRICING_FILE", ""),

			OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
			OllamaModel: getEnv("OLLAMA_MODEL", "gemma3:latest"),

			DeepSeekAPIKey:           os.Getenv("DEEPSEEK_API_KEY"),
			DeepSeekModel:            getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
			DeepSeekMaxTokens:        1000,
			DeepSeekTemperature:      0.1,
			DeepSeekTopP:             0.9,
			DeepSeekFrequencyPenalty: 0.5,
			DeepSeekPresencePenalty:  0.0,

			AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			AnthropicMaxTokens: 1000,
		},
		Adaptive: AdaptiveConfig{
			BaseInterval: defaultAdaptiveBase,
			MaxDelay:     defaultAdaptiveMax,
			GrowthPct:    defaultAdaptiveGrowth,
		},
		RateLimit: RateLimitConfig{
			MinDelay:          defaultMinRequestDelay,
			MaxDelay:          defaultMaxRequestDelay,
			RequestsPerMinute: defaultRequestsPerMinute,
		},
		Ledger: LedgerConfig{
			Enabled:         parseBool(getEnv("WIKI_TRANSPARENCY_ENABLED", "false")),
			PageName:        getEnv("WIKI_PAGE_NAME", defaultLedgerPage),
			AutoThreshold:   defaultLedgerThreshold,
			MinPublishDelay: defaultPublishDelay,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
			File:   getEnv("LOG_FILE", ""),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		SafeMode:     parseBool(getEnv("SAFE_MODE", "true")),
		SystemPrompt: os.Getenv("MODERATION_PROMPT"),
		DataDir:      getEnv("DATA_DIR", defaultDataDir),
	}

	required := []struct{ name, value string }{
		{"REDDIT_CLIENT_ID", cfg.Reddit.ClientID},
		{"REDDIT_CLIENT_SECRET", cfg.Reddit.ClientSecret},
		{"REDDIT_USERNAME", cfg.Reddit.Username},
		{"REDDIT_PASSWORD", cfg.Reddit.Password},
		{"REDDIT_USER_AGENT", cfg.Reddit.UserAgent},
		{"SUBREDDIT_TO_MONITOR", cfg.Reddit.Subreddit},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch cfg.Provider.Kind {
	case ProviderOllama:
	case ProviderDeepSeek:
		if cfg.Provider.DeepSeekAPIKey == "" {
			return Config{}, fmt.Errorf("DEEPSEEK_API_KEY is required when using the deepseek provider")
		}
	case ProviderAnthropic:
		if cfg.Provider.AnthropicAPIKey == "" {
			return Config{}, fmt.Errorf("ANTHROPIC_API_KEY is required when using the anthropic provider")
		}
	default:
		return Config{}, fmt.Errorf("invalid LLM provider: %q (must be ollama, deepseek, or anthropic)", cfg.Provider.Kind)
	}

	if v := os.Getenv("ADAPTIVE_BASE_INTERVAL"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ADAPTIVE_BASE_INTERVAL: %w", err)
		}
		cfg.Adaptive.BaseInterval = d
	}
	if v := os.Getenv("ADAPTIVE_MAX_DELAY"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ADAPTIVE_MAX_DELAY: %w", err)
		}
		cfg.Adaptive.MaxDelay = d
	}
	if v := os.Getenv("ADAPTIVE_INCREASE_PERCENTAGE"); v != "" {
		pct, err := strconv.ParseFloat(v, 64)
		if err != nil || pct < 0 {
			return Config{}, fmt.Errorf("invalid ADAPTIVE_INCREASE_PERCENTAGE: must be a non-negative number")
		}
		cfg.Adaptive.GrowthPct = pct
	}
	if cfg.Adaptive.MaxDelay < cfg.Adaptive.BaseInterval {
		return Config{}, fmt.Errorf("ADAPTIVE_MAX_DELAY must not be less than ADAPTIVE_BASE_INTERVAL")
	}

	if v := os.Getenv("MIN_REQUEST_DELAY"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MIN_REQUEST_DELAY: %w", err)
		}
		cfg.RateLimit.MinDelay = d
	}
	if v := os.Getenv("MAX_REQUEST_DELAY"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MAX_REQUEST_DELAY: %w", err)
		}
		cfg.RateLimit.MaxDelay = d
	}
	if cfg.RateLimit.MaxDelay < cfg.RateLimit.MinDelay {
		return Config{}, fmt.Errorf("MAX_REQUEST_DELAY must not be less than MIN_REQUEST_DELAY")
	}
	if v := os.Getenv("MAX_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid MAX_REQUESTS_PER_MINUTE: must be a positive integer")
		}
		cfg.RateLimit.RequestsPerMinute = n
	}

	if v := os.Getenv("WIKI_AUTO_UPDATE_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid WIKI_AUTO_UPDATE_THRESHOLD: must be a positive integer")
		}
		cfg.Ledger.AutoThreshold = n
	}
	if v := os.Getenv("WIKI_RATE_LIMIT_DELAY"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid WIKI_RATE_LIMIT_DELAY: %w", err)
		}
		cfg.Ledger.MinPublishDelay = d
	}

	if v := os.Getenv("LLM_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Provider.Timeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	allowlist := []string{"AutoModerator"}
	if v := os.Getenv("MODERATOR_ALLOWLIST"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				allowlist = append(allowlist, name)
			}
		}
	}
	cfg.ModeratorAllowlist = allowlist

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative number of seconds")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func parseBool(raw string) bool {
	return strings.EqualFold(raw, "true") || raw == "1"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
