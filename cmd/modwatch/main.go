package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"log/slog"

	"github.com/modwatch/modwatch/internal/adaptive"
	"github.com/modwatch/modwatch/internal/bot"
	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/ledger"
	"github.com/modwatch/modwatch/internal/logging"
	"github.com/modwatch/modwatch/internal/metrics"
	"github.com/modwatch/modwatch/internal/provider"
	"github.com/modwatch/modwatch/internal/ratelimit"
	"github.com/modwatch/modwatch/internal/reddit"
	"github.com/modwatch/modwatch/internal/store"
)

func main() {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	logger.Info("starting modwatch",
		"subreddit", cfg.Reddit.Subreddit, "provider", cfg.Provider.Kind, "safe_mode", cfg.SafeMode)

	st, err := store.New(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to init state store", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	client := reddit.NewClient(cfg.Reddit, clock, logger)
	limiter := ratelimit.New(cfg.RateLimit, clock, logger)
	delay := adaptive.NewController(cfg.Adaptive)

	pricing, err := provider.LoadPricing(cfg.Provider.PricingFile)
	if err != nil {
		logger.Error("failed to load pricing table", "error", err)
		os.Exit(1)
	}
	prov, err := provider.New(cfg.Provider, pricing, logger)
	if err != nil {
		logger.Error("failed to init LLM provider", "error", err)
		os.Exit(1)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, collector, logger)
	}

	led := ledger.New(cfg.Ledger, cfg.DataDir,
		countingPublisher{pub: client, metrics: collector}, clock, nil, logger)

	mod := bot.New(cfg, bot.Deps{
		Platform: client,
		Provider: prov,
		Limiter:  limiter,
		Delay:    delay,
		Ledger:   led,
		Store:    st,
		Metrics:  collector,
		Clock:    clock,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		logger.Info("received signal, stopping after current work", "signal", sig.String())
		// Graceful stop: the loop exits at its next checkpoint and any
		// in-flight analysis or removal completes first.
		mod.Stop()
		sig = <-c
		logger.Info("received second signal, forcing shutdown", "signal", sig.String())
		cancel()
	}()

	if err := mod.Start(ctx); err != nil {
		logger.Error("startup checks failed", "error", err)
		os.Exit(1)
	}

	if err := mod.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("moderation loop error", "error", err)
		os.Exit(1)
	}

	stats := mod.Stats()
	totals := mod.TokenTotals()
	logger.Info("shutdown complete",
		"comments_analyzed", stats.CommentsAnalyzed,
		"comments_removed", stats.CommentsRemoved,
		"total_tokens", totals.TotalTokens,
		"estimated_cost", totals.EstimatedCost)
}

// countingPublisher counts successful wiki publications.
type countingPublisher struct {
	pub     ledger.Publisher
	metrics *metrics.Collector
}

func (p countingPublisher) PublishPage(ctx context.Context, page, content, reason string) error {
	if err := p.pub.PublishPage(ctx, page, content, reason); err != nil {
		return err
	}
	p.metrics.LedgerPublished()
	return nil
}

func serveMetrics(addr string, collector *metrics.Collector, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", collector.Handler())

	logger.Info("metrics listener started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics listener error", "error", err)
	}
}
