package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"log/slog"

	"github.com/modwatch/modwatch/internal/config"
)

func TestNewConfiguresSupportedFormats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		level  slog.Level
	}{
		{name: "json", format: "json", level: slog.LevelWarn},
		{name: "text", format: "text", level: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closer, err := New(config.LoggingConfig{Level: tt.level, Format: tt.format})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			defer closer.Close()

			if logger == nil {
				t.Fatal("expected non-nil logger")
			}

			levels := []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError}
			ctx := context.Background()
			for _, lvl := range levels {
				enabled := logger.Enabled(ctx, lvl)
				expected := lvl >= tt.level
				if enabled != expected {
					t.Fatalf("logger level %v enabled(%v)=%t, want %t", tt.level, lvl, enabled, expected)
				}
			}

			if logger.Handler() == nil {
				t.Fatal("expected handler to be configured")
			}
		})
	}
}

func TestNewWithUnsupportedFormat(t *testing.T) {
	_, _, err := New(config.LoggingConfig{Level: slog.LevelInfo, Format: "pretty"})
	if err == nil {
		t.Fatal("expected error for unsupported format, got nil")
	}

	if !strings.Contains(err.Error(), "unsupported log format") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")

	logger, closer, err := New(config.LoggingConfig{Level: slog.LevelInfo, Format: "text", File: path})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("startup", "component", "test")
	if err := closer.Close(); err != nil {
		t.Fatalf("closing log file: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "startup") {
		t.Fatalf("expected log file to contain the record, got %q", string(data))
	}
}
