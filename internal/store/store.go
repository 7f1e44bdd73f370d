// Package store persists bot state as JSON files under a data directory,
// one file per concern. Missing files fall back to zero values so the bot
// can start fresh; malformed files are logged and treated the same rather
// than aborting startup.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	cursorFile     = "last_check.json"
	statisticsFile = "statistics.json"
	tokenUsageFile = "token_usage.json"
)

// Store reads and writes state files. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

// New creates the data directory if needed and returns a store rooted there.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

type cursorData struct {
	LastCheck time.Time `json:"last_check"`
}

// LoadCursor returns the timestamp of the last completed poll. The second
// return is false when no cursor has been saved yet.
func (s *Store) LoadCursor() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data cursorData
	if !s.read(cursorFile, &data) {
		return time.Time{}, false
	}
	return data.LastCheck, true
}

// SaveCursor records the poll cursor.
func (s *Store) SaveCursor(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(cursorFile, cursorData{LastCheck: t})
}

// Statistics tracks lifetime moderation counts.
type Statistics struct {
	CommentsAnalyzed int       `json:"comments_analyzed"`
	CommentsRemoved  int       `json:"comments_removed"`
	LastUpdated      time.Time `json:"last_updated"`
	RemovalRate      string    `json:"removal_rate"`
}

// LoadStatistics returns persisted statistics, or zeroes when absent.
func (s *Store) LoadStatistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Statistics
	if !s.read(statisticsFile, &stats) {
		return Statistics{}
	}
	return stats
}

// SaveStatistics persists statistics, stamping the update time and derived
// removal rate.
func (s *Store) SaveStatistics(stats Statistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats.LastUpdated = time.Now().UTC()
	stats.RemovalRate = "0%"
	if stats.CommentsAnalyzed > 0 {
		stats.RemovalRate = fmt.Sprintf("%.2f%%", float64(stats.CommentsRemoved)/float64(stats.CommentsAnalyzed)*100)
	}
	return s.write(statisticsFile, stats)
}

// TokenTotals accumulates LLM token consumption and estimated spend across
// the bot's lifetime.
type TokenTotals struct {
	InputTokens   int       `json:"total_input_tokens"`
	OutputTokens  int       `json:"total_output_tokens"`
	TotalTokens   int       `json:"total_tokens"`
	EstimatedCost float64   `json:"total_cost"`
	LastUpdated   time.Time `json:"last_updated"`
}

// LoadTokenTotals returns persisted token totals, or zeroes when absent.
func (s *Store) LoadTokenTotals() TokenTotals {
	s.mu.Lock()
	defer s.mu.Unlock()

	var totals TokenTotals
	if !s.read(tokenUsageFile, &totals) {
		return TokenTotals{}
	}
	return totals
}

// SaveTokenTotals persists token totals, stamping the update time.
func (s *Store) SaveTokenTotals(totals TokenTotals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals.LastUpdated = time.Now().UTC()
	return s.write(tokenUsageFile, totals)
}

// read unmarshals the named file into v. Returns false when the file is
// absent, unreadable, or malformed.
func (s *Store) read(name string, v any) bool {
	path := filepath.Join(s.dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("reading state file", "file", name, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.logger.Warn("state file malformed, using defaults", "file", name, "error", err)
		return false
	}
	return true
}

// write marshals v to a temp file then renames it into place so a crash
// mid-write never leaves a truncated state file.
func (s *Store) write(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}
