// Package ledger keeps a public record of removed comments and publishes it
// to a subreddit wiki page as a Markdown report.
//
// Entries accumulate in a local JSON file; once the pending count reaches
// the configured threshold the page is republished automatically. Automatic
// publishes respect a minimum interval, manual ones bypass it. The pending
// counter only resets after a successful publish so a failed attempt is
// retried when the next removal lands.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/notify"
)

// Publisher writes a wiki page on the platform.
type Publisher interface {
	PublishPage(ctx context.Context, page, content, reason string) error
}

// Entry is one removed comment in the ledger.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	CommentText string    `json:"comment_full_text"`
	CommentID   string    `json:"comment_id"`
	Permalink   string    `json:"permalink"`
	Reason      string    `json:"removal_reason"`
	ContextURL  string    `json:"context_url"`
}

// Status is a snapshot of the ledger for operators.
type Status struct {
	Enabled           bool
	TotalEntries      int
	RemovalCount      int
	PendingCount      int
	UntilAutoPublish  int
	LastPublished     time.Time
	LastManualPublish time.Time
}

type ledgerData struct {
	Entries          []Entry   `json:"entries"`
	RemovalCount     int       `json:"removal_count"`
	PendingCount     int       `json:"pending_count"`
	LastUpdated      time.Time `json:"last_updated"`
	LastManualUpdate time.Time `json:"last_manual_update"`
}

const publishReason = "Updated removed comments transparency log"

// Ledger records removals and manages wiki publication. Safe for concurrent
// use.
type Ledger struct {
	mu sync.Mutex

	cfg      config.LedgerConfig
	file     string
	pub      Publisher
	clock    clockwork.Clock
	notifier notify.Notifier
	logger   *slog.Logger

	data        ledgerData
	lastPublish time.Time
}

// New loads any persisted ledger state from the data directory and returns
// the ledger. A nil notifier discards publication events.
func New(cfg config.LedgerConfig, dataDir string, pub Publisher, clock clockwork.Clock, notifier notify.Notifier, logger *slog.Logger) *Ledger {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	l := &Ledger{
		cfg:      cfg,
		file:     filepath.Join(dataDir, "ledger.json"),
		pub:      pub,
		clock:    clock,
		notifier: notifier,
		logger:   logger,
	}
	l.load()
	return l
}

// Append records a removed comment and persists the ledger. When the pending
// count reaches the auto-publish threshold, a publish is attempted; failure
// keeps the counter so the publish retries on the next removal.
func (l *Ledger) Append(ctx context.Context, commentID, commentText, permalink, reason string) error {
	if !l.cfg.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		ID:          uuid.NewString(),
		Timestamp:   l.clock.Now().UTC(),
		CommentText: commentText,
		CommentID:   commentID,
		Permalink:   absoluteURL(permalink),
		Reason:      reason,
		ContextURL:  absoluteURL(permalink) + "?context=3",
	}

	l.data.Entries = append(l.data.Entries, entry)
	l.data.RemovalCount++
	l.data.PendingCount++

	if err := l.save(); err != nil {
		return err
	}
	l.logger.Info("ledger entry recorded", "comment_id", commentID, "pending", l.data.PendingCount)

	if l.data.PendingCount >= l.cfg.AutoThreshold {
		l.logger.Info("auto-publish threshold reached",
			"pending", l.data.PendingCount, "threshold", l.cfg.AutoThreshold)
		if err := l.publish(ctx, false); err != nil {
			l.logger.Warn("auto-publish failed, will retry on next removal", "error", err)
		}
	}

	return nil
}

// Publish pushes the report to the wiki page. Manual publishes bypass the
// minimum publish interval.
func (l *Ledger) Publish(ctx context.Context, manual bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cfg.Enabled {
		return fmt.Errorf("transparency ledger is disabled")
	}
	return l.publish(ctx, manual)
}

// publish requires l.mu held.
func (l *Ledger) publish(ctx context.Context, manual bool) error {
	now := l.clock.Now()
	if !manual && !l.lastPublish.IsZero() {
		if since := now.Sub(l.lastPublish); since < l.cfg.MinPublishDelay {
			return fmt.Errorf("publish rate limit active, %s remaining", l.cfg.MinPublishDelay-since)
		}
	}

	content := l.render(now.UTC())
	if err := l.pub.PublishPage(ctx, l.cfg.PageName, content, publishReason); err != nil {
		return fmt.Errorf("publishing ledger page: %w", err)
	}

	l.lastPublish = now
	l.data.LastUpdated = now.UTC()
	if manual {
		l.data.LastManualUpdate = l.data.LastUpdated
	}
	l.data.PendingCount = 0
	if err := l.save(); err != nil {
		l.logger.Warn("saving ledger after publish", "error", err)
	}

	l.logger.Info("ledger published", "page", l.cfg.PageName, "manual", manual, "entries", len(l.data.Entries))
	l.notifier.Notify(notify.Event{
		Kind:    notify.KindLedgerPublished,
		Message: fmt.Sprintf("published %d entries to wiki page %s", len(l.data.Entries), l.cfg.PageName),
	})
	return nil
}

// Status returns a snapshot for operators.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Status{
		Enabled:           l.cfg.Enabled,
		TotalEntries:      len(l.data.Entries),
		RemovalCount:      l.data.RemovalCount,
		PendingCount:      l.data.PendingCount,
		UntilAutoPublish:  l.cfg.AutoThreshold - l.data.PendingCount,
		LastPublished:     l.data.LastUpdated,
		LastManualPublish: l.data.LastManualUpdate,
	}
}

// Clear discards all recorded entries and counters.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.data = ledgerData{}
	return l.save()
}

// render produces the Markdown report, newest removals first.
func (l *Ledger) render(now time.Time) string {
	const timeLayout = "2006-01-02 15:04:05 UTC"

	var b strings.Builder
	b.WriteString("# Removed Comments\n\n")

	if len(l.data.Entries) == 0 {
		b.WriteString("No comments have been removed yet.\n\n")
		b.WriteString("---\n\n")
		b.WriteString("**Last Updated:** " + now.Format(timeLayout) + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "**Total Removed:** %d\n", l.data.RemovalCount)
	fmt.Fprintf(&b, "**Last Updated:** %s\n\n---\n\n", now.Format(timeLayout))

	sorted := make([]Entry, len(l.data.Entries))
	copy(sorted, l.data.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	for i, e := range sorted {
		fmt.Fprintf(&b, "## Removed Comment #%d\n", i+1)
		fmt.Fprintf(&b, "**Removed:** %s\n", e.Timestamp.Format(timeLayout))
		fmt.Fprintf(&b, "**Reason:** %s\n", e.Reason)
		fmt.Fprintf(&b, "**Context:** [View Thread](%s)\n\n", e.ContextURL)
		b.WriteString("**Comment Text:**\n```\n")
		b.WriteString(e.CommentText)
		b.WriteString("\n```\n\n---\n\n")
	}

	return b.String()
}

func (l *Ledger) load() {
	raw, err := os.ReadFile(l.file)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("reading ledger file", "error", err)
		}
		return
	}
	if err := json.Unmarshal(raw, &l.data); err != nil {
		l.logger.Warn("ledger file malformed, starting empty", "error", err)
		l.data = ledgerData{}
	}
}

func (l *Ledger) save() error {
	raw, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	tmp := l.file + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := os.Rename(tmp, l.file); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func absoluteURL(permalink string) string {
	if strings.HasPrefix(permalink, "http") {
		return permalink
	}
	return "https://reddit.com" + permalink
}
