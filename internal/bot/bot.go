// Package bot runs the moderation loop: poll the subreddit, analyze each
// new comment with the configured LLM, act on the verdict, and record
// removals in the transparency ledger.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/modwatch/modwatch/internal/adaptive"
	"github.com/modwatch/modwatch/internal/config"
	"github.com/modwatch/modwatch/internal/decision"
	"github.com/modwatch/modwatch/internal/errclass"
	"github.com/modwatch/modwatch/internal/ledger"
	"github.com/modwatch/modwatch/internal/metrics"
	"github.com/modwatch/modwatch/internal/models"
	"github.com/modwatch/modwatch/internal/notify"
	"github.com/modwatch/modwatch/internal/provider"
	"github.com/modwatch/modwatch/internal/store"
)

// State is the moderator's lifecycle state.
type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StatePaused   State = "PAUSED"
	StateStopping State = "STOPPING"
)

// Platform is the subset of the platform API the moderator needs.
type Platform interface {
	Me(ctx context.Context) (string, error)
	ListCommentsSince(ctx context.Context, since time.Time) ([]models.Comment, error)
	RemoveComment(ctx context.Context, commentID string) error
}

// Limiter spaces outbound platform calls.
type Limiter interface {
	WaitIfNeeded(ctx context.Context) error
}

// Deps bundles the moderator's collaborators.
type Deps struct {
	Platform Platform
	Provider provider.Provider
	Limiter  Limiter
	Delay    *adaptive.Controller
	Ledger   *ledger.Ledger
	Store    *store.Store
	Metrics  *metrics.Collector
	Notifier notify.Notifier
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Moderator orchestrates polling, analysis, and moderation actions. Safe
// for concurrent control (Pause, Resume, Stop, SwitchProvider) while Run
// executes.
type Moderator struct {
	cfg config.Config

	platform Platform
	limiter  Limiter
	delay    *adaptive.Controller
	ledger   *ledger.Ledger
	store    *store.Store
	metrics  *metrics.Collector
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   *slog.Logger

	rateBackoff   *errclass.RateLimitBackoff
	serverBackoff *errclass.ServerBackoff

	systemPrompt string
	allowlist    map[string]struct{}

	mu       sync.Mutex
	state    State
	provider provider.Provider
	stats    store.Statistics
	totals   store.TokenTotals
}

// New assembles a moderator. State starts at STOPPED; Start performs the
// connectivity checks.
func New(cfg config.Config, deps Deps) *Moderator {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	allowlist := make(map[string]struct{}, len(cfg.ModeratorAllowlist))
	for _, name := range cfg.ModeratorAllowlist {
		allowlist[name] = struct{}{}
	}

	return &Moderator{
		cfg:           cfg,
		platform:      deps.Platform,
		limiter:       deps.Limiter,
		delay:         deps.Delay,
		ledger:        deps.Ledger,
		store:         deps.Store,
		metrics:       deps.Metrics,
		notifier:      deps.Notifier,
		clock:         deps.Clock,
		logger:        deps.Logger,
		rateBackoff:   errclass.NewRateLimitBackoff(),
		serverBackoff: &errclass.ServerBackoff{},
		systemPrompt:  prompt,
		allowlist:     allowlist,
		state:         StateStopped,
		provider:      deps.Provider,
		stats:         deps.Store.LoadStatistics(),
		totals:        deps.Store.LoadTokenTotals(),
	}
}

// State returns the current lifecycle state.
func (m *Moderator) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Moderator) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.notifier.Notify(notify.Event{Kind: notify.KindStateChanged, Message: string(s)})
}

// Start verifies platform credentials and provider health, then transitions
// to RUNNING. On any failure the moderator returns to STOPPED.
func (m *Moderator) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateStopped {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", state)
	}
	m.state = StateStarting
	m.mu.Unlock()

	name, err := m.platform.Me(ctx)
	if err != nil {
		m.setState(StateStopped)
		return fmt.Errorf("platform connectivity check: %w", err)
	}
	m.logger.Info("authenticated", "account", name, "subreddit", m.cfg.Reddit.Subreddit)

	p := m.currentProvider()
	if err := p.CheckHealth(ctx); err != nil {
		m.setState(StateStopped)
		return fmt.Errorf("provider %s health check: %w", p.Name(), err)
	}
	m.logger.Info("provider ready", "provider", p.Name(), "safe_mode", m.cfg.SafeMode)

	m.setState(StateRunning)
	return nil
}

// Run executes the poll loop until Stop is called or the context ends. It
// must be called after a successful Start.
func (m *Moderator) Run(ctx context.Context) error {
	if m.State() != StateRunning {
		return fmt.Errorf("moderator is not started")
	}
	defer m.setState(StateStopped)

	for {
		switch m.State() {
		case StateStopping:
			return nil
		case StatePaused:
			if !m.sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		found, penalty := m.runCycle(ctx)
		if m.metrics != nil {
			m.metrics.PollCycle()
		}

		wait := m.delay.Current()
		if penalty > 0 {
			wait = penalty
		} else if found == 0 && m.delay.AtBase() {
			m.logger.Debug("no new comments")
		}

		if !m.delay.AtBase() {
			m.logger.Debug("next poll delayed",
				"wait", wait, "empty_cycles", m.delay.EmptyCycles())
		}
		if !m.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

// Stop requests loop termination. Effective immediately for state checks;
// the Run loop exits at its next checkpoint.
func (m *Moderator) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	m.mu.Unlock()
	m.notifier.Notify(notify.Event{Kind: notify.KindStateChanged, Message: string(StateStopping)})
}

// Pause suspends comment processing without tearing down the loop.
func (m *Moderator) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		m.state = StatePaused
	}
}

// Resume continues processing after a pause.
func (m *Moderator) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePaused {
		m.state = StateRunning
	}
}

func (m *Moderator) currentProvider() provider.Provider {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.provider
}

// SwitchProvider health-checks the candidate and swaps it in atomically.
// On failure the active provider stays in place.
func (m *Moderator) SwitchProvider(ctx context.Context, candidate provider.Provider) error {
	if err := candidate.CheckHealth(ctx); err != nil {
		return fmt.Errorf("provider %s failed health check, keeping %s: %w",
			candidate.Name(), m.currentProvider().Name(), err)
	}

	m.mu.Lock()
	old := m.provider
	m.provider = candidate
	m.mu.Unlock()

	m.logger.Info("provider switched", "from", old.Name(), "to", candidate.Name())
	return nil
}

// Stats returns the lifetime moderation counters.
func (m *Moderator) Stats() store.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// TokenTotals returns accumulated token usage and spend.
func (m *Moderator) TokenTotals() store.TokenTotals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// runCycle polls once and processes every new comment. It returns how many
// comments were found and an optional penalty delay to apply instead of the
// adaptive interval when the poll itself failed.
func (m *Moderator) runCycle(ctx context.Context) (int, time.Duration) {
	since, haveCursor := m.store.LoadCursor()
	if haveCursor {
		m.logger.Debug("polling comments", "since", since)
	} else {
		m.logger.Info("first run, fetching recent comments", "limit", m.cfg.Reddit.FirstRunLimit)
	}
	cycleStart := m.clock.Now().UTC()

	comments, err := m.platform.ListCommentsSince(ctx, since)
	if err != nil {
		return 0, m.pollFailure(err)
	}
	m.rateBackoff.Reset()

	if len(comments) == 0 {
		m.delay.OnEmpty()
	} else {
		m.delay.OnActivity()
		m.logger.Info("new comments found", "count", len(comments))

		for _, comment := range comments {
			if m.State() == StateStopping || ctx.Err() != nil {
				break
			}
			if err := m.limiter.WaitIfNeeded(ctx); err != nil {
				break
			}
			m.processComment(ctx, comment)
		}
	}

	// Advance the cursor once per cycle so a crash never skips comments
	// that arrived mid-processing.
	if err := m.store.SaveCursor(cycleStart); err != nil {
		m.logger.Warn("saving poll cursor", "error", err)
	}
	return len(comments), 0
}

// pollFailure classifies a listing error and derives the retry delay.
func (m *Moderator) pollFailure(err error) time.Duration {
	switch {
	case errclass.IsRateLimit(err):
		delay := m.rateBackoff.Next("listing")
		m.logger.Warn("rate limited by platform",
			"consecutive", m.rateBackoff.Consecutive(), "retry_in", delay, "error", err)
		m.notifier.Notify(notify.Event{Kind: notify.KindRateLimited, Message: err.Error()})
		return delay
	case errclass.IsServerError(err):
		delay := m.serverBackoff.Next()
		m.logger.Warn("platform server error",
			"attempt", m.serverBackoff.Attempts(), "retry_in", delay, "error", err)
		return delay
	default:
		m.rateBackoff.Reset()
		c := errclass.Classify(err)
		m.logger.Error("poll failed",
			"category", c.Category, "severity", c.Severity, "error", err)
		m.notifier.Notify(notify.Event{Kind: notify.KindError, Message: err.Error()})
		return 0
	}
}

// processComment analyzes one comment and applies the verdict.
func (m *Moderator) processComment(ctx context.Context, comment models.Comment) {
	if m.skip(comment) {
		if m.metrics != nil {
			m.metrics.CommentSkipped()
		}
		return
	}

	m.logger.Info("analyzing comment", "id", comment.ID, "author", comment.Author)

	p := m.currentProvider()
	start := m.clock.Now()
	result, err := p.Analyze(ctx, m.systemPrompt, comment.Body)
	if m.metrics != nil {
		m.metrics.ProviderCall(p.Name(), m.clock.Since(start), err)
	}
	if err != nil {
		c := errclass.Classify(err)
		m.logger.Error("analysis failed",
			"id", comment.ID, "provider", p.Name(), "category", c.Category, "error", err)
		m.recordVerdict(models.VerdictUnknown)
		return
	}

	m.accumulateUsage(result.Usage)
	verdict := decision.Parse(result.Response)
	m.recordVerdict(verdict)
	m.logger.Debug("model reasoning", "id", comment.ID, "response", result.Response)

	switch verdict {
	case models.VerdictRemove:
		m.removeComment(ctx, comment)
	case models.VerdictKeep:
		m.logger.Info("comment kept", "id", comment.ID, "author", comment.Author)
	default:
		m.logger.Warn("no verdict in model response, skipping",
			"id", comment.ID, "response", result.Response)
	}

	m.notifier.Notify(notify.Event{
		Kind:    notify.KindCommentAnalyzed,
		Message: fmt.Sprintf("comment %s: %s", comment.ID, verdict),
		Fields: map[string]any{
			"input_tokens":  result.Usage.InputTokens,
			"output_tokens": result.Usage.OutputTokens,
		},
	})
}

// skip filters comments that are never analyzed: deleted bodies, the bot's
// own comments, and allowlisted moderator accounts.
func (m *Moderator) skip(comment models.Comment) bool {
	switch {
	case comment.Deleted():
		return true
	case comment.Author == m.cfg.Reddit.Username:
		return true
	default:
		if _, ok := m.allowlist[comment.Author]; ok {
			m.logger.Debug("skipping allowlisted account", "author", comment.Author)
			return true
		}
	}
	return false
}

const removalReason = "violates community rules"

func (m *Moderator) removeComment(ctx context.Context, comment models.Comment) {
	if m.cfg.SafeMode {
		m.logger.Info("WOULD REMOVE (safe mode)",
			"id", comment.ID, "author", comment.Author, "reason", removalReason)
		return
	}

	if err := m.platform.RemoveComment(ctx, comment.ID); err != nil {
		c := errclass.Classify(err)
		m.logger.Error("removal failed",
			"id", comment.ID, "category", c.Category, "error", err)
		return
	}

	m.logger.Info("comment removed", "id", comment.ID, "author", comment.Author, "reason", removalReason)
	if m.metrics != nil {
		m.metrics.CommentRemoved()
	}
	m.notifier.Notify(notify.Event{
		Kind:    notify.KindCommentRemoved,
		Message: fmt.Sprintf("removed comment %s by u/%s", comment.ID, comment.Author),
	})

	m.mu.Lock()
	m.stats.CommentsRemoved++
	stats := m.stats
	m.mu.Unlock()
	if err := m.store.SaveStatistics(stats); err != nil {
		m.logger.Warn("saving statistics", "error", err)
	}

	if err := m.ledger.Append(ctx, comment.ID, comment.Body, comment.Permalink, removalReason); err != nil {
		m.logger.Warn("recording removal in ledger", "id", comment.ID, "error", err)
	}
}

func (m *Moderator) recordVerdict(verdict models.Verdict) {
	if m.metrics != nil {
		m.metrics.CommentAnalyzed(string(verdict))
	}

	m.mu.Lock()
	m.stats.CommentsAnalyzed++
	stats := m.stats
	m.mu.Unlock()
	if err := m.store.SaveStatistics(stats); err != nil {
		m.logger.Warn("saving statistics", "error", err)
	}
}

func (m *Moderator) accumulateUsage(usage models.TokenUsage) {
	m.mu.Lock()
	m.totals.InputTokens += usage.InputTokens
	m.totals.OutputTokens += usage.OutputTokens
	m.totals.TotalTokens += usage.TotalTokens
	m.totals.EstimatedCost += usage.EstimatedCost
	totals := m.totals
	m.mu.Unlock()

	if err := m.store.SaveTokenTotals(totals); err != nil {
		m.logger.Warn("saving token totals", "error", err)
	}
}

// sleep waits for d in one-second chunks so stop and pause requests stay
// responsive. Returns false when the context ended.
func (m *Moderator) sleep(ctx context.Context, d time.Duration) bool {
	for d > 0 {
		if m.State() == StateStopping {
			return true
		}
		chunk := d
		if chunk > time.Second {
			chunk = time.Second
		}
		select {
		case <-ctx.Done():
			return false
		case <-m.clock.After(chunk):
		}
		d -= chunk
	}
	return true
}
