// Package ratelimit spaces outbound platform calls under two constraints: a
// randomized minimum gap between consecutive requests and a sliding
// per-minute request cap.
package ratelimit

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/modwatch/modwatch/internal/config"
)

// Limiter enforces request spacing. The randomized gap makes traffic look
// less mechanical; the per-minute window is the hard backstop. Safe for
// concurrent use, though waits serialize callers by design.
type Limiter struct {
	mu sync.Mutex

	clock  clockwork.Clock
	logger *slog.Logger

	minDelay  time.Duration
	maxDelay  time.Duration
	perMinute int

	// uniform picks the randomized gap. Swapped out in tests.
	uniform func(min, max time.Duration) time.Duration

	lastRequest time.Time
	requests    []time.Time
}

// New returns a limiter using the given clock for time and sleeping.
func New(cfg config.RateLimitConfig, clock clockwork.Clock, logger *slog.Logger) *Limiter {
	return &Limiter{
		clock:     clock,
		logger:    logger,
		minDelay:  cfg.MinDelay,
		maxDelay:  cfg.MaxDelay,
		perMinute: cfg.RequestsPerMinute,
		uniform:   uniformDuration,
	}
}

// WaitIfNeeded blocks until the next request is allowed, then records it.
// Both gates are applied in order: first the randomized gap since the last
// request, then the per-minute cap. Returns early with the context's error
// if it is canceled while waiting.
func (l *Limiter) WaitIfNeeded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	gap := l.uniform(l.minDelay, l.maxDelay)

	if !l.lastRequest.IsZero() {
		if since := now.Sub(l.lastRequest); since < gap {
			wait := gap - since
			l.logger.Debug("rate limit: spacing requests", "wait", wait, "gap", gap)
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			now = l.clock.Now()
		}
	}

	kept := l.requests[:0]
	for _, t := range l.requests {
		if now.Sub(t) < time.Minute {
			kept = append(kept, t)
		}
	}
	l.requests = kept

	if len(l.requests) >= l.perMinute {
		wait := time.Minute - now.Sub(l.requests[0])
		if wait > 0 {
			l.logger.Debug("rate limit: per-minute cap reached", "wait", wait)
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			now = l.clock.Now()
		}
	}

	l.requests = append(l.requests, now)
	l.lastRequest = now
	return nil
}

func (l *Limiter) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(d):
		return nil
	}
}

func uniformDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
