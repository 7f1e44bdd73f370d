// Package adaptive grows the poll interval while the monitored feed is idle
// and snaps it back to the base interval as soon as activity returns.
package adaptive

import (
	"sync"
	"time"

	"github.com/modwatch/modwatch/internal/config"
)

// Controller tracks consecutive empty poll cycles and derives the next poll
// delay from them. Safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	base      time.Duration
	max       time.Duration
	growthPct float64

	current     time.Duration
	emptyCycles int
}

// NewController returns a controller starting at the base interval.
func NewController(cfg config.AdaptiveConfig) *Controller {
	return &Controller{
		base:      cfg.BaseInterval,
		max:       cfg.MaxDelay,
		growthPct: cfg.GrowthPct,
		current:   cfg.BaseInterval,
	}
}

// Current returns the delay to apply before the next poll cycle.
func (c *Controller) Current() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// OnEmpty records a poll cycle that produced no comments and grows the delay
// by the configured percentage, clamped at the maximum.
func (c *Controller) OnEmpty() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.emptyCycles++
	if c.current < c.max {
		grown := time.Duration(float64(c.current) * (1 + c.growthPct/100))
		if grown > c.max {
			grown = c.max
		}
		c.current = grown
	}
}

// OnActivity resets the delay to the base interval. A no-op when already
// at base.
func (c *Controller) OnActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.emptyCycles > 0 {
		c.emptyCycles = 0
		c.current = c.base
	}
}

// AtBase reports whether the controller is at the base interval.
func (c *Controller) AtBase() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current == c.base
}

// EmptyCycles returns the number of consecutive polls without new comments.
func (c *Controller) EmptyCycles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emptyCycles
}
