// Package errclass classifies platform and provider errors by message
// content and derives retry delays for the recoverable categories.
//
// Platform client libraries surface most failures as opaque errors with the
// HTTP status embedded in the message, so classification is keyword based.
// Rules run in a fixed order and the first hit wins.
package errclass

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Category identifies the failure class of an error.
type Category string

const (
	CategoryPermissionDenied Category = "PERMISSION_DENIED"
	CategoryNotFound         Category = "RESOURCE_NOT_FOUND"
	CategoryRateLimited      Category = "RATE_LIMITED"
	CategoryNetwork          Category = "NETWORK_CONNECTIVITY"
	CategorySSL              Category = "SSL_CERTIFICATE"
	CategoryAuth             Category = "AUTHENTICATION_FAILED"
	CategoryServer           Category = "SERVER_ERROR"
	CategoryUnknown          Category = "UNKNOWN_ERROR"
)

// Severity indicates how urgently an operator should react.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Classification describes an error's category with operator guidance.
type Classification struct {
	Category    Category
	Severity    Severity
	Remediation []string
}

type rule struct {
	keywords       []string
	classification Classification
}

// Rules are checked in order; "permission" must run before "server" so a
// "403 server rejected" message classifies as a permission failure.
var rules = []rule{
	{
		keywords: []string{"permission", "forbidden", "403"},
		classification: Classification{
			Category: CategoryPermissionDenied,
			Severity: SeverityHigh,
			Remediation: []string{
				"verify the bot account moderates the target subreddit",
				"confirm the bot account is not banned or restricted",
			},
		},
	},
	{
		keywords: []string{"not found", "404", "does not exist"},
		classification: Classification{
			Category: CategoryNotFound,
			Severity: SeverityMedium,
			Remediation: []string{
				"verify the subreddit name is correct",
				"check that the resource exists and is accessible",
			},
		},
	},
	{
		keywords: []string{"rate limit", "429", "too many"},
		classification: Classification{
			Category: CategoryRateLimited,
			Severity: SeverityMedium,
			Remediation: []string{
				"reduce API call frequency",
				"wait for the calculated backoff before retrying",
			},
		},
	},
	{
		keywords: []string{"timeout", "connection", "network"},
		classification: Classification{
			Category: CategoryNetwork,
			Severity: SeverityHigh,
			Remediation: []string{
				"check internet connectivity and DNS resolution",
				"verify the platform is reachable",
			},
		},
	},
	{
		keywords: []string{"ssl", "certificate", "tls"},
		classification: Classification{
			Category: CategorySSL,
			Severity: SeverityHigh,
			Remediation: []string{
				"check the system clock",
				"update system certificates",
			},
		},
	},
	{
		keywords: []string{"authentication", "invalid", "token"},
		classification: Classification{
			Category: CategoryAuth,
			Severity: SeverityHigh,
			Remediation: []string{
				"verify API credentials",
				"regenerate client ID and secret if expired",
			},
		},
	},
	{
		keywords: []string{"server", "500", "502", "503"},
		classification: Classification{
			Category: CategoryServer,
			Severity: SeverityMedium,
			Remediation: []string{
				"wait and retry, likely a platform outage",
				"check the platform status page",
			},
		},
	},
}

// Classify maps an error to its category. A nil error or a message matching
// no rule yields CategoryUnknown.
func Classify(err error) Classification {
	if err == nil {
		return unknownClassification()
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(msg, kw) {
				return r.classification
			}
		}
	}

	return unknownClassification()
}

func unknownClassification() Classification {
	return Classification{
		Category: CategoryUnknown,
		Severity: SeverityMedium,
		Remediation: []string{
			"review the full error message",
			"enable debug logging for more detail",
		},
	}
}

var rateLimitIndicators = []string{
	"rate limit", "429", "too many requests", "quota exceeded",
	"ratelimit", "rate_limit", "requests per", "try again later",
	"temporarily blocked", "api limit", "usage limit",
	"request limit", "call limit", "throttled",
}

// IsRateLimit reports whether the error message matches any known rate
// limit indicator.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, indicator := range rateLimitIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}

// IsServerError reports whether the error looks like a platform 5xx.
func IsServerError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "500") || strings.Contains(msg, "internal server error")
}

const (
	rateLimitBaseDelay = 60 * time.Second
	rateLimitMaxDelay  = 600 * time.Second

	maxConsecutiveMultiplier = 5
	maxContextMultiplier     = 3
	maxStoredBackoffLevel    = 5
)

type contextState struct {
	count int
	level int
}

// RateLimitBackoff tracks consecutive rate limit hits, globally and per
// named context, and computes a progressive delay for each. Safe for
// concurrent use.
type RateLimitBackoff struct {
	mu sync.Mutex

	consecutive int
	total       int
	contexts    map[string]*contextState

	// jitter adds up to frac*delay of random variation. Swapped in tests.
	jitter func(delay time.Duration) time.Duration
}

// NewRateLimitBackoff returns a backoff tracker with no history.
func NewRateLimitBackoff() *RateLimitBackoff {
	return &RateLimitBackoff{
		contexts: make(map[string]*contextState),
		jitter: func(delay time.Duration) time.Duration {
			return time.Duration(rand.Float64() * float64(delay) * 0.1)
		},
	}
}

// Next records a rate limit hit in the named context and returns the delay
// to wait before retrying. The delay doubles with consecutive hits and is
// scaled by how often this context has been limited, capped at ten minutes
// before jitter.
func (b *RateLimitBackoff) Next(context string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive++
	b.total++

	state, ok := b.contexts[context]
	if !ok {
		state = &contextState{}
		b.contexts[context] = state
	}
	state.count++
	if state.level < maxStoredBackoffLevel {
		state.level++
	}

	consecutiveMult := b.consecutive
	if consecutiveMult > maxConsecutiveMultiplier {
		consecutiveMult = maxConsecutiveMultiplier
	}
	contextMult := state.level
	if contextMult > maxContextMultiplier {
		contextMult = maxContextMultiplier
	}

	delay := rateLimitBaseDelay * (1 << (consecutiveMult - 1)) * time.Duration(contextMult)
	if delay > rateLimitMaxDelay {
		delay = rateLimitMaxDelay
	}

	return delay + b.jitter(delay)
}

// Reset clears the consecutive hit streak. Called after a non-rate-limit
// outcome. Per-context levels are retained so a context that keeps getting
// limited stays penalized.
func (b *RateLimitBackoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutive = 0
}

// Consecutive returns the current streak length.
func (b *RateLimitBackoff) Consecutive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

// ServerBackoff derives linearly growing delays for platform 5xx errors.
// Safe for concurrent use.
type ServerBackoff struct {
	mu       sync.Mutex
	attempts int
}

const (
	serverBaseDelay      = 5 * time.Second
	serverDelayIncrement = 3 * time.Second
)

// Next returns the delay before the next retry and records the attempt.
// Delays grow linearly; after ten attempts the counter falls back to a
// moderate level instead of growing without bound.
func (b *ServerBackoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := serverBaseDelay + time.Duration(b.attempts)*serverDelayIncrement
	b.attempts++
	if b.attempts > 10 {
		b.attempts = 5
	}
	return delay
}

// Attempts returns the recorded attempt count.
func (b *ServerBackoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
