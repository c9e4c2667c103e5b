package service

import (
	"fmt"
	"log"
	"time"

	"github.com/burrowlabs/burrow/internal/domain"
)

// CounterStore tracks request counts per fixed window. Increment
// returns the count after this call and the start of the window the
// call landed in.
type CounterStore interface {
	Increment(key string, window time.Duration) (count int64, windowStart time.Time, err error)
}

// RateLimitConfig bounds request volume per session and action.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// DefaultRateLimitConfig provides the standard rate limit bounds.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Max:    10,
		Window: 60 * time.Second,
	}
}

// RateLimiter enforces a fixed-window limit per (session, action)
// pair. When the counter store cannot answer, the limiter denies.
type RateLimiter struct {
	store CounterStore
	cfg   RateLimitConfig
}

// NewRateLimiter creates a new RateLimiter instance
func NewRateLimiter(store CounterStore, cfg RateLimitConfig) *RateLimiter {
	if cfg.Max <= 0 {
		cfg.Max = DefaultRateLimitConfig().Max
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitConfig().Window
	}
	return &RateLimiter{
		store: store,
		cfg:   cfg,
	}
}

// Allow records one attempt for the session and action and reports
// whether it may proceed. The first Max attempts in a window pass, the
// next is denied with a retry hint, and counts reset when the window
// rolls over.
func (l *RateLimiter) Allow(sessionID string, action domain.ActionKind) domain.RateDecision {
	key := fmt.Sprintf("%s:%s", sessionID, action)

	count, windowStart, err := l.store.Increment(key, l.cfg.Window)
	if err != nil {
		log.Printf("ratelimit: counter store failed, denying key=%s err=%v", key, err)
		return domain.RateDecision{Allowed: false, RetryAfter: l.cfg.Window}
	}

	if count > int64(l.cfg.Max) {
		retry := time.Until(windowStart.Add(l.cfg.Window))
		if retry < 0 {
			retry = 0
		}
		return domain.RateDecision{Allowed: false, RetryAfter: retry}
	}

	return domain.RateDecision{
		Allowed:   true,
		Remaining: l.cfg.Max - int(count),
	}
}
