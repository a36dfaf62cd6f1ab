// Package ratelimit provides a fixed-window limiter for metadata
// provider calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config defines the fixed window: Limit calls per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// DefaultConfig matches the metadata provider's published limits.
func DefaultConfig() Config {
	return Config{Limit: 40, Window: 10 * time.Second}
}

// Limiter admits up to Limit calls per Window. Calls beyond the limit
// block until the window resets; metadata lookups are not latency
// critical enough to fail fast.
type Limiter struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// New creates a Limiter.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Limiter{
		cfg:    cfg,
		logger: logger.With().Str("component", "rate-limiter").Logger(),
	}
}

// Wait blocks until a call slot is available or the context ends.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, sleep := l.tryAcquire()
		if ok {
			return nil
		}

		l.logger.Debug().Dur("sleep", sleep).Msg("rate limit reached, waiting for window reset")
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire takes a slot if one is free, otherwise reports how long
// until the window resets. Window and counter reset together.
func (l *Limiter) tryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.resetAt) {
		l.count = 0
		l.resetAt = now.Add(l.cfg.Window)
	}

	if l.count < l.cfg.Limit {
		l.count++
		return true, 0
	}

	return false, time.Until(l.resetAt)
}

// Remaining returns the free slots in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.resetAt) {
		return l.cfg.Limit
	}
	remaining := l.cfg.Limit - l.count
	if remaining < 0 {
		return 0
	}
	return remaining
}
