package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/remote"
)

// DefaultRefreshMargin is how long before expiry a refresh kicks in.
const DefaultRefreshMargin = 10 * time.Minute

// Lifecycle owns the process-wide credential. Readers always see a
// complete credential; refresh swaps it atomically.
type Lifecycle struct {
	store     Store
	exchanger Exchanger
	session   *remote.Session
	margin    time.Duration
	logger    zerolog.Logger

	mu      sync.RWMutex
	current Credential
	loaded  bool
}

// NewLifecycle creates the credential lifecycle.
func NewLifecycle(store Store, exchanger Exchanger, session *remote.Session, margin time.Duration, logger zerolog.Logger) *Lifecycle {
	if margin <= 0 {
		margin = DefaultRefreshMargin
	}
	return &Lifecycle{
		store:     store,
		exchanger: exchanger,
		session:   session,
		margin:    margin,
		logger:    logger.With().Str("component", "credential").Logger(),
	}
}

// Current returns the credential as last refreshed.
func (l *Lifecycle) Current() Credential {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// EnsureFresh refreshes the credential when it is absent or expires
// within the safety margin, persists it, and pushes it to the remote
// session. On refresh failure the old credential stays in place and
// the error is returned; the next scheduled run retries.
func (l *Lifecycle) EnsureFresh(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		cred, err := l.store.Load(ctx)
		switch {
		case err == nil:
			l.current = cred
			l.loaded = true
		case errors.Is(err, ErrNoCredential):
			l.loaded = true
		default:
			return fmt.Errorf("load credential: %w", err)
		}
	}

	if !l.current.ExpiresWithin(l.margin) {
		return nil
	}

	l.logger.Info().Time("expiry", l.current.Expiry).Msg("credential stale, refreshing")

	refreshed, err := l.exchanger.Refresh(ctx, l.current)
	if err != nil {
		l.logger.Error().Err(err).Msg("credential refresh failed, keeping previous credential")
		return fmt.Errorf("refresh credential: %w", err)
	}

	if err := l.store.Save(ctx, refreshed); err != nil {
		l.logger.Error().Err(err).Msg("failed to persist refreshed credential")
		return fmt.Errorf("persist credential: %w", err)
	}

	// The remote session must re-establish its context with the new
	// value; refresh holds the session lock so no resolution attempt
	// observes a half-applied credential.
	if l.session != nil {
		err = l.session.With(ctx, func(target remote.Target) error {
			return target.ApplyCredential(ctx, refreshed.Value)
		})
		if err != nil {
			return fmt.Errorf("apply credential to remote session: %w", err)
		}
	}

	l.current = refreshed
	l.logger.Info().Time("expiry", refreshed.Expiry).Msg("credential refreshed")
	return nil
}
