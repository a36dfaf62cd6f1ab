package remote

import (
	"context"
	"sync"
)

// Session serializes access to the single stateful remote target.
// Resolution attempts and credential refreshes both mutate session
// state, so they take turns; the worker pool's effective concurrency
// is bounded by this lock.
type Session struct {
	mu     sync.Mutex
	target Target
}

// NewSession wraps a target in an exclusive-access session.
func NewSession(target Target) *Session {
	return &Session{target: target}
}

// With runs fn with exclusive use of the target. The context is
// checked before acquiring so a cancelled caller does not queue for
// the session.
func (s *Session) With(ctx context.Context, fn func(Target) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s.target)
}
