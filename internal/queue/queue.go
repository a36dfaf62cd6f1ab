// Package queue provides the bounded admission queue and the worker
// pool that drives resolution attempts.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/resolver"
)

// ErrFull is returned when the queue is at capacity. Enqueue never
// blocks the caller; webhook handlers must not stall behind a full
// queue.
var ErrFull = errors.New("request queue is full")

// DefaultCapacity bounds the number of admitted pending requests.
const DefaultCapacity = 500

// Queue is a bounded FIFO of pending requests with per-identity
// single-flight admission: a request identity is either queued or
// in flight at most once.
type Queue struct {
	logger zerolog.Logger
	ch     chan resolver.Request

	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates a queue with the given capacity.
func New(capacity int, logger zerolog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		logger: logger.With().Str("component", "queue").Logger(),
		ch:     make(chan resolver.Request, capacity),
		keys:   make(map[string]struct{}),
	}
}

// key is the request identity used for coalescing.
func key(req resolver.Request) string {
	return fmt.Sprintf("%s:%s", req.MediaType, req.ExternalID)
}

// Enqueue admits a request without blocking. A request whose identity
// is already queued or in flight is coalesced into the existing
// attempt. Returns ErrFull when at capacity.
func (q *Queue) Enqueue(req resolver.Request) error {
	q.mu.Lock()
	k := key(req)
	if _, exists := q.keys[k]; exists {
		q.mu.Unlock()
		q.logger.Debug().Str("key", k).Msg("request already pending, coalesced")
		return nil
	}
	q.keys[k] = struct{}{}
	q.mu.Unlock()

	select {
	case q.ch <- req:
		q.logger.Info().Str("key", k).Str("title", req.Title).Msg("request queued")
		return nil
	default:
		q.mu.Lock()
		delete(q.keys, k)
		q.mu.Unlock()
		q.logger.Warn().Str("key", k).Msg("request queue full, rejecting")
		return ErrFull
	}
}

// Dequeue blocks until a request is available or the context ends.
// The request identity stays reserved until Done is called.
func (q *Queue) Dequeue(ctx context.Context) (resolver.Request, error) {
	select {
	case <-ctx.Done():
		return resolver.Request{}, ctx.Err()
	case req := <-q.ch:
		return req, nil
	}
}

// Done releases the identity reservation after an attempt finishes,
// allowing the request to be re-admitted by a later scan.
func (q *Queue) Done(req resolver.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.keys, key(req))
}

// Len returns the number of queued (not yet dequeued) requests.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Pending returns the number of reserved identities, queued plus in
// flight.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}
