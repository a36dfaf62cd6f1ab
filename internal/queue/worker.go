package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/remote"
	"github.com/bridgarr/bridgarr/internal/resolver"
)

// CompletionSink reports a finished request back to the requesting
// system. Called only for claimed or already-satisfied outcomes.
type CompletionSink interface {
	MarkComplete(ctx context.Context, requestID, externalID string) error
}

// TitleLookup resolves the canonical title/year for requests whose
// payload carried none.
type TitleLookup interface {
	LookupTitleYear(ctx context.Context, mediaType remote.MediaType, externalID string) (title string, year int, err error)
}

// AttemptRecorder journals terminal outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, req resolver.Request, result resolver.Result)
}

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	// Workers is the number of concurrent workers. The remote session
	// serializes attempts regardless, so this defaults to 1; raising
	// it only helps once the session ceiling rises.
	Workers int
	// RequestTimeout bounds one resolution attempt.
	RequestTimeout time.Duration
}

// DefaultPoolConfig returns the default pool settings.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: 1, RequestTimeout: 60 * time.Second}
}

// Pool pulls requests off the queue and drives the resolver.
type Pool struct {
	cfg        PoolConfig
	queue      *Queue
	session    *remote.Session
	resolver   *resolver.Resolver
	completion CompletionSink
	metadata   TitleLookup
	recorder   AttemptRecorder
	logger     zerolog.Logger
}

// NewPool creates a worker pool. metadata and recorder may be nil.
func NewPool(
	cfg PoolConfig,
	q *Queue,
	session *remote.Session,
	res *resolver.Resolver,
	completion CompletionSink,
	metadata TitleLookup,
	recorder AttemptRecorder,
	logger zerolog.Logger,
) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultPoolConfig().Workers
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultPoolConfig().RequestTimeout
	}
	return &Pool{
		cfg:        cfg,
		queue:      q,
		session:    session,
		resolver:   res,
		completion: completion,
		metadata:   metadata,
		recorder:   recorder,
		logger:     logger.With().Str("component", "worker-pool").Logger(),
	}
}

// Run blocks draining the queue until the context ends.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i + 1)
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	logger := p.logger.With().Int("worker", id).Logger()
	for {
		req, err := p.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		p.process(ctx, req, logger)
	}
}

// process runs one resolution attempt with a hard timeout. A timed-out
// attempt is logged and released for the next periodic scan; the
// rescan's already-satisfied check guards against double claiming.
func (p *Pool) process(ctx context.Context, req resolver.Request, logger zerolog.Logger) {
	defer p.queue.Done(req)

	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	logger = logger.With().Str("requestId", req.ID).Str("externalId", req.ExternalID).Logger()

	if req.Title == "" && p.metadata != nil {
		title, year, err := p.metadata.LookupTitleYear(attemptCtx, req.MediaType, req.ExternalID)
		if err != nil {
			logger.Error().Err(err).Msg("metadata lookup failed, leaving request pending")
			return
		}
		req.Title = title
		if req.Year == 0 {
			req.Year = year
		}
	}
	if req.Title == "" {
		logger.Error().Msg("request has no resolvable title, dropping")
		return
	}

	start := time.Now()
	var result resolver.Result
	err := p.session.With(attemptCtx, func(target remote.Target) error {
		result = p.resolver.Resolve(attemptCtx, target, req)
		return nil
	})
	if err != nil {
		// Session never acquired; treat as an aborted attempt.
		logger.Warn().Err(err).Msg("attempt cancelled before acquiring remote session")
		return
	}

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Str("candidate", result.Candidate).
		Dur("duration", time.Since(start)).
		Msg("resolution attempt finished")

	if p.recorder != nil {
		p.recorder.RecordAttempt(ctx, req, result)
	}

	if !result.Outcome.Completed() {
		if result.Err != nil {
			logger.Warn().Err(result.Err).Msg("attempt ended with remote error, leaving request pending")
		}
		return
	}

	if err := p.completion.MarkComplete(ctx, req.ID, req.ExternalID); err != nil {
		// The claim stands; the next scan will see it as satisfied and
		// retry the completion report.
		logger.Error().Err(err).Msg("failed to report completion")
	}
}
