// Package resolver drives one request's candidates to a terminal
// outcome against the remote target.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/matching"
	"github.com/bridgarr/bridgarr/internal/remote"
)

// Request is one wanted-media request to reconcile.
type Request struct {
	ID         string
	ExternalID string
	MediaType  remote.MediaType
	Title      string
	Year       int
	Seasons    []int
}

// Identity returns the remote search identity for the request.
func (r Request) Identity() remote.Identity {
	return remote.Identity{
		ExternalID: r.ExternalID,
		MediaType:  r.MediaType,
		Query:      r.Title,
		Seasons:    r.Seasons,
	}
}

// Outcome is the terminal result of one resolution attempt.
type Outcome string

const (
	// OutcomeClaimed means a candidate was claimed and confirmed.
	OutcomeClaimed Outcome = "claimed"
	// OutcomeAlreadySatisfied means the remote already has the item
	// fully available; no action was taken.
	OutcomeAlreadySatisfied Outcome = "already-satisfied"
	// OutcomeNoMatch means no candidate passed matching policy.
	OutcomeNoMatch Outcome = "no-match"
	// OutcomeAmbiguous means conflicting remote signals prevented a
	// safe decision.
	OutcomeAmbiguous Outcome = "ambiguous"
	// OutcomeRemoteError means the attempt aborted on a target error.
	OutcomeRemoteError Outcome = "remote-error"
)

// Completed reports whether the outcome marks the request done.
func (o Outcome) Completed() bool {
	return o == OutcomeClaimed || o == OutcomeAlreadySatisfied
}

// Result is the terminal outcome plus diagnostics.
type Result struct {
	Outcome    Outcome
	Candidate  string // raw title of the decisive candidate, if any
	Confidence int
	Err        error
}

// Config holds the resolver's bounded-wait tunables.
type Config struct {
	// AvailabilityWait bounds the wait for the remote availability
	// signal to clear.
	AvailabilityWait time.Duration
	// ClaimPollTimeout bounds each poll for a claim state change.
	ClaimPollTimeout time.Duration
	// MaxFileCount excludes multi-part releases; single-file only.
	MaxFileCount int
}

// DefaultConfig returns the default resolver tunables.
func DefaultConfig() Config {
	return Config{
		AvailabilityWait: 15 * time.Second,
		ClaimPollTimeout: 10 * time.Second,
		MaxFileCount:     1,
	}
}

// Resolver walks a request's remote candidates to a terminal outcome.
type Resolver struct {
	matcher *matching.Matcher
	cfg     Config
	logger  zerolog.Logger
}

// New creates a Resolver.
func New(matcher *matching.Matcher, cfg Config, logger zerolog.Logger) *Resolver {
	if cfg.AvailabilityWait <= 0 {
		cfg.AvailabilityWait = DefaultConfig().AvailabilityWait
	}
	if cfg.ClaimPollTimeout <= 0 {
		cfg.ClaimPollTimeout = DefaultConfig().ClaimPollTimeout
	}
	if cfg.MaxFileCount <= 0 {
		cfg.MaxFileCount = DefaultConfig().MaxFileCount
	}
	return &Resolver{
		matcher: matcher,
		cfg:     cfg,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// state is one node of the resolution state machine.
type state int

const (
	stateStart state = iota
	stateCheckingSatisfied
	stateAwaitingAvailability
	stateEvaluating
	stateDone
)

// attempt carries the mutable state of a single resolution walk.
type attempt struct {
	ctx        context.Context
	target     remote.Target
	req        Request
	requested  matching.Title
	logger     zerolog.Logger
	candidates []remote.Candidate
	next       int
	result     Result
}

// Resolve drives the request to a terminal outcome. The caller must
// hold exclusive access to the target for the duration of the call.
func (r *Resolver) Resolve(ctx context.Context, target remote.Target, req Request) Result {
	title, parenYear := matching.StripYearSuffix(req.Title)
	year := req.Year
	if year == 0 {
		year = parenYear
	}

	a := &attempt{
		ctx:       ctx,
		target:    target,
		req:       req,
		requested: matching.Title{Title: title, Year: year},
		logger: r.logger.With().
			Str("requestId", req.ID).
			Str("title", req.Title).
			Logger(),
	}

	for st := stateStart; st != stateDone; {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: OutcomeRemoteError, Err: err}
		}
		st = r.step(st, a)
	}
	return a.result
}

func (r *Resolver) step(st state, a *attempt) state {
	switch st {
	case stateStart:
		return r.open(a)
	case stateCheckingSatisfied:
		return r.checkSatisfied(a, stateAwaitingAvailability)
	case stateAwaitingAvailability:
		return r.awaitAvailability(a)
	case stateEvaluating:
		return r.evaluate(a)
	default:
		return stateDone
	}
}

// open navigates to the request's search context. One retry covers a
// transiently stale session; a second failure aborts the attempt.
func (r *Resolver) open(a *attempt) state {
	var err error
	for i := 0; i < 2; i++ {
		err = a.target.Open(a.ctx, a.req.Identity())
		if err == nil {
			return stateCheckingSatisfied
		}
		if errors.Is(err, remote.ErrNoResults) {
			a.logger.Info().Msg("remote reported no results")
			a.result = Result{Outcome: OutcomeNoMatch}
			return stateDone
		}
		a.logger.Warn().Err(err).Int("try", i+1).Msg("open failed")
	}
	a.result = Result{Outcome: OutcomeRemoteError, Err: fmt.Errorf("open search context: %w", err)}
	return stateDone
}

// checkSatisfied terminates with AlreadySatisfied when a remote
// candidate flagged as fully available strictly matches the request.
// Claiming such a candidate is unsafe, so this check runs before any
// claim and once more after the availability wait.
func (r *Resolver) checkSatisfied(a *attempt, onMiss state) state {
	satisfied, err := a.target.ListAlreadySatisfied(a.ctx)
	if err != nil {
		a.result = Result{Outcome: OutcomeRemoteError, Err: fmt.Errorf("list satisfied candidates: %w", err)}
		return stateDone
	}

	type hit struct {
		candidate remote.Candidate
		decision  matching.Decision
		year      int
	}
	var hits []hit
	for _, c := range satisfied {
		year, _ := matching.ExtractYear(c.RawTitle, true)
		d := r.matcher.Match(a.requested, matching.Title{Title: c.RawTitle, Year: year}, matching.Strict)
		if d.Matched {
			hits = append(hits, hit{candidate: c, decision: d, year: year})
		}
	}

	if len(hits) == 0 {
		return onMiss
	}

	// Two strict hits that disagree on year is a conflicting remote
	// signal; defer to the next scan rather than guess.
	for _, h := range hits[1:] {
		if h.year != hits[0].year {
			a.logger.Warn().
				Str("first", hits[0].candidate.RawTitle).
				Str("second", h.candidate.RawTitle).
				Msg("conflicting already-satisfied candidates")
			a.result = Result{Outcome: OutcomeAmbiguous, Candidate: hits[0].candidate.RawTitle}
			return stateDone
		}
	}

	a.logger.Info().
		Str("candidate", hits[0].candidate.RawTitle).
		Int("confidence", hits[0].decision.Confidence).
		Msg("request already satisfied on remote")
	a.result = Result{
		Outcome:    OutcomeAlreadySatisfied,
		Candidate:  hits[0].candidate.RawTitle,
		Confidence: hits[0].decision.Confidence,
	}
	return stateDone
}

// awaitAvailability waits for the remote availability check to clear.
// A timeout is non-fatal: availability info may simply be slow.
func (r *Resolver) awaitAvailability(a *attempt) state {
	cleared, err := a.target.AwaitAvailabilitySignal(a.ctx, r.cfg.AvailabilityWait)
	if err != nil {
		a.result = Result{Outcome: OutcomeRemoteError, Err: fmt.Errorf("await availability signal: %w", err)}
		return stateDone
	}
	if !cleared {
		a.logger.Warn().Dur("waited", r.cfg.AvailabilityWait).Msg("availability signal did not clear, proceeding")
	}

	// Remote state may have changed while waiting.
	return r.checkSatisfied(a, stateEvaluating)
}

// evaluate walks the actionable candidates in remote order, claiming
// the first that passes policy.
func (r *Resolver) evaluate(a *attempt) state {
	if a.candidates == nil {
		candidates, err := a.target.ListActionable(a.ctx)
		if err != nil {
			a.result = Result{Outcome: OutcomeRemoteError, Err: fmt.Errorf("list actionable candidates: %w", err)}
			return stateDone
		}
		a.candidates = candidates
		a.next = 0
	}

	for ; a.next < len(a.candidates); a.next++ {
		c := a.candidates[a.next]
		logger := a.logger.With().Int("box", a.next+1).Str("candidate", c.RawTitle).Logger()

		if !c.Actionable {
			continue
		}
		if c.FileCount == remote.FileCountUnknown {
			logger.Debug().Msg("skipping candidate with unknown file count")
			continue
		}
		if c.FileCount > r.cfg.MaxFileCount {
			logger.Debug().Int("fileCount", c.FileCount).Msg("skipping multi-file candidate")
			continue
		}

		year, _ := matching.ExtractYear(c.RawTitle, true)
		d := r.matcher.Match(a.requested, matching.Title{Title: c.RawTitle, Year: year}, matching.Relaxed)
		if !d.Matched {
			logger.Debug().
				Int("confidence", d.Confidence).
				Str("reason", string(d.Reason)).
				Msg("candidate rejected by matcher")
			continue
		}

		// The loop's post-statement advances past c whether the claim
		// concludes the attempt or falls through to the next candidate.
		if done := r.claim(a, c, d, logger); done {
			return stateDone
		}
	}

	a.result = Result{Outcome: OutcomeNoMatch}
	return stateDone
}

// claim invokes the claim action and confirms it. A pending (0%)
// state is undone and evaluation resumes at the next candidate; this
// is a designed compensating action, not a failure.
func (r *Resolver) claim(a *attempt, c remote.Candidate, d matching.Decision, logger zerolog.Logger) bool {
	handle, err := a.target.Claim(a.ctx, c)
	if err != nil {
		if errors.Is(err, remote.ErrSessionExpired) {
			a.result = Result{Outcome: OutcomeRemoteError, Err: err}
			return true
		}
		// A single candidate's claim failure does not abort the walk.
		logger.Warn().Err(err).Msg("claim failed, trying next candidate")
		return false
	}

	state, err := a.target.PollState(a.ctx, handle, r.cfg.ClaimPollTimeout)
	if err != nil {
		a.result = Result{Outcome: OutcomeRemoteError, Err: fmt.Errorf("poll claim state: %w", err)}
		return true
	}

	switch state {
	case remote.ClaimSatisfied:
		logger.Info().Int("confidence", d.Confidence).Msg("claim confirmed")
		a.result = Result{Outcome: OutcomeClaimed, Candidate: c.RawTitle, Confidence: d.Confidence}
		return true
	case remote.ClaimPending:
		logger.Warn().Msg("claim stuck pending, undoing")
		if err := a.target.Undo(a.ctx, handle); err != nil {
			a.result = Result{Outcome: OutcomeRemoteError, Err: fmt.Errorf("undo pending claim: %w", err)}
			return true
		}
		return false
	default: // ClaimTimedOut
		// The action may have silently failed; move on.
		logger.Warn().Dur("waited", r.cfg.ClaimPollTimeout).Msg("no claim state change observed")
		return false
	}
}
