// Package remote defines the contract with the debrid media manager
// session. The session is driven out of process by a browser agent;
// this package only sees abstract candidates and claim actions.
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoResults is returned by Open when the remote search context
	// reports an explicit empty result set.
	ErrNoResults = errors.New("remote search returned no results")
	// ErrSessionExpired indicates the session credential was rejected
	// and must be refreshed before further use.
	ErrSessionExpired = errors.New("remote session credential expired")
)

// MediaType distinguishes movie and TV identities.
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
)

// Identity names the search/browse context to open for one request.
type Identity struct {
	ExternalID string
	MediaType  MediaType
	Query      string
	Seasons    []int
}

// Candidate is one remote result item considered as a potential
// fulfillment. Ephemeral: produced per resolution attempt, never
// cached across requests.
type Candidate struct {
	RawTitle string
	// FileCount is the number of files in the release, or
	// FileCountUnknown when the remote listing omitted it.
	FileCount int
	// AlreadySatisfied reports the remote's signal that this candidate
	// is fully available with no action needed.
	AlreadySatisfied bool
	// Actionable reports that an unclaimed action exists.
	Actionable bool
}

// FileCountUnknown marks a candidate whose file count could not be read.
const FileCountUnknown = -1

// ActionHandle references an in-flight claim action on the remote.
type ActionHandle struct {
	CandidateID string
	Marker      string
}

// ClaimState is the observable state of a claim action.
type ClaimState int

const (
	// ClaimPending is the remote's 0%-progress indicator: the claim was
	// registered but nothing is fulfilling it.
	ClaimPending ClaimState = iota
	// ClaimSatisfied is the 100% indicator: the claim completed.
	ClaimSatisfied
	// ClaimTimedOut means no state change was observed in time.
	ClaimTimedOut
)

func (s ClaimState) String() string {
	switch s {
	case ClaimPending:
		return "pending"
	case ClaimSatisfied:
		return "satisfied"
	default:
		return "timed-out"
	}
}

// Target is the contract with the remote automation binding. All
// methods operate on a single stateful session: callers serialize
// access through Session.
type Target interface {
	// Open navigates the session to the search/browse context for the
	// given identity. Returns ErrNoResults on an explicit empty set.
	Open(ctx context.Context, identity Identity) error

	// ListAlreadySatisfied returns candidates the remote flags as fully
	// available.
	ListAlreadySatisfied(ctx context.Context) ([]Candidate, error)

	// AwaitAvailabilitySignal waits for the availability check to
	// clear. Returns false when the wait timed out; a timeout is
	// non-fatal to callers.
	AwaitAvailabilitySignal(ctx context.Context, timeout time.Duration) (bool, error)

	// ListActionable returns claimable candidates in remote order.
	ListActionable(ctx context.Context) ([]Candidate, error)

	// Claim invokes the claim action on a candidate and records the
	// pre-click state marker.
	Claim(ctx context.Context, candidate Candidate) (ActionHandle, error)

	// PollState waits up to timeout for the claim marker to change.
	PollState(ctx context.Context, handle ActionHandle, timeout time.Duration) (ClaimState, error)

	// Undo re-invokes the claim action to roll it back.
	Undo(ctx context.Context, handle ActionHandle) error

	// ApplyCredential re-establishes the session with a fresh
	// credential value.
	ApplyCredential(ctx context.Context, value string) error
}
