// Package mock provides a scriptable remote target for tests and
// developer mode runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bridgarr/bridgarr/internal/remote"
)

// Compile-time check that Target implements remote.Target.
var _ remote.Target = (*Target)(nil)

// Library holds the scripted remote state for one identity.
type Library struct {
	Satisfied  []remote.Candidate
	Actionable []remote.Candidate
	// ClaimStates maps candidate RawTitle to the state PollState
	// reports after a claim. Unlisted candidates report satisfied.
	ClaimStates map[string]remote.ClaimState
}

// Target is an in-memory remote.Target. Zero value is usable; script
// it per identity with SetLibrary or globally with the Default fields.
type Target struct {
	mu sync.Mutex

	libraries map[string]Library
	// Default is used for identities without a scripted library.
	Default Library

	// OpenErr, ListErr, ClaimErr inject failures.
	OpenErr  error
	ListErr  error
	ClaimErr error

	// AvailabilityCleared controls AwaitAvailabilitySignal; defaults
	// to cleared.
	AvailabilityTimesOut bool

	// Call recording for assertions.
	OpenCalls       []remote.Identity
	ClaimCalls      []remote.Candidate
	UndoCalls       []remote.ActionHandle
	CredentialCalls []string

	current Library
	claims  int
}

// New creates an empty mock target.
func New() *Target {
	return &Target{libraries: make(map[string]Library)}
}

// SetLibrary scripts the remote state for an identity.
func (t *Target) SetLibrary(externalID string, lib Library) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.libraries == nil {
		t.libraries = make(map[string]Library)
	}
	t.libraries[externalID] = lib
}

func (t *Target) Open(ctx context.Context, identity remote.Identity) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.OpenCalls = append(t.OpenCalls, identity)
	if t.OpenErr != nil {
		return t.OpenErr
	}
	lib, ok := t.libraries[identity.ExternalID]
	if !ok {
		lib = t.Default
	}
	t.current = lib
	if len(lib.Satisfied) == 0 && len(lib.Actionable) == 0 {
		return remote.ErrNoResults
	}
	return nil
}

func (t *Target) ListAlreadySatisfied(ctx context.Context) ([]remote.Candidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ListErr != nil {
		return nil, t.ListErr
	}
	return append([]remote.Candidate(nil), t.current.Satisfied...), nil
}

func (t *Target) AwaitAvailabilitySignal(ctx context.Context, timeout time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.AvailabilityTimesOut, nil
}

func (t *Target) ListActionable(ctx context.Context) ([]remote.Candidate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ListErr != nil {
		return nil, t.ListErr
	}
	return append([]remote.Candidate(nil), t.current.Actionable...), nil
}

func (t *Target) Claim(ctx context.Context, candidate remote.Candidate) (remote.ActionHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ClaimCalls = append(t.ClaimCalls, candidate)
	if t.ClaimErr != nil {
		return remote.ActionHandle{}, t.ClaimErr
	}
	t.claims++
	return remote.ActionHandle{
		CandidateID: candidate.RawTitle,
		Marker:      fmt.Sprintf("claim-%d", t.claims),
	}, nil
}

func (t *Target) PollState(ctx context.Context, handle remote.ActionHandle, timeout time.Duration) (remote.ClaimState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current.ClaimStates != nil {
		if state, ok := t.current.ClaimStates[handle.CandidateID]; ok {
			return state, nil
		}
	}
	return remote.ClaimSatisfied, nil
}

func (t *Target) Undo(ctx context.Context, handle remote.ActionHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.UndoCalls = append(t.UndoCalls, handle)
	return nil
}

func (t *Target) ApplyCredential(ctx context.Context, value string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CredentialCalls = append(t.CredentialCalls, value)
	return nil
}
