package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/matching"
	"github.com/bridgarr/bridgarr/internal/remote"
	"github.com/bridgarr/bridgarr/internal/remote/mock"
)

func newTestResolver() *Resolver {
	return New(matching.NewMatcher(matching.DefaultThresholds()), Config{
		AvailabilityWait: 10 * time.Millisecond,
		ClaimPollTimeout: 10 * time.Millisecond,
		MaxFileCount:     1,
	}, zerolog.Nop())
}

func duneRequest() Request {
	return Request{
		ID:         "req-1",
		ExternalID: "438631",
		MediaType:  remote.MediaTypeMovie,
		Title:      "Dune",
		Year:       2021,
	}
}

func TestResolveClaimsMatchingCandidate(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{
			{RawTitle: "Dune (2021) 2160p", FileCount: 1, Actionable: true},
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeClaimed {
		t.Fatalf("Outcome = %s, want %s (err: %v)", result.Outcome, OutcomeClaimed, result.Err)
	}
	if result.Candidate != "Dune (2021) 2160p" {
		t.Errorf("Candidate = %q", result.Candidate)
	}
	if len(target.ClaimCalls) != 1 {
		t.Errorf("ClaimCalls = %d, want 1", len(target.ClaimCalls))
	}
}

func TestResolveAlreadySatisfiedNeverClaims(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Satisfied: []remote.Candidate{
			{RawTitle: "Dune.2021", FileCount: 1, AlreadySatisfied: true},
		},
		Actionable: []remote.Candidate{
			{RawTitle: "Dune (2021) 1080p", FileCount: 1, Actionable: true},
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeAlreadySatisfied {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeAlreadySatisfied)
	}
	if len(target.ClaimCalls) != 0 {
		t.Errorf("claim must never be invoked for an already satisfied request, got %d calls", len(target.ClaimCalls))
	}
}

func TestResolveUndoesPendingClaimAndFallsThrough(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{
			{RawTitle: "Dune.2021.720p", FileCount: 1, Actionable: true},
		},
		ClaimStates: map[string]remote.ClaimState{
			"Dune.2021.720p": remote.ClaimPending,
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeNoMatch {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeNoMatch)
	}
	if len(target.UndoCalls) != 1 {
		t.Errorf("UndoCalls = %d, want 1", len(target.UndoCalls))
	}
}

func TestResolvePendingThenNextCandidateClaimed(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{
			{RawTitle: "Dune.2021.720p", FileCount: 1, Actionable: true},
			{RawTitle: "Dune.2021.1080p", FileCount: 1, Actionable: true},
		},
		ClaimStates: map[string]remote.ClaimState{
			"Dune.2021.720p": remote.ClaimPending,
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeClaimed {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeClaimed)
	}
	if result.Candidate != "Dune.2021.1080p" {
		t.Errorf("Candidate = %q, want the second box", result.Candidate)
	}
	if len(target.UndoCalls) != 1 || len(target.ClaimCalls) != 2 {
		t.Errorf("UndoCalls = %d ClaimCalls = %d, want 1 and 2", len(target.UndoCalls), len(target.ClaimCalls))
	}
}

func TestResolveUndoneClaimsNeverSkipAdjacentCandidates(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{
			{RawTitle: "Dune.2021.480p", FileCount: 1, Actionable: true},
			{RawTitle: "Dune.2021.720p", FileCount: 1, Actionable: true},
			{RawTitle: "Dune.2021.1080p", FileCount: 1, Actionable: true},
		},
		ClaimStates: map[string]remote.ClaimState{
			"Dune.2021.480p": remote.ClaimPending,
			"Dune.2021.720p": remote.ClaimPending,
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeClaimed {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeClaimed)
	}
	if result.Candidate != "Dune.2021.1080p" {
		t.Errorf("Candidate = %q, want the third box", result.Candidate)
	}
	// Every candidate must be tried exactly once, in remote order.
	if len(target.ClaimCalls) != 3 {
		t.Fatalf("ClaimCalls = %d, want 3", len(target.ClaimCalls))
	}
	for i, want := range []string{"Dune.2021.480p", "Dune.2021.720p", "Dune.2021.1080p"} {
		if target.ClaimCalls[i].RawTitle != want {
			t.Errorf("ClaimCalls[%d] = %q, want %q", i, target.ClaimCalls[i].RawTitle, want)
		}
	}
	if len(target.UndoCalls) != 2 {
		t.Errorf("UndoCalls = %d, want 2", len(target.UndoCalls))
	}
}

func TestResolveSkipsMultiFileAndMismatchedCandidates(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{
			{RawTitle: "Dune.2021.Trilogy.Pack", FileCount: 3, Actionable: true},
			{RawTitle: "Blade.Runner.2049.2160p", FileCount: 1, Actionable: true},
			{RawTitle: "Dune.2021.NoCount", FileCount: remote.FileCountUnknown, Actionable: true},
			{RawTitle: "Dune.2021.2160p", FileCount: 1, Actionable: true},
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeClaimed {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeClaimed)
	}
	if result.Candidate != "Dune.2021.2160p" {
		t.Errorf("Candidate = %q, want the single-file match", result.Candidate)
	}
	if len(target.ClaimCalls) != 1 {
		t.Errorf("ClaimCalls = %d, want 1", len(target.ClaimCalls))
	}
}

func TestResolveNoResults(t *testing.T) {
	target := mock.New() // empty default library triggers ErrNoResults

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeNoMatch {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeNoMatch)
	}
}

func TestResolveRemoteError(t *testing.T) {
	target := mock.New()
	target.OpenErr = errors.New("session crashed")

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeRemoteError {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeRemoteError)
	}
	if result.Err == nil {
		t.Error("Err must carry the remote failure")
	}
	// Open is retried once before surfacing the error.
	if len(target.OpenCalls) != 2 {
		t.Errorf("OpenCalls = %d, want 2", len(target.OpenCalls))
	}
}

func TestResolveAmbiguousSatisfiedCandidates(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Satisfied: []remote.Candidate{
			{RawTitle: "Dune.2020.1080p", AlreadySatisfied: true},
			{RawTitle: "Dune.2022.1080p", AlreadySatisfied: true},
		},
	}

	result := newTestResolver().Resolve(context.Background(), target, duneRequest())

	if result.Outcome != OutcomeAmbiguous {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeAmbiguous)
	}
	if len(target.ClaimCalls) != 0 {
		t.Errorf("ambiguous state must not claim, got %d calls", len(target.ClaimCalls))
	}
}

func TestResolveTranslatedAlias(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{
			{RawTitle: "Le.Fabuleux.Destin.d'Amélie.Poulain.2001.1080p", FileCount: 1, Actionable: true},
		},
	}

	req := Request{
		ID:         "req-2",
		ExternalID: "194",
		MediaType:  remote.MediaTypeMovie,
		Title:      "Le Fabuleux Destin d'Amelie Poulain",
		Year:       2001,
	}
	result := newTestResolver().Resolve(context.Background(), target, req)

	if result.Outcome != OutcomeClaimed {
		t.Fatalf("Outcome = %s, want %s (confidence %d)", result.Outcome, OutcomeClaimed, result.Confidence)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	target := mock.New()
	target.Default = mock.Library{
		Actionable: []remote.Candidate{{RawTitle: "Dune.2021", FileCount: 1, Actionable: true}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestResolver().Resolve(ctx, target, duneRequest())
	if result.Outcome != OutcomeRemoteError {
		t.Fatalf("Outcome = %s, want %s", result.Outcome, OutcomeRemoteError)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", result.Err)
	}
}
