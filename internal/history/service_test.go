package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgarr/bridgarr/internal/remote"
	"github.com/bridgarr/bridgarr/internal/resolver"
)

func newServiceUnderTest(t *testing.T) *Service {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return NewService(db, zerolog.Nop())
}

func sampleRequest(id, externalID string) resolver.Request {
	return resolver.Request{
		ID:         id,
		ExternalID: externalID,
		MediaType:  remote.MediaTypeMovie,
		Title:      "Dune",
		Year:       2021,
	}
}

func TestRecordAndList(t *testing.T) {
	s := newServiceUnderTest(t)
	ctx := context.Background()

	s.RecordAttempt(ctx, sampleRequest("1", "100"), resolver.Result{
		Outcome:    resolver.OutcomeClaimed,
		Candidate:  "Dune.2021.1080p",
		Confidence: 92,
	})
	s.RecordAttempt(ctx, sampleRequest("2", "200"), resolver.Result{
		Outcome: resolver.OutcomeRemoteError,
		Err:     errors.New("session expired"),
	})

	attempts, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	// Newest first.
	assert.Equal(t, "2", attempts[0].RequestID)
	assert.Equal(t, string(resolver.OutcomeRemoteError), attempts[0].Outcome)
	assert.Equal(t, "session expired", attempts[0].Error)

	assert.Equal(t, "1", attempts[1].RequestID)
	assert.Equal(t, string(resolver.OutcomeClaimed), attempts[1].Outcome)
	assert.Equal(t, "Dune.2021.1080p", attempts[1].Candidate)
	assert.Equal(t, 92, attempts[1].Confidence)
	assert.False(t, attempts[1].AttemptedAt.IsZero())
}

func TestListLimit(t *testing.T) {
	s := newServiceUnderTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.RecordAttempt(ctx, sampleRequest("1", "100"), resolver.Result{Outcome: resolver.OutcomeNoMatch})
	}

	attempts, err := s.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}

func TestLastOutcome(t *testing.T) {
	s := newServiceUnderTest(t)
	ctx := context.Background()

	outcome, err := s.LastOutcome(ctx, "100")
	require.NoError(t, err)
	assert.Empty(t, outcome)

	s.RecordAttempt(ctx, sampleRequest("1", "100"), resolver.Result{Outcome: resolver.OutcomeNoMatch})
	s.RecordAttempt(ctx, sampleRequest("2", "100"), resolver.Result{Outcome: resolver.OutcomeClaimed})

	outcome, err = s.LastOutcome(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, string(resolver.OutcomeClaimed), outcome)
}

func TestListHandler(t *testing.T) {
	s := newServiceUnderTest(t)
	s.RecordAttempt(context.Background(), sampleRequest("1", "100"), resolver.Result{Outcome: resolver.OutcomeClaimed})

	h := NewHandlers(s, zerolog.Nop())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?take=10", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, h.List(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"claimed"`)
}

func TestListHandlerBadTake(t *testing.T) {
	s := newServiceUnderTest(t)
	h := NewHandlers(s, zerolog.Nop())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?take=banana", nil)
	rec := httptest.NewRecorder()

	err := h.List(e.NewContext(req, rec))
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}
