package notification

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgarr/bridgarr/internal/queue"
	"github.com/bridgarr/bridgarr/internal/remote"
	"github.com/bridgarr/bridgarr/internal/resolver"
)

type fakeQueue struct {
	admitted []resolver.Request
	err      error
}

func (f *fakeQueue) Enqueue(req resolver.Request) error {
	if f.err != nil {
		return f.err
	}
	f.admitted = append(f.admitted, req)
	return nil
}

func postWebhook(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	err := h.Receive(e.NewContext(req, rec))
	if err != nil {
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		rec.Code = httpErr.Code
	}
	return rec
}

func TestReceiveAcceptsMovieRequest(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandlers(q, zerolog.Nop())

	rec := postWebhook(t, h, `{
		"notification_type": "MEDIA_APPROVED",
		"subject": "Dune (2021)",
		"media": {"media_type": "movie", "tmdbId": 438631},
		"request": {"request_id": 42}
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.admitted, 1)
	got := q.admitted[0]
	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "438631", got.ExternalID)
	assert.Equal(t, remote.MediaTypeMovie, got.MediaType)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, 2021, got.Year)
}

func TestReceiveParsesSeasons(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandlers(q, zerolog.Nop())

	rec := postWebhook(t, h, `{
		"subject": "Severance (2022)",
		"media": {"media_type": "tv", "tmdbId": "95396"},
		"extra": [{"name": "Requested Seasons", "value": "1, 2"}]
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.admitted, 1)
	got := q.admitted[0]
	assert.Equal(t, remote.MediaTypeTV, got.MediaType)
	assert.Equal(t, []int{1, 2}, got.Seasons)
	assert.NotEmpty(t, got.ID, "missing request id must be generated")
}

func TestReceiveRejectsMissingMediaID(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandlers(q, zerolog.Nop())

	rec := postWebhook(t, h, `{"subject": "Dune (2021)", "media": {"media_type": "movie"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, q.admitted)
}

func TestReceiveQueueFull(t *testing.T) {
	q := &fakeQueue{err: queue.ErrFull}
	h := NewHandlers(q, zerolog.Nop())

	rec := postWebhook(t, h, `{
		"subject": "Dune (2021)",
		"media": {"media_type": "movie", "tmdbId": 438631}
	}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReceiveTestNotification(t *testing.T) {
	q := &fakeQueue{}
	h := NewHandlers(q, zerolog.Nop())

	rec := postWebhook(t, h, `{"notification_type": "TEST_NOTIFICATION"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, q.admitted, "test notifications must not be queued")
}
