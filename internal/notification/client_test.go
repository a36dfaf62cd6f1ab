package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bridgarr/bridgarr/internal/remote"
)

func TestMarkComplete(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "secret"}, zerolog.Nop())
	require.NoError(t, client.MarkComplete(context.Background(), "42", "438631"))
	assert.Equal(t, "/api/v1/media/438631/available", gotPath)
	assert.Equal(t, "secret", gotKey)
}

func TestMarkCompleteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL}, zerolog.Nop())
	assert.Error(t, client.MarkComplete(context.Background(), "42", "438631"))
}

func TestMarkCompleteNotConfigured(t *testing.T) {
	client := NewClient(ClientConfig{}, zerolog.Nop())
	assert.ErrorIs(t, client.MarkComplete(context.Background(), "42", "1"), ErrNotConfigured)
}

func TestListPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/request", r.URL.Path)
		assert.Equal(t, "approved", r.URL.Query().Get("filter"))
		w.Write([]byte(`{"results": [
			{"id": 7, "type": "movie", "media": {"tmdbId": 438631}},
			{"id": 8, "type": "tv", "media": {"tmdbId": 95396}, "seasons": [{"seasonNumber": 1}, {"seasonNumber": 2}]}
		]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, APIKey: "secret"}, zerolog.Nop())
	requests, err := client.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, "7", requests[0].ID)
	assert.Equal(t, "438631", requests[0].ExternalID)
	assert.Equal(t, remote.MediaTypeMovie, requests[0].MediaType)

	assert.Equal(t, remote.MediaTypeTV, requests[1].MediaType)
	assert.Equal(t, []int{1, 2}, requests[1].Seasons)
}

func TestListPendingErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL}, zerolog.Nop())
	_, err := client.ListPending(context.Background())
	assert.Error(t, err)
}
