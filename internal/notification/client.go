// Package notification integrates with the requesting system
// (Overseerr-compatible API): inbound webhooks feed the queue, and
// completed requests are reported back.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/remote"
	"github.com/bridgarr/bridgarr/internal/resolver"
)

// ErrNotConfigured is returned when the requester base URL is unset.
var ErrNotConfigured = errors.New("requester API is not configured")

// ClientConfig holds requester API settings.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the requesting system's REST API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a requester API client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "requester").Logger(),
	}
}

// Configured reports whether the requester API is reachable by config.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != ""
}

// MarkComplete reports a resolved request back to the requesting
// system so it flips the media to available.
func (c *Client) MarkComplete(ctx context.Context, requestID, externalID string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/api/v1/media/%s/available", strings.TrimRight(c.cfg.BaseURL, "/"), externalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(`{"is4k":false}`))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mark complete returned status %d", resp.StatusCode)
	}

	c.logger.Info().Str("externalId", externalID).Msg("reported completion to requester")
	return nil
}

// pendingResponse mirrors the requester's request list payload.
type pendingResponse struct {
	Results []struct {
		ID    int    `json:"id"`
		Type  string `json:"type"`
		Media struct {
			TmdbID int `json:"tmdbId"`
		} `json:"media"`
		Seasons []struct {
			SeasonNumber int `json:"seasonNumber"`
		} `json:"seasons"`
	} `json:"results"`
}

// ListPending fetches the approved-but-unresolved backlog. The
// periodic scan replays it through the queue, which also recovers
// requests lost to a restart.
func (c *Client) ListPending(ctx context.Context) ([]resolver.Request, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v1/request?filter=approved&take=100"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list pending requests returned status %d", resp.StatusCode)
	}

	var body pendingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode pending requests: %w", err)
	}

	requests := make([]resolver.Request, 0, len(body.Results))
	for _, item := range body.Results {
		r := resolver.Request{
			ID:         strconv.Itoa(item.ID),
			ExternalID: strconv.Itoa(item.Media.TmdbID),
			MediaType:  toMediaType(item.Type),
		}
		for _, s := range item.Seasons {
			r.Seasons = append(r.Seasons, s.SeasonNumber)
		}
		requests = append(requests, r)
	}

	c.logger.Debug().Int("count", len(requests)).Msg("fetched pending backlog")
	return requests, nil
}

func toMediaType(s string) remote.MediaType {
	if strings.EqualFold(s, "tv") {
		return remote.MediaTypeTV
	}
	return remote.MediaTypeMovie
}
