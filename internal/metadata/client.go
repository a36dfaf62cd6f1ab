// Package metadata resolves canonical title/year for an external
// catalog id, rate-limited against the provider's published limits.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/ratelimit"
	"github.com/bridgarr/bridgarr/internal/remote"
)

var (
	// ErrNotFound means the external id has no catalog entry.
	ErrNotFound = errors.New("metadata entry not found")
	// ErrAPIKeyMissing means the provider is not configured.
	ErrAPIKeyMissing = errors.New("metadata API key is not configured")
	// ErrRateLimited means the provider rejected the call despite the
	// local limiter; the caller should retry on the next scan.
	ErrRateLimited = errors.New("metadata provider rate limited")
)

// Config holds provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a TMDB-style metadata client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     zerolog.Logger
}

// New creates a metadata client. The limiter guards every outbound
// call.
func New(cfg Config, limiter *ratelimit.Limiter, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger.With().Str("component", "metadata").Logger(),
	}
}

// LookupTitleYear fetches the canonical title and release year for an
// external id.
func (c *Client) LookupTitleYear(ctx context.Context, mediaType remote.MediaType, externalID string) (string, int, error) {
	if c.cfg.APIKey == "" {
		return "", 0, ErrAPIKeyMissing
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}

	var endpoint string
	switch mediaType {
	case remote.MediaTypeTV:
		endpoint = fmt.Sprintf("%s/tv/%s", c.cfg.BaseURL, url.PathEscape(externalID))
	default:
		endpoint = fmt.Sprintf("%s/movie/%s", c.cfg.BaseURL, url.PathEscape(externalID))
	}

	params := url.Values{}
	params.Set("api_key", c.cfg.APIKey)

	var body struct {
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	}
	if err := c.doRequest(ctx, endpoint, params, &body); err != nil {
		return "", 0, err
	}

	title := body.Title
	if title == "" {
		title = body.Name
	}
	if title == "" {
		return "", 0, ErrNotFound
	}

	year := parseYear(body.ReleaseDate)
	if year == 0 {
		year = parseYear(body.FirstAirDate)
	}

	c.logger.Debug().
		Str("externalId", externalID).
		Str("title", title).
		Int("year", year).
		Msg("resolved canonical title")
	return title, year, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("metadata provider returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// parseYear extracts the year from a YYYY-MM-DD date string.
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year := 0
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}
