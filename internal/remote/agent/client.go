// Package agent implements remote.Target against the sidecar browser
// agent's REST API. The agent owns the actual browser session; this
// client only exchanges abstract candidates and claim actions with it.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/remote"
)

var _ remote.Target = (*Client)(nil)

// Config holds agent connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// DefaultFilter is pushed into the session at credential setup so
	// the remote pre-filters junk releases.
	DefaultFilter string
}

// Client talks to the browser agent.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates an agent client.
func New(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "remote-agent").Logger(),
	}
}

// Test verifies connectivity to the agent.
func (c *Client) Test(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

func (c *Client) Open(ctx context.Context, identity remote.Identity) error {
	body := map[string]any{
		"externalId": identity.ExternalID,
		"mediaType":  string(identity.MediaType),
		"query":      identity.Query,
	}
	if len(identity.Seasons) > 0 {
		body["seasons"] = identity.Seasons
	}

	var resp struct {
		Results int `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/session/open", body, &resp); err != nil {
		return err
	}
	if resp.Results == 0 {
		return remote.ErrNoResults
	}
	return nil
}

func (c *Client) ListAlreadySatisfied(ctx context.Context) ([]remote.Candidate, error) {
	return c.listCandidates(ctx, "/api/v1/candidates?state=satisfied")
}

func (c *Client) ListActionable(ctx context.Context) ([]remote.Candidate, error) {
	return c.listCandidates(ctx, "/api/v1/candidates?state=actionable")
}

func (c *Client) AwaitAvailabilitySignal(ctx context.Context, timeout time.Duration) (bool, error) {
	var resp struct {
		Cleared bool `json:"cleared"`
	}
	path := fmt.Sprintf("/api/v1/availability/wait?timeoutMs=%d", timeout.Milliseconds())
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Cleared, nil
}

func (c *Client) Claim(ctx context.Context, candidate remote.Candidate) (remote.ActionHandle, error) {
	body := map[string]any{"title": candidate.RawTitle}
	var resp struct {
		CandidateID string `json:"candidateId"`
		Marker      string `json:"marker"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/claim", body, &resp); err != nil {
		return remote.ActionHandle{}, err
	}
	return remote.ActionHandle{CandidateID: resp.CandidateID, Marker: resp.Marker}, nil
}

func (c *Client) PollState(ctx context.Context, handle remote.ActionHandle, timeout time.Duration) (remote.ClaimState, error) {
	body := map[string]any{
		"candidateId": handle.CandidateID,
		"marker":      handle.Marker,
		"timeoutMs":   timeout.Milliseconds(),
	}
	var resp struct {
		State string `json:"state"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/claim/poll", body, &resp); err != nil {
		return remote.ClaimTimedOut, err
	}
	switch resp.State {
	case "pending":
		return remote.ClaimPending, nil
	case "satisfied":
		return remote.ClaimSatisfied, nil
	default:
		return remote.ClaimTimedOut, nil
	}
}

func (c *Client) Undo(ctx context.Context, handle remote.ActionHandle) error {
	body := map[string]any{
		"candidateId": handle.CandidateID,
		"marker":      handle.Marker,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/claim/undo", body, nil)
}

func (c *Client) ApplyCredential(ctx context.Context, value string) error {
	body := map[string]any{
		"credential":    value,
		"defaultFilter": c.cfg.DefaultFilter,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/session/credential", body, nil)
}

func (c *Client) listCandidates(ctx context.Context, path string) ([]remote.Candidate, error) {
	var resp struct {
		Candidates []struct {
			Title            string `json:"title"`
			FileCount        *int   `json:"fileCount"`
			AlreadySatisfied bool   `json:"alreadySatisfied"`
			Actionable       bool   `json:"actionable"`
		} `json:"candidates"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	candidates := make([]remote.Candidate, 0, len(resp.Candidates))
	for _, rc := range resp.Candidates {
		fileCount := remote.FileCountUnknown
		if rc.FileCount != nil {
			fileCount = *rc.FileCount
		}
		candidates = append(candidates, remote.Candidate{
			RawTitle:         rc.Title,
			FileCount:        fileCount,
			AlreadySatisfied: rc.AlreadySatisfied,
			Actionable:       rc.Actionable,
		})
	}
	return candidates, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
	case http.StatusUnauthorized:
		return remote.ErrSessionExpired
	case http.StatusNotFound:
		return remote.ErrNoResults
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
