package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Exchanger performs the refresh exchange against the credential
// issuing endpoint.
type Exchanger interface {
	Refresh(ctx context.Context, current Credential) (Credential, error)
}

// ExchangeConfig holds issuing-endpoint settings.
type ExchangeConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// HTTPExchanger refreshes the token over the OAuth-style device flow
// the debrid provider uses. The exchange is idempotent: replaying a
// refresh after a lost response yields another valid token from the
// issuing endpoint, which is the source of truth.
type HTTPExchanger struct {
	cfg        ExchangeConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPExchanger creates an exchanger.
func NewHTTPExchanger(cfg ExchangeConfig, logger zerolog.Logger) *HTTPExchanger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPExchanger{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "credential-exchange").Logger(),
	}
}

func (e *HTTPExchanger) Refresh(ctx context.Context, current Credential) (Credential, error) {
	form := url.Values{}
	form.Set("client_id", e.cfg.ClientID)
	form.Set("client_secret", e.cfg.ClientSecret)
	form.Set("code", current.RefreshToken)
	form.Set("grant_type", "http://oauth.net/grant_type/device/1.0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("refresh exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Credential{}, fmt.Errorf("refresh exchange returned status %d: %s", resp.StatusCode, payload)
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, fmt.Errorf("decode refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return Credential{}, fmt.Errorf("refresh exchange returned empty access token")
	}

	refreshed := Credential{
		Value:        body.AccessToken,
		RefreshToken: body.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	return refreshed, nil
}
