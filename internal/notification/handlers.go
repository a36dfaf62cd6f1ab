package notification

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bridgarr/bridgarr/internal/matching"
	"github.com/bridgarr/bridgarr/internal/queue"
	"github.com/bridgarr/bridgarr/internal/resolver"
)

// Enqueuer admits a request for resolution.
type Enqueuer interface {
	Enqueue(req resolver.Request) error
}

// WebhookPayload is the requester's webhook body. Only the fields the
// pipeline needs are bound.
type WebhookPayload struct {
	NotificationType string `json:"notification_type"`
	Subject          string `json:"subject"`
	Media            struct {
		MediaType string `json:"media_type"`
		TmdbID    any    `json:"tmdbId"`
	} `json:"media"`
	Request struct {
		RequestID any `json:"request_id"`
	} `json:"request"`
	Extra []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"extra"`
}

// Handlers serves the inbound webhook endpoint.
type Handlers struct {
	queue  Enqueuer
	logger zerolog.Logger
}

// NewHandlers creates webhook handlers.
func NewHandlers(q Enqueuer, logger zerolog.Logger) *Handlers {
	return &Handlers{
		queue:  q,
		logger: logger.With().Str("component", "webhook").Logger(),
	}
}

// RegisterRoutes mounts the webhook route.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/webhook", h.Receive)
}

// Receive accepts a webhook, validates it, and admits the request.
// Acceptance means admission only; resolution happens asynchronously.
func (h *Handlers) Receive(c echo.Context) error {
	var payload WebhookPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook payload")
	}

	if payload.NotificationType == "TEST_NOTIFICATION" {
		h.logger.Info().Msg("received test notification")
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}

	req, err := payloadToRequest(payload)
	if err != nil {
		h.logger.Warn().Err(err).Str("subject", payload.Subject).Msg("rejecting malformed webhook")
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.queue.Enqueue(req); err != nil {
		if errors.Is(err, queue.ErrFull) {
			h.logger.Warn().Str("externalId", req.ExternalID).Msg("queue full, asking requester to retry")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "request queue is full")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to admit request")
	}

	h.logger.Info().
		Str("requestId", req.ID).
		Str("externalId", req.ExternalID).
		Str("title", req.Title).
		Msg("webhook accepted")
	return c.JSON(http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"requestId": req.ID,
	})
}

// payloadToRequest validates and converts a webhook body.
func payloadToRequest(p WebhookPayload) (resolver.Request, error) {
	externalID := flexibleID(p.Media.TmdbID)
	if externalID == "" {
		return resolver.Request{}, errors.New("webhook payload missing media id")
	}

	id := flexibleID(p.Request.RequestID)
	if id == "" {
		id = uuid.NewString()
	}

	title, year := matching.StripYearSuffix(p.Subject)
	return resolver.Request{
		ID:         id,
		ExternalID: externalID,
		MediaType:  toMediaType(p.Media.MediaType),
		Title:      strings.TrimSpace(title),
		Year:       year,
		Seasons:    parseSeasons(p.Extra),
	}, nil
}

// flexibleID normalizes an id field that arrives as either a JSON
// number or a string.
func flexibleID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return strconv.Itoa(int(id))
	case int:
		return strconv.Itoa(id)
	default:
		return ""
	}
}

// parseSeasons reads the requested season list from the webhook's
// extra fields ("1, 3" style).
func parseSeasons(extra []struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}) []int {
	for _, e := range extra {
		if !strings.EqualFold(e.Name, "Requested Seasons") {
			continue
		}
		var seasons []int
		for _, part := range strings.Split(e.Value, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			seasons = append(seasons, n)
		}
		return seasons
	}
	return nil
}
