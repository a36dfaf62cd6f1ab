package history

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handlers serves the resolution journal over the API.
type Handlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHandlers creates history handlers.
func NewHandlers(service *Service, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger.With().Str("component", "history-api").Logger(),
	}
}

// RegisterRoutes mounts the history routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/history", h.List)
}

// List returns recent resolution attempts, newest first. The optional
// take parameter caps the page size.
func (h *Handlers) List(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("take"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "take must be a positive integer")
		}
		limit = n
	}

	attempts, err := h.service.List(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list attempts")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list history")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"results": attempts,
		"count":   len(attempts),
	})
}
