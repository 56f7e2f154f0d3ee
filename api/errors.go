package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"lifelog-api/ai"
)

// writeAIError maps interpreter failures onto HTTP responses. Rate limits and
// upstream failures keep their upstream status; contract violations are 422.
func writeAIError(c echo.Context, err error) error {
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	switch aiErr.Kind {
	case ai.KindRateLimited:
		if aiErr.RetryAfterSeconds != nil {
			c.Response().Header().Set("Retry-After", strconv.Itoa(*aiErr.RetryAfterSeconds))
		}
		if aiErr.RequestID != "" {
			c.Response().Header().Set("X-Request-Id", aiErr.RequestID)
		}
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": aiErr.Message})
	case ai.KindUpstream:
		status := aiErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		if aiErr.RequestID != "" {
			c.Response().Header().Set("X-Request-Id", aiErr.RequestID)
		}
		return c.JSON(status, map[string]string{"error": aiErr.Message})
	default:
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": aiErr.Message})
	}
}
