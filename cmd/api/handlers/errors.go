package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/launchpad/common/logger"
	"github.com/lyzr/launchpad/common/models"
)

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicatePath),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidArtifact):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the JSON error body for err. Internal failures are
// logged and reported with the generic message.
func respondError(c echo.Context, log *logger.Logger, err error, message string) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(message, "path", c.Path(), "error", err)
		return c.JSON(status, map[string]interface{}{
			"error": message,
		})
	}
	return c.JSON(status, map[string]interface{}{
		"error": err.Error(),
	})
}

// uuidParam parses a path parameter, writing a 400 when it is malformed
func uuidParam(c echo.Context, name string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false, c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid " + name + " format",
		})
	}
	return id, true, nil
}

// limitParam reads ?limit=, returning 0 (service default) when absent or invalid
func limitParam(c echo.Context) int {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
