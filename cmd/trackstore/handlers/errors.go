package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/soundsphere/trackstore/cmd/trackstore/models"
	"github.com/soundsphere/trackstore/common/logger"
)

// errorMapping pairs a domain error with its HTTP reply
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{models.ErrValidation, http.StatusBadRequest, "validation_error", "invalid request"},
	{models.ErrNoSource, http.StatusNotFound, "no_source", "no downloadable source found"},
	{models.ErrTrackNotFound, http.StatusNotFound, "not_found", "track not found"},
	{models.ErrIntegrity, http.StatusNotFound, "not_found", "track content unavailable"},
	{models.ErrInvalidRange, http.StatusRequestedRangeNotSatisfiable, "invalid_range", "requested range not satisfiable"},
	{models.ErrResolution, http.StatusInternalServerError, "resolution_failed", "failed to resolve source"},
	{models.ErrFetch, http.StatusInternalServerError, "fetch_failed", "failed to fetch source"},
	{models.ErrStorage, http.StatusInternalServerError, "storage_failed", "failed to store track"},
}

// respondError maps err onto the JSON error body.
// Internal detail is only exposed outside production.
func respondError(c echo.Context, log *logger.Logger, production bool, err error) error {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			status, code, message = m.status, m.code, m.message
			break
		}
	}

	// Validation messages are written for the caller
	if status == http.StatusBadRequest {
		message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		ctx := c.Request().Context()
		log.WithContext(ctx).ErrorContext(ctx, "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"error", err,
		)
	}

	body := models.ErrorResponse{Error: code, Message: message}
	if !production {
		body.Detail = err.Error()
	}
	return c.JSON(status, body)
}
