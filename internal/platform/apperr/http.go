package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the failure envelope returned to API callers.
type Response struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Code    Kind              `json:"code"`
	Field   string            `json:"field,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind Kind) int {
	switch kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound, KindParticipantNotFound:
		return http.StatusNotFound
	case KindSlotAlreadyBooked, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ToResponse converts any error into the failure envelope and its status.
// Internal error text is never exposed.
func ToResponse(err error) (int, Response) {
	var appErr *Error
	if errors.As(err, &appErr) {
		status := StatusOf(appErr.Kind)
		msg := appErr.Message
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
		return status, Response{
			Error:   msg,
			Code:    appErr.Kind,
			Field:   appErr.Field,
			Details: appErr.Details,
		}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, Response{
			Error: fmt.Sprintf("%v", httpErr.Message),
			Code:  kindForStatus(httpErr.Code),
		}
	}

	return http.StatusInternalServerError, Response{
		Error: "internal server error",
		Code:  KindInternal,
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindInternal
	}
}

// HTTPErrorHandler renders every handler error as a structured failure.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := ToResponse(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).Str("request_id", rid).Msg("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
