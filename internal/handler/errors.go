package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// statusOf maps domain errors to HTTP status codes. Conflicts (duplicates,
// dependents, closed edit window, illegal transitions) are client errors
// and stay at 400.
func statusOf(err error) int {
	switch {
	case service.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMissingCredential),
		errors.Is(err, service.ErrInvalidCredential),
		errors.Is(err, service.ErrUnknownOrInactiveUser),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInsufficientPrivilege),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrReferenceNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateName),
		errors.Is(err, service.ErrDuplicatePlate),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, service.ErrHasDependents),
		errors.Is(err, service.ErrEditWindowExpired),
		errors.Is(err, service.ErrInvalidPlateNumber),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondErr writes err as an envelope. Unexpected errors are logged and
// answered with a generic message.
func respondErr(c echo.Context, log logrus.FieldLogger, err error) error {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method":     c.Request().Method,
			"path":       c.Path(),
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		}).Error("request failed")
		return fail(c, status, "internal server error", nil)
	}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return fail(c, status, "validation failed", ve.Fields)
	}
	return fail(c, status, err.Error(), nil)
}

// HTTPErrorHandler renders errors that escape handlers (unknown routes,
// wrong methods, oversized bodies, panics caught by Recover) in the
// standard envelope.
func HTTPErrorHandler(log logrus.FieldLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, isStr := he.Message.(string); isStr && s != "" {
				msg = s
			}
			if he.Code >= http.StatusInternalServerError {
				log.WithError(err).WithField("path", c.Request().URL.Path).Error("unhandled error")
				msg = "internal server error"
			}
			_ = fail(c, he.Code, msg, nil)
			return
		}
		_ = respondErr(c, log, err)
	}
}
