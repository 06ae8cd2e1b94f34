package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/apperr"
	"github.com/akave-ai/quoteedge/internal/response"
)

// ErrorHandler is the single terminal error boundary. Upstream timeouts map
// to 504, other upstream or untyped errors to 502, and router errors keep
// their own status. detail is included only outside production.
func ErrorHandler(logger zerolog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status   int
			writeErr error
		)
		var he *echo.HTTPError
		switch e, ok := apperr.As(err); {
		case ok:
			status = e.Status
			writeErr = response.Error(c, e, !production)
		case errors.As(err, &he):
			status = he.Code
			msg, isString := he.Message.(string)
			if !isString || msg == "" {
				msg = http.StatusText(he.Code)
			}
			writeErr = response.Status(c, he.Code, msg)
		default:
			fail := apperr.UpstreamFailure(err)
			status = fail.Status
			writeErr = response.Error(c, fail, !production)
		}

		ev := logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Err(err).
			Str("kind", apperr.KindOf(err).String()).
			Int("status", status).
			Str("path", c.Request().URL.Path).
			Msg("request failed")

		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}
