package auth

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/apperr"
	"github.com/akave-ai/quoteedge/internal/response"
)

// DefaultHeader carries the client key when no other header is configured.
const DefaultHeader = "x-api-key"

// APIKeyConfig configures RequireAPIKey.
type APIKeyConfig struct {
	// Key is the single shared secret. Must be non-empty.
	Key    string
	Header string
	Logger zerolog.Logger
}

// RequireAPIKey gates a route on a shared static key. A missing header is
// answered with 401, a wrong key with 403; both stop the chain.
func RequireAPIKey(cfg APIKeyConfig) echo.MiddlewareFunc {
	if cfg.Header == "" {
		cfg.Header = DefaultHeader
	}
	want := []byte(cfg.Key)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(cfg.Header)
			if got == "" {
				cfg.Logger.Debug().Str("path", c.Request().URL.Path).Msg("api key missing")
				return response.Error(c, apperr.MissingAPIKey(), false)
			}
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				cfg.Logger.Warn().Str("path", c.Request().URL.Path).Msg("api key rejected")
				return response.Error(c, apperr.InvalidAPIKey(), false)
			}
			return next(c)
		}
	}
}
