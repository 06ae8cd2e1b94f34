package visit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const (
	DefaultCookieName = "visitor_id"
	DefaultCookieAge  = 365 * 24 * time.Hour

	contextKeyVisitor = "visitor_id"
)

// Enqueuer receives finished requests. *Queue implements it.
type Enqueuer interface {
	Enqueue(e Entry) bool
}

type Config struct {
	Skipper      middleware.Skipper
	Queue        Enqueuer
	CookieName   string
	CookieMaxAge time.Duration
	SecureCookie bool
	Logger       zerolog.Logger
}

// Middleware assigns a visitor identity, lets the rest of the chain produce
// the response, then enqueues exactly one Entry for it. Handler errors are
// rendered through the echo error handler first so the recorded status is
// the one the client saw.
func Middleware(cfg Config) echo.MiddlewareFunc {
	if cfg.Skipper == nil {
		cfg.Skipper = middleware.DefaultSkipper
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = DefaultCookieAge
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if cfg.Skipper(c) {
				return next(c)
			}
			start := time.Now()
			visitorID := cfg.visitorIdentity(c)
			c.Set(contextKeyVisitor, visitorID)

			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					err = fmt.Errorf("panic: %w", perr)
				}
				if err != nil {
					c.Error(err)
				}
				cfg.record(c, visitorID, start)
			}()

			return next(c)
		}
	}
}

// VisitorID returns the identity assigned to the current request.
func VisitorID(c echo.Context) string {
	id, _ := c.Get(contextKeyVisitor).(string)
	return id
}

func (cfg Config) visitorIdentity(c echo.Context) string {
	if ck, err := c.Cookie(cfg.CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	id := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     cfg.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cfg.CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (cfg Config) record(c echo.Context, visitorID string, start time.Time) {
	defer func() {
		if r := recover(); r != nil {
			cfg.Logger.Error().Interface("panic", r).Msg("visit log failed")
		}
	}()
	if cfg.Queue == nil {
		return
	}
	req := c.Request()
	cfg.Queue.Enqueue(Entry{
		Method:    req.Method,
		Path:      req.URL.Path,
		Status:    c.Response().Status,
		Duration:  time.Since(start),
		Referrer:  req.Referer(),
		UserAgent: req.UserAgent(),
		ClientIP:  c.RealIP(),
		VisitorID: visitorID,
		At:        start,
	})
}
