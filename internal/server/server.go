package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/auth"
	"github.com/akave-ai/quoteedge/internal/config"
	"github.com/akave-ai/quoteedge/internal/handler"
	"github.com/akave-ai/quoteedge/internal/response"
	"github.com/akave-ai/quoteedge/internal/validate"
	"github.com/akave-ai/quoteedge/internal/visit"
)

const (
	quotePath   = "/api/quote"
	metricsPath = "/metrics"
	healthPath  = "/healthz"
)

// Deps are the collaborators New wires into the pipeline.
type Deps struct {
	Logger zerolog.Logger
	Quotes handler.QuoteSource
	// Visits receives one entry per request. Nil disables visit logging.
	Visits *visit.Queue
	// Sink is closed after Visits has drained.
	Sink     interface{ Close() error }
	NewRelic *newrelic.Application
	// Registry collects server and visit metrics. A fresh one is created when nil.
	Registry *prometheus.Registry
}

// Server holds the Echo app and dependencies.
type Server struct {
	Echo     *echo.Echo
	Config   *config.Config
	logger   zerolog.Logger
	visits   *visit.Queue
	sink     interface{ Close() error }
	nrApp    *newrelic.Application
	registry *prometheus.Registry
}

// New builds the Echo server and registers routes. Middleware order is fixed:
// security headers, CORS, request logging, body limit, visit logging, then
// per route the API-key gate (when enabled) and the validator.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger := deps.Logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger, cfg.IsProduction())
	if cfg.Server.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(middleware.Recover())
	if deps.NewRelic != nil {
		e.Use(newRelicTransactions(deps.NewRelic))
	}
	e.Use(newRequestMetrics(reg).middleware)
	e.Use(middleware.SecureWithConfig(secureConfig(cfg.IsProduction())))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, cfg.Auth.Header},
	}))
	e.Use(requestLogger(logger))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
	if deps.Visits != nil {
		e.Use(visit.Middleware(visit.Config{
			Skipper:      operationalRoute,
			Queue:        deps.Visits,
			CookieName:   cfg.Visits.CookieName,
			CookieMaxAge: cfg.Visits.CookieMaxAge,
			SecureCookie: cfg.Visits.SecureCookie,
			Logger:       logger,
		}))
	}

	var quoteMW []echo.MiddlewareFunc
	if cfg.Features.RequireAPIKey {
		quoteMW = append(quoteMW, auth.RequireAPIKey(auth.APIKeyConfig{
			Key:    cfg.Auth.APIKey,
			Header: cfg.Auth.Header,
			Logger: logger,
		}))
	}
	quoteMW = append(quoteMW, validate.Request(validate.Input{Query: handler.QuoteQuery}))

	quoteHandler := &handler.QuoteHandler{Quotes: deps.Quotes, Logger: logger}
	e.Match([]string{http.MethodGet, http.MethodHead}, quotePath, quoteHandler.Get, quoteMW...)

	if cfg.Features.RenderView {
		renderer, err := handler.NewTemplateRenderer()
		if err != nil {
			return nil, err
		}
		e.Renderer = renderer
		viewHandler := &handler.ViewHandler{
			Title:         "Quote of the moment",
			QuotePath:     quotePath,
			APIKeyHeader:  cfg.Auth.Header,
			RequireAPIKey: cfg.Features.RequireAPIKey,
		}
		e.GET("/", viewHandler.Index)
	}

	e.GET(healthPath, func(c echo.Context) error {
		return response.OK(c, map[string]any{"status": "ok"}, "")
	})
	e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	return &Server{
		Echo:     e,
		Config:   cfg,
		logger:   logger,
		visits:   deps.Visits,
		sink:     deps.Sink,
		nrApp:    deps.NewRelic,
		registry: reg,
	}, nil
}

// Start starts the HTTP server. Blocks until the context is cancelled or the
// server fails. On cancel it returns only after Shutdown has drained the
// visit queue.
func (s *Server) Start(ctx context.Context) error {
	s.Echo.Server.ReadTimeout = s.Config.Server.ReadTimeout
	s.Echo.Server.WriteTimeout = s.Config.Server.WriteTimeout
	s.Echo.Server.IdleTimeout = s.Config.Server.IdleTimeout

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		stopped <- s.Shutdown(shutdownCtx)
	}()

	addr := ":" + s.Config.Server.Port
	s.logger.Info().Str("addr", addr).Msg("server listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-stopped; err != nil {
		s.logger.Error().Err(err).Msg("shutdown")
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// Shutdown stops the HTTP server, then drains the visit queue and closes the
// sink and the New Relic agent.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	if s.visits != nil {
		if qerr := s.visits.Close(ctx); qerr != nil {
			err = errors.Join(err, qerr)
		}
	}
	if s.sink != nil {
		if serr := s.sink.Close(); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	if s.nrApp != nil {
		s.nrApp.Shutdown(5 * time.Second)
	}
	return err
}

func operationalRoute(c echo.Context) bool {
	switch c.Request().URL.Path {
	case metricsPath, healthPath:
		return true
	}
	return false
}

func secureConfig(production bool) middleware.SecureConfig {
	scriptSrc := "script-src 'self'"
	upgrade := ";upgrade-insecure-requests"
	if !production {
		scriptSrc += " 'unsafe-inline'"
		upgrade = ""
	}
	return middleware.SecureConfig{
		XSSProtection:      "0",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         15552000,
		ReferrerPolicy:     "no-referrer",
		ContentSecurityPolicy: "default-src 'self';base-uri 'self';font-src 'self' https: data:;" +
			"form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';" +
			scriptSrc + ";script-src-attr 'none';style-src 'self' https: 'unsafe-inline'" + upgrade,
	}
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := logger.Info()
			if v.Error != nil {
				ev = logger.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("visitor_id", visit.VisitorID(c)).
				Msg("request")
			return nil
		},
	})
}
