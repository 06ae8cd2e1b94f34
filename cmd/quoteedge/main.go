package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/config"
	"github.com/akave-ai/quoteedge/internal/infrastructure/sinks"
	"github.com/akave-ai/quoteedge/internal/infrastructure/sinks/logsink"
	"github.com/akave-ai/quoteedge/internal/logger"
	"github.com/akave-ai/quoteedge/internal/quote"
	"github.com/akave-ai/quoteedge/internal/server"
	"github.com/akave-ai/quoteedge/internal/telemetry"
	"github.com/akave-ai/quoteedge/internal/upstream"
	"github.com/akave-ai/quoteedge/internal/visit"

	_ "github.com/akave-ai/quoteedge/internal/infrastructure/sinks/pgsink"
	_ "github.com/akave-ai/quoteedge/internal/infrastructure/sinks/redissink"
	_ "github.com/akave-ai/quoteedge/internal/infrastructure/sinks/sqlitesink"
)

func main() {
	cfg := config.LoadApp()
	log := logger.New(cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer(cfg.Observability, log)
	if err != nil {
		log.Fatal().Err(err).Msg("tracer")
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			log.Error().Err(err).Msg("tracer shutdown")
		}
	}()

	nrApp, err := telemetry.NewRelicApp(cfg.Observability)
	if err != nil {
		log.Fatal().Err(err).Msg("new relic")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := server.Deps{
		Logger:   log,
		NewRelic: nrApp,
		Registry: reg,
	}

	if cfg.Visits.Enabled {
		sink := openSink(ctx, cfg, log, nrApp != nil)
		deps.Sink = sink
		deps.Visits = visit.NewQueue(
			sink,
			visit.NewIPHasher(cfg.Visits.IPHashSecret),
			visit.QueueConfig{
				Workers:      cfg.Visits.Workers,
				Size:         cfg.Visits.QueueSize,
				WriteTimeout: cfg.Visits.WriteTimeout,
			},
			log,
			visit.NewMetrics(reg),
		)
	}

	client := upstream.New(upstream.WithLogger(log), upstream.WithDefaultTimeout(cfg.Upstream.Timeout))
	deps.Quotes = quote.NewService(client, cfg.Upstream.QuoteURL, cfg.Upstream.Timeout, cfg.Upstream.Source)

	srv, err := server.New(cfg, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("server")
	}
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

// openSink builds the configured visit sink. A sink that cannot be opened
// falls back to the log sink so the service still starts.
func openSink(ctx context.Context, cfg *config.Config, log zerolog.Logger, newRelic bool) sinks.VisitSink {
	name := cfg.Visits.Sink
	sinkCfg := sinks.Config(cfg.Visits.SinkConfig())
	deps := sinks.Deps{Logger: log, NewRelic: newRelic}

	if err := sinks.GlobalRegistry.ValidateConfig(name, sinkCfg); err != nil {
		log.Error().Err(err).Str("sink", name).Strs("available", sinks.GlobalRegistry.ListRegistered()).Msg("invalid visit sink config, using log sink")
		return logsink.New(log)
	}
	sink, err := sinks.GlobalRegistry.Create(ctx, name, sinkCfg, deps)
	if err != nil {
		log.Error().Err(err).Str("sink", name).Msg("could not open visit sink, using log sink")
		return logsink.New(log)
	}
	log.Info().Str("sink", name).Msg("visit sink ready")
	return sink
}
