// Package logsink writes visits to the process log. It is the default sink
// and needs no datastore.
package logsink

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/akave-ai/quoteedge/internal/infrastructure/sinks"
	"github.com/akave-ai/quoteedge/internal/model"
)

func init() {
	sinks.GlobalRegistry.Register(&Factory{})
}

// Factory creates log sinks. Registers as "log".
type Factory struct{}

func (f *Factory) Name() string {
	return "log"
}

func (f *Factory) ConfigSpec() sinks.SinkTypeInfo {
	return sinks.SinkTypeInfo{
		Type:        "log",
		Description: "Writes each visit as a structured log line. No external datastore.",
		Fields:      []sinks.ConfigField{},
	}
}

func (f *Factory) Create(_ context.Context, _ sinks.Config, deps sinks.Deps) (sinks.VisitSink, error) {
	return New(deps.Logger), nil
}

// Sink logs visits at info level.
type Sink struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Sink {
	return &Sink{logger: logger.With().Str("component", "visits").Logger()}
}

func (s *Sink) Insert(_ context.Context, v model.Visit) error {
	ev := s.logger.Info().
		Str("method", v.Method).
		Str("path", v.Path).
		Int("status", v.Status).
		Int64("duration_ms", v.DurationMS).
		Str("visitor_id", v.VisitorID)
	if v.IPHash != nil {
		ev = ev.Str("ip_hash", *v.IPHash)
	}
	if v.Referrer != nil {
		ev = ev.Str("referrer", *v.Referrer)
	}
	if v.UserAgent != nil {
		ev = ev.Str("user_agent", *v.UserAgent)
	}
	ev.Msg("visit")
	return nil
}

func (s *Sink) Close() error { return nil }
