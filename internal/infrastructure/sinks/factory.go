package sinks

import (
	"context"

	"github.com/rs/zerolog"
)

// Deps are process-wide collaborators a sink may need.
type Deps struct {
	Logger zerolog.Logger
	// NewRelic reports whether datastore calls should be traced by New Relic.
	NewRelic bool
}

// Factory creates a VisitSink from config.
// Each sink type (postgres, sqlite, redis, log) implements and registers a Factory.
// ConfigSpec declares which configuration fields this sink type needs.
type Factory interface {
	Name() string
	ConfigSpec() SinkTypeInfo
	Create(ctx context.Context, cfg Config, deps Deps) (VisitSink, error)
}
