// Package sqlitesink stores visits in a local SQLite database.
package sqlitesink

import (
	"context"
	"fmt"

	"github.com/akave-ai/quoteedge/internal/infrastructure/sinks"
	"github.com/akave-ai/quoteedge/internal/repository"
)

func init() {
	sinks.GlobalRegistry.Register(&Factory{})
}

// Factory creates SQLite sinks. Registers as "sqlite".
type Factory struct{}

func (f *Factory) Name() string {
	return "sqlite"
}

func (f *Factory) ConfigSpec() sinks.SinkTypeInfo {
	return sinks.SinkTypeInfo{
		Type:        "sqlite",
		Description: "Inserts visits into a visits table in a SQLite file. Suited to development and single-node setups.",
		Fields: []sinks.ConfigField{
			{Name: "path", Type: "string", Required: true, Description: "Database file path, or :memory:", Example: "visits.db"},
		},
	}
}

func (f *Factory) ValidateConfig(cfg sinks.Config) error {
	if cfg.String("path") == "" {
		return fmt.Errorf("missing 'path' for sqlite sink")
	}
	return nil
}

func (f *Factory) Create(ctx context.Context, cfg sinks.Config, _ sinks.Deps) (sinks.VisitSink, error) {
	if err := f.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return repository.OpenSQLiteVisitRepository(ctx, cfg.String("path"))
}
