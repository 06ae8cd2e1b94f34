// Package pgsink stores visits in the Postgres visits table.
package pgsink

import (
	"context"
	"fmt"

	"github.com/akave-ai/quoteedge/internal/database"
	"github.com/akave-ai/quoteedge/internal/infrastructure/sinks"
	"github.com/akave-ai/quoteedge/internal/repository"
)

func init() {
	sinks.GlobalRegistry.Register(&Factory{})
}

// Factory creates Postgres sinks. Registers as "postgres".
type Factory struct{}

func (f *Factory) Name() string {
	return "postgres"
}

func (f *Factory) ConfigSpec() sinks.SinkTypeInfo {
	return sinks.SinkTypeInfo{
		Type:        "postgres",
		Description: "Inserts visits into the visits table through a pgx pool.",
		Fields: []sinks.ConfigField{
			{Name: "dsn", Type: "string", Required: true, Description: "Postgres connection string", Example: "postgres://quoteedge@localhost:5432/quoteedge"},
			{Name: "max_conns", Type: "number", Required: false, Description: "Pool size", Example: "4"},
			{Name: "migrate", Type: "bool", Required: false, Description: "Apply embedded migrations on startup", Example: "true"},
		},
	}
}

func (f *Factory) ValidateConfig(cfg sinks.Config) error {
	if cfg.String("dsn") == "" {
		return fmt.Errorf("missing 'dsn' for postgres sink")
	}
	return nil
}

func (f *Factory) Create(ctx context.Context, cfg sinks.Config, deps sinks.Deps) (sinks.VisitSink, error) {
	if err := f.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	dsn := cfg.String("dsn")
	if cfg.Bool("migrate") {
		if err := database.RunMigrations(ctx, dsn, deps.Logger); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	pool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:      dsn,
		MaxConns: int32(cfg.Int("max_conns", 4)),
		NewRelic: deps.NewRelic,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	return repository.NewVisitRepository(pool), nil
}
