// Package redissink appends visits to a Redis stream.
package redissink

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/akave-ai/quoteedge/internal/infrastructure/sinks"
	"github.com/akave-ai/quoteedge/internal/repository"
)

func init() {
	sinks.GlobalRegistry.Register(&Factory{})
}

// Factory creates Redis stream sinks. Registers as "redis".
type Factory struct{}

func (f *Factory) Name() string {
	return "redis"
}

func (f *Factory) ConfigSpec() sinks.SinkTypeInfo {
	return sinks.SinkTypeInfo{
		Type:        "redis",
		Description: "XADDs each visit to a Redis stream for downstream consumers.",
		Fields: []sinks.ConfigField{
			{Name: "addr", Type: "string", Required: true, Description: "host:port of the Redis server", Example: "localhost:6379"},
			{Name: "password", Type: "string", Required: false, Description: "AUTH password"},
			{Name: "db", Type: "number", Required: false, Description: "Database index", Example: "0"},
			{Name: "stream", Type: "string", Required: false, Description: "Stream key", Example: "visits"},
		},
	}
}

func (f *Factory) ValidateConfig(cfg sinks.Config) error {
	if cfg.String("addr") == "" {
		return fmt.Errorf("missing 'addr' for redis sink")
	}
	return nil
}

func (f *Factory) Create(ctx context.Context, cfg sinks.Config, _ sinks.Deps) (sinks.VisitSink, error) {
	if err := f.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	stream := cfg.String("stream")
	if stream == "" {
		stream = "visits"
	}
	return repository.NewVisitStream(ctx, &redis.Options{
		Addr:     cfg.String("addr"),
		Password: cfg.String("password"),
		DB:       cfg.Int("db", 0),
	}, stream)
}
