package sinks

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered sink factories. Sink packages register their
// factory on GlobalRegistry in init().
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// GlobalRegistry is the registry main selects the configured sink from.
var GlobalRegistry = NewRegistry()

// NewRegistry returns a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for a sink type.
func (r *Registry) Register(factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.Name()] = factory
}

// Create builds a VisitSink for the given type and config.
func (r *Registry) Create(ctx context.Context, name string, cfg Config, deps Deps) (VisitSink, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown visit sink: %s", name)
	}
	return factory.Create(ctx, cfg, deps)
}

// ValidateConfig checks that name is registered and runs the factory's
// optional ValidateConfig.
func (r *Registry) ValidateConfig(name string, cfg Config) error {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown visit sink: %s (registered: %v)", name, r.ListRegistered())
	}
	if v, ok := factory.(interface{ ValidateConfig(Config) error }); ok {
		return v.ValidateConfig(cfg)
	}
	return nil
}

// ListRegistered returns all registered sink type names, sorted.
func (r *Registry) ListRegistered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTypeInfo returns the config spec for the given sink type. ok is false if the type is not registered.
func (r *Registry) GetTypeInfo(name string) (info SinkTypeInfo, ok bool) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return SinkTypeInfo{}, false
	}
	return factory.ConfigSpec(), true
}
