package publishers

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/soupchef/internal/logger"
)

// Builder creates a Publisher from a sink declaration.
type Builder func(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error)

// Registry maps sink types to builders.
type Registry map[string]Builder

// DefaultRegistry knows every built-in sink type.
func DefaultRegistry() Registry {
	return Registry{
		TypeHTTP:   newHTTPPublisher,
		TypeSQS:    newSQSPublisher,
		TypeSNS:    newSNSPublisher,
		TypePubSub: newPubSubPublisher,
	}
}

// Build creates the publisher for cfg.
func (r Registry) Build(ctx context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	builder, ok := r[strings.ToLower(strings.TrimSpace(cfg.Type))]
	if !ok || builder == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	pub, err := builder(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("build %s publisher %q: %w", cfg.Type, cfg.ID, err)
	}
	return pub, nil
}

// BuildAll creates one publisher per config. Publishers built before a
// failure are closed again.
func BuildAll(ctx context.Context, reg Registry, cfgs []PublisherConfig, log logger.Logger) ([]Publisher, error) {
	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			_ = NewFanout(pubs).Close()
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// Open builds a Fanout over the enabled sinks declared in path. An empty
// path yields a Fanout without publishers.
func Open(ctx context.Context, path string, log logger.Logger) (*Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return NewFanout(nil), nil
	}
	cfgs, err := LoadSinks(path)
	if err != nil {
		return nil, err
	}
	pubs, err := BuildAll(ctx, DefaultRegistry(), EnabledSinks(cfgs), log)
	if err != nil {
		return nil, err
	}
	logger.Ensure(log).InfoObj("recipe event sinks ready", "publishers", len(pubs))
	return NewFanout(pubs), nil
}
