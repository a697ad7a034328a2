package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Builder creates a Publisher from a validated config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders. Register during setup only.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// DefaultRegistry knows every sink shipped with the scraper.
func DefaultRegistry() *Registry {
	return NewRegistry().
		Register(TypeHTTP, newHTTPPublisher).
		Register(TypeSQS, newSQSPublisher).
		Register(TypeSNS, newSNSPublisher).
		Register(TypePubSub, newPubSubPublisher)
}

// Register associates b with a publisher type and returns r for chaining.
func (r *Registry) Register(typ string, b Builder) *Registry {
	if typ = strings.ToLower(strings.TrimSpace(typ)); typ != "" && b != nil {
		r.builders[typ] = b
	}
	return r
}

// Build returns the publisher for cfg.
func (r *Registry) Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}
	b := r.builders[strings.ToLower(cfg.Type)]
	if b == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return b(ctx, cfg, ensureLogger(log))
}

// BuildAll instantiates publishers for cfgs. On failure the publishers built
// so far are closed.
func BuildAll(ctx context.Context, reg *Registry, cfgs []PublisherConfig, log Logger) ([]Publisher, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	pubs := make([]Publisher, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("build publisher %q: %w", cfg.ID, err), NewFanout(pubs).Close())
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// queuePublisher adapts a message-queue sender to Publisher.
type queuePublisher struct {
	id     string
	typ    string
	sender sender
	close  func() error
}

var _ io.Closer = (*queuePublisher)(nil)

func (q *queuePublisher) ID() string   { return q.id }
func (q *queuePublisher) Type() string { return q.typ }

func (q *queuePublisher) Publish(ctx context.Context, evt Event) error {
	return q.sender.Send(ctx, evt)
}

// Close releases the sender's client, when it holds one.
func (q *queuePublisher) Close() error {
	if q.close == nil {
		return nil
	}
	return q.close()
}
