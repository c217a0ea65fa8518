package otelspan

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the process-wide TracerProvider. A nil *Telemetry and a
// disabled one both behave identically: Tracer falls back to the global
// no-op provider, so callers never need to check IsEnabled before
// instrumenting a call.
type Telemetry struct {
	provider *trace.TracerProvider
}

// New initializes tracing per cfg. When cfg.Enabled is false it returns a
// Telemetry whose Tracer calls are no-ops, without dialing anything.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}
	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	return &Telemetry{provider: tp}, nil
}

// Tracer returns a named tracer, e.g. for
// "github.com/rawwerks/cass-go/internal/hybrid".
func (t *Telemetry) Tracer(name string) oteltrace.Tracer {
	if t == nil || t.provider == nil {
		return otel.GetTracerProvider().Tracer(name)
	}
	return t.provider.Tracer(name)
}

// Shutdown flushes and stops the tracer provider. Safe to call on a nil or
// disabled Telemetry.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("otelspan: shutdown: %w", err)
	}
	return nil
}
