package otelspan

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Start begins a span named operation under tracer, tagging it with attrs.
// The returned End func records err (if any) on the span and closes it;
// callers defer it immediately: `ctx, end := otelspan.Start(ctx, tracer,
// "hybrid.search"); defer end(&err)`.
func Start(ctx context.Context, tracer oteltrace.Tracer, operation string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := tracer.Start(ctx, operation, oteltrace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}
