package otelspan

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDisabledTelemetryTracerIsNoOp(t *testing.T) {
	ctx := context.Background()
	tel, err := New(ctx, Config{Enabled: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tracer := tel.Tracer("test")
	if tracer == nil {
		t.Fatalf("want a non-nil no-op tracer")
	}
	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("shutdown on disabled telemetry: %v", err)
	}
}

func TestNilTelemetryBehavesLikeDisabled(t *testing.T) {
	var tel *Telemetry
	if tel.Tracer("test") == nil {
		t.Fatalf("want a non-nil no-op tracer from a nil *Telemetry")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown on nil telemetry: %v", err)
	}
}

func TestStartRecordsErrorOnSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := tp.Tracer("test")

	_, end := Start(context.Background(), tracer, "op")
	boom := errors.New("boom")
	end(&boom)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("want 1 ended span, got %d", len(spans))
	}
	if got := spans[0].Status().Code; got != codes.Error {
		t.Errorf("want span status %v, got %v", codes.Error, got)
	}
}
