package builder

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// setupTracing installs a process-wide SDK TracerProvider so the spans
// memory's episodic store already opens (memory/episodic.go's
// otel.Tracer("forgekeeper/memory")) are real, sampled spans rather than
// the no-op default. No exporter is registered here. A non-nil
// *sdktrace.TracerProvider argument is returned as is; builder.Build calls
// this with nil, so every Build installs a fresh provider as the process's
// global TracerProvider, replacing any provider set before it.
func setupTracing(reg trace.TracerProvider) *sdktrace.TracerProvider {
	if reg != nil {
		// caller already installed a provider (e.g. with an exporter
		// wired in); do not override it.
		if tp, ok := reg.(*sdktrace.TracerProvider); ok {
			return tp
		}
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return tp
}

// shutdownTracing flushes and releases tp's resources.
func shutdownTracing(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
