// Package tracing starts spans on the globally registered tracer provider.
// Until a provider is installed the global no-op provider makes every call
// inert, so packages and tests can use it unconditionally.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/emergent-company/jobmanager"

// Start opens a span named name under the span in ctx. End it with
// span.End().
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
}
