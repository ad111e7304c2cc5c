// Package tracing installs the OpenTelemetry tracer provider and the echo
// middleware. Without OTEL_EXPORTER_OTLP_ENDPOINT a no-op provider is used.
package tracing

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	"github.com/emergent-company/jobmanager/internal/config"
	"github.com/emergent-company/jobmanager/internal/version"
	"github.com/emergent-company/jobmanager/pkg/logger"
)

var Module = fx.Module("tracing",
	fx.Provide(NewTracerProvider),
	fx.Invoke(RegisterTracingLifecycle),
)

// EchoModule adds request spans to the HTTP server
var EchoModule = fx.Module("tracing.echo",
	fx.Invoke(RegisterEchoMiddleware),
)

type providerResult struct {
	fx.Out

	// nil when tracing is disabled
	SDKProvider *sdktrace.TracerProvider `name:"otelSDKProvider" optional:"true"`
}

func NewTracerProvider(cfg *config.Config, log *slog.Logger) (providerResult, error) {
	oc := cfg.Otel
	log = log.With(logger.Scope("tracing"))

	if !oc.Enabled() {
		log.Debug("tracing disabled")
		otel.SetTracerProvider(noop.NewTracerProvider())
		return providerResult{}, nil
	}

	exp, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpointURL(oc.ExporterEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return providerResult{}, err
	}

	res, err := resource.New(context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(oc.ServiceName),
			semconv.ServiceVersion(version.Version),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		log.Warn("resource detection failed", logger.Error(err))
		res = resource.Empty()
	}

	sampler := sdktrace.AlwaysSample()
	if oc.SamplingRate < 1.0 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(oc.SamplingRate))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	log.Info("tracing enabled",
		slog.String("endpoint", oc.ExporterEndpoint),
		slog.Float64("sampling_rate", oc.SamplingRate),
	)
	return providerResult{SDKProvider: tp}, nil
}

type providerParams struct {
	fx.In

	SDKProvider *sdktrace.TracerProvider `name:"otelSDKProvider" optional:"true"`
}

// RegisterTracingLifecycle flushes pending spans on shutdown
func RegisterTracingLifecycle(lc fx.Lifecycle, p providerParams) {
	if p.SDKProvider == nil {
		return
	}
	lc.Append(fx.StopHook(p.SDKProvider.Shutdown))
}

func RegisterEchoMiddleware(e *echo.Echo, cfg *config.Config) {
	if !cfg.Otel.Enabled() {
		return
	}
	e.Use(otelecho.Middleware(cfg.Otel.ServiceName,
		otelecho.WithSkipper(skipTracing),
	))
}

func skipTracing(c echo.Context) bool {
	switch c.Request().URL.Path {
	case "/health", "/healthz", "/ready", "/metrics":
		return true
	}
	return false
}
