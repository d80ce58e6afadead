package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/log"
)

// Shutdown flushes and stops a tracer provider
type Shutdown func(context.Context) error

// TracerName is the instrumentation scope used for engine spans
const TracerName = "github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/engine"

// NoopTracer returns a tracer that records nothing
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(TracerName)
}

// SetupTracing installs a global tracer provider exporting spans over
// OTLP/HTTP. The exporter reads the standard OTEL_EXPORTER_OTLP_* variables
func SetupTracing(
	ctx context.Context, service, version string,
) (trace.Tracer, Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, nil, err
	}

	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	slog.Info("Tracing enabled",
		slog.String("service", service))

	shutdown := func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			slog.Warn("Tracer shutdown failed",
				log.Error(err))
			return err
		}
		return nil
	}
	return tp.Tracer(TracerName), shutdown, nil
}
