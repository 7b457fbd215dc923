// Package telemetry traces turns and narrative requests over OTLP/HTTP.
// Tracing stays on the global no-op provider unless an endpoint is set.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "caravan-trail/"

// Enabled reports whether an OTLP endpoint is configured.
func Enabled() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" ||
		os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

// Narrator describes the generator backend a run is played against. It is
// attached to every span as resource attributes.
type Narrator struct {
	Provider string
	Model    string
	Online   bool
}

func (n Narrator) attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", "caravan-trail"),
		attribute.String("narrative.provider", n.Provider),
		attribute.String("narrative.model", n.Model),
		attribute.Bool("narrative.online", n.Online),
	}
}

// Setup installs a global tracer provider exporting to the endpoint named by
// the standard OTEL_* variables and returns its shutdown func.
func Setup(ctx context.Context, n Narrator) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithProcessRuntimeVersion(),
		resource.WithAttributes(n.attributes()...),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}

// Tracer returns the tracer for one component, e.g. "engine".
func Tracer(component string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentation + component)
}
