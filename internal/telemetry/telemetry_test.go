package telemetry

import (
	"context"
	"testing"
)

func TestEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	if Enabled() {
		t.Error("Expected tracing disabled without an endpoint")
	}

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://localhost:4318/v1/traces")
	if !Enabled() {
		t.Error("Expected tracing enabled with a traces endpoint")
	}
}

func TestTracerWithoutSetup(t *testing.T) {
	_, span := Tracer("test").Start(context.Background(), "noop")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Error("Expected a no-op span before Setup")
	}
}

func TestNarratorAttributes(t *testing.T) {
	attrs := Narrator{Provider: "gemini", Model: "gemini-2.5-flash", Online: true}.attributes()

	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"service.name":       "caravan-trail",
		"narrative.provider": "gemini",
		"narrative.model":    "gemini-2.5-flash",
		"narrative.online":   "true",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Expected %s=%q, got %q", k, v, got[k])
		}
	}
}
