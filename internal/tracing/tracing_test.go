package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(false, ExporterStdout, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	_, span := StartSpan(context.Background(), "noop")
	if span.IsRecording() {
		t.Error("noop span should not record")
	}
	End(span, "", "")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSetupUnknownExporter(t *testing.T) {
	if _, err := Setup(true, "jaeger", nil); err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestStdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(true, ExporterStdout, &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() { _, _ = Setup(false, "", nil) })

	_, span := StartSpan(context.Background(), "gateway.read_file", attribute.String("fsgate.path", "/a"))
	End(span, "NotFound", "no such file")

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "gateway.read_file") {
		t.Errorf("span name missing from output: %q", out)
	}
	if !strings.Contains(out, "NotFound") {
		t.Errorf("error kind missing from output")
	}
}
