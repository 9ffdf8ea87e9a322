package telemetry

import (
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	testSetup   sync.Once
	testSpans   *tracetest.InMemoryExporter
	testMetrics *metric.ManualReader
)

type TestTelemetry struct {
	Spans   *tracetest.InMemoryExporter
	Metrics *metric.ManualReader
}

// sets up in-memory telemetry for tests, the providers are installed
// globally once per process since instruments bind to the first
// provider they see
func SetupForTesting(t testing.TB, serviceName string) TestTelemetry {
	testSetup.Do(func() {
		InitSlog(testing.Verbose())

		r, err := newResource(serviceName)
		if err != nil {
			t.Fatal(err)
		}

		testSpans = tracetest.NewInMemoryExporter()
		otel.SetTracerProvider(trace.NewTracerProvider(
			trace.WithSyncer(testSpans),
			trace.WithResource(r),
		))

		testMetrics = metric.NewManualReader()
		otel.SetMeterProvider(metric.NewMeterProvider(
			metric.WithReader(testMetrics),
			metric.WithResource(r),
		))
	})
	return TestTelemetry{
		Spans:   testSpans,
		Metrics: testMetrics,
	}
}
