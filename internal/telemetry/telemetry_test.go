package telemetry

import (
	"context"
	"errors"
	"testing"

	"ctchen222/tictactoe-engine/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

func TestInit_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := Init(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestInit_Stdout(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:       true,
		CollectorAddr: "stdout",
		ServiceName:   "tictactoe-test",
	})
	require.NoError(t, err)
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_OTLPIsLazy(t *testing.T) {
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})

	// grpc.NewClient does not dial until the first export.
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:       true,
		CollectorAddr: "127.0.0.1:1",
		ServiceName:   "tictactoe-test",
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Flushing against an unreachable collector may fail; it must not hang.
	_ = shutdown(ctx)
}

type recordingExporter struct {
	shutdowns int
}

func (e *recordingExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }

func (e *recordingExporter) Shutdown(context.Context) error {
	e.shutdowns++
	return nil
}

func TestInit_OTLPCleansUpOnExporterFailure(t *testing.T) {
	traces := &recordingExporter{}
	boom := errors.New("metric exporter unavailable")

	origTrace, origMetric := newTraceExporter, newMetricExporter
	t.Cleanup(func() { newTraceExporter, newMetricExporter = origTrace, origMetric })
	newTraceExporter = func(context.Context, *grpc.ClientConn) (sdktrace.SpanExporter, error) {
		return traces, nil
	}
	newMetricExporter = func(context.Context, *grpc.ClientConn) (metric.Exporter, error) {
		return nil, boom
	}

	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:       true,
		CollectorAddr: "127.0.0.1:1",
		ServiceName:   "tictactoe-test",
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, shutdown)
	assert.Equal(t, 1, traces.shutdowns)
	assert.Equal(t, before, otel.GetTracerProvider())
}

func TestClosers_ShutdownNewestFirst(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	c := closers{
		func(context.Context) error { order = append(order, 1); return nil },
		func(context.Context) error { order = append(order, 2); return boom },
		func(context.Context) error { order = append(order, 3); return nil },
	}

	err := c.shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)
}
