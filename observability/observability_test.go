package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTracingHandlerInjectsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.DebugContext(ctx, "replay", "segment", 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, ServiceName, record["service"])
	assert.Equal(t, float64(1), record["segment"])
}

func TestTracingHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggingConfig{Format: "json"}, &buf)
	require.NoError(t, err)
	logger.With("run", "x").WithGroup("g").InfoContext(context.Background(), "no span", "k", "v")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, hasTrace := record["trace_id"]
	assert.False(t, hasTrace)
	assert.Equal(t, "x", record["run"])
	assert.Equal(t, map[string]any{"k": "v"}, record["g"])
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggingConfig{Level: "warn"}, &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	_, err = NewLogger(LoggingConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
	_, err = NewLogger(LoggingConfig{Format: "xml"}, &buf)
	assert.Error(t, err)

	lvl, err := ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, lvl)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.SegmentDone("replay")
	m.SegmentDone("replay")
	m.RecordsExtracted("c", 16)
	m.Warning("zero_signal")
	m.ObservePhase("backward", time.Now())

	assert.Equal(t, 2., testutil.ToFloat64(m.Segments.WithLabelValues("replay")))
	assert.Equal(t, 16., testutil.ToFloat64(m.SolveRecords.WithLabelValues("c")))
	assert.Equal(t, 1., testutil.ToFloat64(m.Warnings.WithLabelValues("zero_signal")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PhaseDuration))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "duplicate registration")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SegmentDone("replay")
		m.RecordsExtracted("c", 1)
		m.Warning("stride_overrun")
		m.ObservePhase("extract", time.Now())
	})
}

func TestTracer(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := Tracer(tp).Start(context.Background(), "solve_adjoint")
	span.End()
	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, TracerName, spans[0].InstrumentationScope.Name)
	assert.NotNil(t, Tracer(nil))
}
