package traces

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T, ratio float64) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := newProvider(sdktrace.WithSpanProcessor(rec), resource.Empty(), ratio)

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestInit_NoEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_Attributes(t *testing.T) {
	rec := recordSpans(t, 1)

	_, span := StartSpan(context.Background(), "board.Control", Page("detection"), Panel("anomaly-threshold"), Action("set_threshold"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "board.Control", ended[0].Name())

	attrs := map[attribute.Key]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[kv.Key] = kv.Value.AsString()
	}
	assert.Equal(t, "detection", attrs["guardlens.page"])
	assert.Equal(t, "anomaly-threshold", attrs["guardlens.panel"])
	assert.Equal(t, "set_threshold", attrs["guardlens.action"])
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t, 1)

	_, span := StartSpan(context.Background(), "sessions.Save", SessionID("ses_1"))
	RecordError(span, errors.New("connection reset"))
	span.End()

	_, clean := StartSpan(context.Background(), "sessions.Get")
	RecordError(clean, nil)
	clean.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "connection reset", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
}

func TestSampleRatioZero_DropsRootSpans(t *testing.T) {
	rec := recordSpans(t, 0)

	_, span := StartSpan(context.Background(), "simulate.tick")
	span.End()

	assert.Empty(t, rec.Ended())
}

func TestWithSampleRatio_IgnoresOutOfRange(t *testing.T) {
	o := options{sampleRatio: 1}
	WithSampleRatio(2)(&o)
	assert.Equal(t, 1.0, o.sampleRatio)
	WithSampleRatio(0.1)(&o)
	assert.Equal(t, 0.1, o.sampleRatio)
}
