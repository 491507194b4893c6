package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/minipack/internal/compiler"
	"github.com/roach88/minipack/internal/testutil"
)

func newRecordingTracing() (*Tracing, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewTracing(nil, tp), sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingRecordsRunSpan(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	tr, sr := newRecordingTracing()

	_, res, err := build(t, configFor(root), tr)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, RunSpanName, span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	runID, ok := attrValue(span.Attributes(), "run.id")
	require.True(t, ok)
	assert.Equal(t, "run-1", runID.AsString())
	modules, ok := attrValue(span.Attributes(), "build.modules")
	require.True(t, ok)
	assert.Equal(t, int64(2), modules.AsInt64())
	output, ok := attrValue(span.Attributes(), "build.output")
	require.True(t, ok)
	assert.Equal(t, res.Stats.Output, output.AsString())

	var events []string
	for _, ev := range span.Events() {
		events = append(events, ev.Name)
	}
	assert.Equal(t, []string{
		compiler.HookBeforeRun,
		compiler.HookRun,
		compiler.HookBeforeCompile,
		compiler.HookCompile,
		compiler.HookMake,
		"module",
		"module",
		compiler.HookEmit,
		compiler.HookDone,
	}, events)

	id, ok := attrValue(span.Events()[5].Attributes, "module.id")
	require.True(t, ok)
	assert.Equal(t, "./index.js", id.AsString())
}

func TestTracingRecordsFailure(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	tr, sr := newRecordingTracing()

	_, _, err := build(t, configFor(root), tr, failing())
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Status().Description, "boom")

	var sawException bool
	for _, ev := range spans[0].Events() {
		if ev.Name == "exception" {
			sawException = true
		}
	}
	assert.True(t, sawException)
}

func TestTracingOneSpanPerRun(t *testing.T) {
	root := testutil.WriteTree(t, simpleProject)
	tr, sr := newRecordingTracing()

	for range 2 {
		_, _, err := build(t, configFor(root), tr)
		require.NoError(t, err)
	}

	assert.Len(t, sr.Ended(), 2)
	for _, span := range sr.Ended() {
		assert.False(t, span.Parent().IsValid(), "run spans are roots")
	}
}
