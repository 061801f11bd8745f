package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attrValue(stub tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range stub.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRecordHTTPError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordHTTPError(span, errors.New("qdrant返回500"), 500)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	stub := tracetest.SpanStubFromReadOnlySpan(spans[0])

	assert.Equal(t, codes.Error, stub.Status.Code)
	v, ok := attrValue(stub, "error.type")
	require.True(t, ok)
	assert.Equal(t, string(ErrorTypeHTTP), v.AsString())
	v, ok = attrValue(stub, "http.status_code")
	require.True(t, ok)
	assert.EqualValues(t, 500, v.AsInt64())
	v, ok = attrValue(stub, "error.category")
	require.True(t, ok)
	assert.Equal(t, "server_error", v.AsString())
	require.Len(t, stub.Events, 1, "错误应作为span event记录")
}

func TestRecordHTTPErrorClientCategory(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordHTTPError(span, errors.New("not found"), 404)
	span.End()

	stub := tracetest.SpanStubFromReadOnlySpan(recorder.Ended()[0])
	v, ok := attrValue(stub, "error.category")
	require.True(t, ok)
	assert.Equal(t, "client_error", v.AsString())
}

func TestRecordErrorWithInfo(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := tp.Tracer("test").Start(context.Background(), "op")

	RecordErrorWithInfo(span, errors.New("写入失败"), ErrorTypeDB,
		attribute.String("db.sql.table", "screening_records"))
	span.End()

	stub := tracetest.SpanStubFromReadOnlySpan(recorder.Ended()[0])
	assert.Equal(t, codes.Error, stub.Status.Code)
	v, ok := attrValue(stub, "error.type")
	require.True(t, ok)
	assert.Equal(t, string(ErrorTypeDB), v.AsString())
	v, ok = attrValue(stub, "db.sql.table")
	require.True(t, ok)
	assert.Equal(t, "screening_records", v.AsString())
}

func TestRecordErrorNilSafe(t *testing.T) {
	// nil span和nil error都不panic
	assert.NotPanics(t, func() {
		RecordError(nil, errors.New("x"), ErrorTypeInternal)
		RecordHTTPError(nil, errors.New("x"), 500)
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		_, span := tp.Tracer("test").Start(context.Background(), "op")
		RecordError(span, nil, ErrorTypeInternal)
		span.End()
		assert.Empty(t, tracetest.SpanStubFromReadOnlySpan(recorder.Ended()[0]).Events)
	})
}
