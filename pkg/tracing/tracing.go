package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the tracer used by StartSpan. Until it is called spans are no-ops.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan opens a child span of whatever span ctx carries.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

func recording(ctx context.Context) (trace.SpanContext, bool) {
	if tracer == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanFromContext(ctx).SpanContext()
	return sc, sc.IsValid()
}

// GetTraceID returns the hex trace id of the span on ctx, or "".
func GetTraceID(ctx context.Context) string {
	sc, ok := recording(ctx)
	if !ok {
		return ""
	}
	return sc.TraceID().String()
}

// GetTraceParent returns the W3C traceparent header value for ctx, or "".
func GetTraceParent(ctx context.Context) string {
	return w3cHeader(ctx, "traceparent")
}

// GetTraceState returns the W3C tracestate header value for ctx, or "".
func GetTraceState(ctx context.Context) string {
	return w3cHeader(ctx, "tracestate")
}

func w3cHeader(ctx context.Context, key string) string {
	if _, ok := recording(ctx); !ok {
		return ""
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get(key)
}
