package wire

import (
	"context"
	"crypto/rand"

	"github.com/goliatone/go-conduit/scope"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceParentField is the W3C Trace Context header.
const TraceParentField = "traceparent"

var traceContext = propagation.TraceContext{}

// InjectTraceParent writes a traceparent value to c. A span active in ctx is
// used as is; otherwise the value is derived from the store trace id with a
// fresh span id. Nothing is written when neither is a valid W3C trace id.
func InjectTraceParent(ctx context.Context, s *scope.Store, c Carrier) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		if s == nil {
			return
		}
		sc, ok := SpanContextFor(s.TraceID())
		if !ok {
			return
		}
		ctx = trace.ContextWithSpanContext(ctx, sc)
	}
	traceContext.Inject(ctx, c)
}

// ExtractTraceID returns the trace id of the traceparent value held by c.
func ExtractTraceID(c Carrier) (string, bool) {
	sc := trace.SpanContextFromContext(traceContext.Extract(context.Background(), c))
	if !sc.TraceID().IsValid() {
		return "", false
	}
	return sc.TraceID().String(), true
}

// SpanContextFor builds a sampled remote span context for a hex trace id
// with a random span id.
func SpanContextFor(traceID string) (trace.SpanContext, bool) {
	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = rand.Read(sid[:])
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}
