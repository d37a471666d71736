package middleware

import (
	"context"
	"crypto/rand"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for conduit tracing.
const tracerName = "github.com/goliatone/go-conduit"

// TracingConfig customises the span of one pipeline.
type TracingConfig struct {
	// SpanName defaults to "conduit.<message type>".
	SpanName   string
	Attributes []attribute.KeyValue
}

// Tracing wraps the rest of the pipeline in an OpenTelemetry span. Without
// a parent span the new span is a root span; it takes the store trace id when
// the tracer provider uses NewIDGenerator.
type Tracing[M, R any] struct {
	tracer trace.Tracer
}

// NewTracing uses the global tracer provider.
func NewTracing[M, R any]() *Tracing[M, R] {
	return NewTracingWithTracer[M, R](otel.Tracer(tracerName))
}

func NewTracingWithTracer[M, R any](tracer trace.Tracer) *Tracing[M, R] {
	return &Tracing[M, R]{tracer: tracer}
}

func (t *Tracing[M, R]) Execute(ctx context.Context, call *pipeline.Call[M, R], cfg TracingConfig) (R, error) {
	messageType := conduit.GetMessageType(call.Message)
	name := cfg.SpanName
	if name == "" {
		name = "conduit." + messageType
	}

	attrs := append([]attribute.KeyValue{
		attribute.String("conduit.message.type", messageType),
		attribute.String("conduit.message.id", call.Store.MessageID()),
		attribute.String("conduit.transport.name", call.Transport.Name()),
		attribute.String("conduit.transport.role", call.Transport.Role().String()),
	}, cfg.Attributes...)

	opts := []trace.SpanStartOption{
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(spanKind(call.Transport)),
	}
	if !trace.SpanContextFromContext(ctx).IsValid() {
		if tid, err := trace.TraceIDFromHex(call.Store.TraceID()); err == nil {
			ctx = context.WithValue(ctx, rootTraceIDKey{}, tid)
		}
		opts = append(opts, trace.WithNewRoot())
	}

	ctx, span := t.tracer.Start(ctx, name, opts...)
	defer span.End()

	res, err := call.Next(ctx, call.Message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return res, err
}

func spanKind(t conduit.TransportType) trace.SpanKind {
	switch {
	case t.IsInProcess():
		return trace.SpanKindInternal
	case t.IsSender():
		return trace.SpanKindClient
	default:
		return trace.SpanKindServer
	}
}

type rootTraceIDKey struct{}

type idGenerator struct{}

// NewIDGenerator returns an sdktrace.IDGenerator that gives root spans
// started by Tracing the trace id of their store. Every other id is random.
// Install it with sdktrace.WithIDGenerator.
func NewIDGenerator() sdktrace.IDGenerator {
	return idGenerator{}
}

func (g idGenerator) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	tid, ok := ctx.Value(rootTraceIDKey{}).(trace.TraceID)
	for !ok || !tid.IsValid() {
		_, _ = rand.Read(tid[:])
		ok = true
	}
	return tid, g.NewSpanID(ctx, tid)
}

func (idGenerator) NewSpanID(context.Context, trace.TraceID) trace.SpanID {
	var sid trace.SpanID
	for !sid.IsValid() {
		_, _ = rand.Read(sid[:])
	}
	return sid
}
