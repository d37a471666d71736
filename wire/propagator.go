package wire

import (
	"context"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/scope"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultContextField   = "conduit-context"
	DefaultMessageIDField = "conduit-message-id"
)

// Propagator moves a scope.Store across one transport hop. Senders call
// InjectRequest and ExtractResponse, receivers call ExtractRequest and
// InjectResponse.
type Propagator struct {
	contextField   string
	messageIDField string
	logger         conduit.Logger
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithContextField overrides the name of the context data field.
func WithContextField(name string) Option {
	return func(p *Propagator) {
		if name != "" {
			p.contextField = name
		}
	}
}

// WithMessageIDField overrides the name of the message id field.
func WithMessageIDField(name string) Option {
	return func(p *Propagator) {
		if name != "" {
			p.messageIDField = name
		}
	}
}

func WithLogger(logger conduit.Logger) Option {
	return func(p *Propagator) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPropagator(opts ...Option) *Propagator {
	p := &Propagator{
		contextField:   DefaultContextField,
		messageIDField: DefaultMessageIDField,
		logger:         conduit.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Propagator) ContextField() string { return p.contextField }

func (p *Propagator) MessageIDField() string { return p.messageIDField }

// InjectRequest writes the downstream context data, the message id and a
// traceparent to an outgoing request.
func (p *Propagator) InjectRequest(ctx context.Context, s *scope.Store, c Carrier) {
	if data := Encode(s, Downstream); data != "" {
		c.Add(p.contextField, data)
	}
	if id := s.MessageID(); id != "" {
		c.Set(p.messageIDField, id)
	}
	InjectTraceParent(ctx, s, c)
}

// ExtractRequest applies an incoming request to s. The trace id comes from
// the span active in ctx when there is one, else from the wire traceparent,
// else the store keeps the id it was created with.
func (p *Propagator) ExtractRequest(ctx context.Context, s *scope.Store, c Carrier) error {
	if err := Decode(s, Downstream, c.Values(p.contextField)...); err != nil {
		p.logger.WithContext(ctx).Warn("rejecting request context field %q: %v", p.contextField, err)
		return err
	}

	if id := c.Get(p.messageIDField); id != "" {
		s.SetMessageID(id)
	}

	if sc := trace.SpanContextFromContext(ctx); sc.TraceID().IsValid() {
		s.SetTraceID(sc.TraceID().String())
	} else if id, ok := ExtractTraceID(c); ok {
		s.SetTraceID(id)
	}
	return nil
}

// InjectResponse writes the upstream context data to an outgoing response.
func (p *Propagator) InjectResponse(s *scope.Store, c Carrier) {
	if data := Encode(s, Upstream); data != "" {
		c.Add(p.contextField, data)
	}
}

// ExtractResponse applies the upstream context data of a response to s.
func (p *Propagator) ExtractResponse(ctx context.Context, s *scope.Store, c Carrier) error {
	if err := Decode(s, Upstream, c.Values(p.contextField)...); err != nil {
		p.logger.WithContext(ctx).Warn("rejecting response context field %q: %v", p.contextField, err)
		return err
	}
	return nil
}

// Ingress registers a store for an incoming request on ctx and applies c to
// it. When a store is already active it is borrowed. On error nothing is
// registered and the returned release is a no-op.
func (p *Propagator) Ingress(ctx context.Context, c Carrier, opts ...scope.Option) (context.Context, *scope.Store, scope.Release, error) {
	if err := DecodeStrict(c.Values(p.contextField)...); err != nil {
		p.logger.WithContext(ctx).Warn("rejecting request context field %q: %v", p.contextField, err)
		return ctx, nil, func() {}, err
	}

	runCtx, s, release := scope.GetOrCreate(ctx, opts...)
	if err := p.ExtractRequest(runCtx, s, c); err != nil {
		release()
		return ctx, nil, func() {}, err
	}
	return runCtx, s, release, nil
}
