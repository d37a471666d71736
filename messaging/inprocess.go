package messaging

import (
	"context"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
)

// InProcessTransport delivers messages to a handler in the same process,
// running the handler side pipeline with the in-process receiver
// descriptor.
type InProcessTransport[M, R any] struct {
	handler  conduit.Handler[M, R]
	pipeline *pipeline.Pipeline[M, R]
}

// NewInProcessTransport binds handler and its pipeline. A nil pipeline means
// no handler side middleware.
func NewInProcessTransport[M, R any](handler conduit.Handler[M, R], p *pipeline.Pipeline[M, R]) *InProcessTransport[M, R] {
	if p == nil {
		p = pipeline.New[M, R]()
	}
	return &InProcessTransport[M, R]{handler: handler, pipeline: p}
}

func (t *InProcessTransport[M, R]) TransportType() conduit.TransportType {
	return conduit.InProcessSender()
}

// Pipeline exposes the handler side pipeline.
func (t *InProcessTransport[M, R]) Pipeline() *pipeline.Pipeline[M, R] {
	return t.pipeline
}

func (t *InProcessTransport[M, R]) Send(ctx context.Context, msg M) (R, error) {
	return t.pipeline.Execute(ctx, msg, conduit.InProcessReceiver(), t.handler)
}

// NewInProcessClient wires a client straight to handler. When reg is not
// nil the handler pipeline comes from pipeline.Build and the client pipeline
// from pipeline.BuildClient.
func NewInProcessClient[M, R any](handler conduit.Handler[M, R], reg *pipeline.Registry, opts ...Option[M, R]) *Client[M, R] {
	transport := NewInProcessTransport(handler, pipeline.Build[M, R](reg))
	opts = append([]Option[M, R]{WithPipeline(pipeline.BuildClient[M, R](reg))}, opts...)
	return NewClient[M, R](transport, opts...)
}
