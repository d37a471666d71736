// Package messaging sends a message through a client side pipeline to a
// transport, which delivers it to a handler.
package messaging

import (
	"context"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/ids"
	"github.com/goliatone/go-conduit/pipeline"
	"github.com/goliatone/go-conduit/scope"
)

// TransportClient delivers a message to its handler, wherever it lives.
type TransportClient[M, R any] interface {
	// TransportType describes the sending side of the transport.
	TransportType() conduit.TransportType
	Send(ctx context.Context, msg M) (R, error)
}

// Client runs the client pipeline of M and hands the message to a
// TransportClient.
type Client[M, R any] struct {
	transport TransportClient[M, R]
	pipeline  *pipeline.Pipeline[M, R]
	generator ids.Generator
	logger    conduit.Logger
}

// Option configures a Client.
type Option[M, R any] func(*Client[M, R])

// WithPipeline sets the client side pipeline.
func WithPipeline[M, R any](p *pipeline.Pipeline[M, R]) Option[M, R] {
	return func(c *Client[M, R]) {
		if p != nil {
			c.pipeline = p
		}
	}
}

func WithIDGenerator[M, R any](gen ids.Generator) Option[M, R] {
	return func(c *Client[M, R]) {
		if gen != nil {
			c.generator = gen
		}
	}
}

func WithLogger[M, R any](logger conduit.Logger) Option[M, R] {
	return func(c *Client[M, R]) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client sending through transport.
func NewClient[M, R any](transport TransportClient[M, R], opts ...Option[M, R]) *Client[M, R] {
	c := &Client[M, R]{
		transport: transport,
		pipeline:  pipeline.New[M, R](),
		generator: ids.Default(),
		logger:    conduit.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pipeline exposes the client pipeline so callers can Use or Configure it.
func (c *Client[M, R]) Pipeline() *pipeline.Pipeline[M, R] {
	return c.pipeline
}

// Send validates msg and runs it through the client pipeline and transport.
//
// Each Send is one execution with its own message id. When a store is already
// active, the call runs on a fork of it carrying the new id; upstream and
// bidirectional entries written during the call are merged back when it
// returns.
func (c *Client[M, R]) Send(ctx context.Context, msg M) (R, error) {
	var zero R
	if err := conduit.ValidateMessage(msg); err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ctx, store, release := scope.Begin(ctx, scope.WithIDGenerator(c.generator))
	defer release()

	transport := c.transport.TransportType()
	logger := conduit.WithLoggerFields(c.logger.WithContext(ctx), map[string]any{
		"message_type": conduit.TypeOf[M](),
		"message_id":   store.MessageID(),
		"trace_id":     store.TraceID(),
		"transport":    transport.String(),
	})
	logger.Debug("sending message")

	res, err := c.pipeline.Execute(ctx, msg, transport, conduit.HandlerFunc[M, R](c.transport.Send))
	if err != nil {
		logger.Debug("message failed: %v", err)
	}
	return res, err
}
