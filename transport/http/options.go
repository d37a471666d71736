// Package httptransport carries messages and their context over HTTP. The
// Sender is a messaging.TransportClient, the Receiver an http.Handler.
package httptransport

import (
	"net/http"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/ids"
	"github.com/goliatone/go-conduit/wire"
)

// TransportName is the transport name of HTTP senders and receivers.
const TransportName = "http"

type options struct {
	client     *http.Client
	propagator *wire.Propagator
	generator  ids.Generator
	logger     conduit.Logger
}

// Option configures a Sender or a Receiver.
type Option func(*options)

// WithHTTPClient sets the client used by a Sender.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

func WithPropagator(p *wire.Propagator) Option {
	return func(o *options) {
		if p != nil {
			o.propagator = p
		}
	}
}

// WithIDGenerator sets the message id generator of stores a Receiver creates.
func WithIDGenerator(gen ids.Generator) Option {
	return func(o *options) {
		if gen != nil {
			o.generator = gen
		}
	}
}

func WithLogger(logger conduit.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		client:     http.DefaultClient,
		propagator: wire.NewPropagator(),
		generator:  ids.Default(),
		logger:     conduit.NopLogger{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// errorBody is the payload of non 2xx responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
