// Package watermilltransport carries events and their context across a
// Watermill pub/sub. Context travels in the message metadata.
package watermilltransport

import (
	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/ids"
	"github.com/goliatone/go-conduit/wire"
)

const (
	// TransportName is the transport name of watermill publishers and receivers.
	TransportName = "watermill"
	// EventTypeField is the metadata field holding the event type.
	EventTypeField = "conduit-event-type"
)

type options struct {
	propagator *wire.Propagator
	generator  ids.Generator
	logger     conduit.Logger
	topic      func(eventType string) string
}

// Option configures a Publisher or a Receiver.
type Option func(*options)

func WithPropagator(p *wire.Propagator) Option {
	return func(o *options) {
		if p != nil {
			o.propagator = p
		}
	}
}

// WithIDGenerator sets the generator of watermill message UUIDs and of the
// message id of stores a Receiver creates.
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

// WithTopic maps an event type to its topic. Topics default to the event type.
func WithTopic(fn func(eventType string) string) Option {
	return func(o *options) {
		if fn != nil {
			o.topic = fn
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		propagator: wire.NewPropagator(),
		generator:  ids.Default(),
		logger:     conduit.NopLogger{},
		topic:      func(eventType string) string { return eventType },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
