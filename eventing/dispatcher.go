// Package eventing publishes events to every observer subscribed to their
// type, through a publisher pipeline and one pipeline per observer.
package eventing

import (
	"context"
	"sync"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/broadcast"
	"github.com/goliatone/go-conduit/ids"
	"github.com/goliatone/go-conduit/pipeline"
	"github.com/goliatone/go-conduit/scope"
)

// Dispatcher holds observers and publisher pipelines keyed by event type.
type Dispatcher struct {
	mu         sync.RWMutex
	observers  map[string][]any
	publishers map[string]any
	registry   *pipeline.Registry
	selector   *broadcast.Selector
	generator  ids.Generator
	logger     conduit.Logger
}

// Option defines the functional option signature.
type Option func(*Dispatcher)

// WithSelector sets the strategy selector. The default runs observers
// sequentially and stops at the first failure.
func WithSelector(selector *broadcast.Selector) Option {
	return func(d *Dispatcher) {
		if selector != nil {
			d.selector = selector
		}
	}
}

// WithStrategy sets the default strategy of the dispatcher's selector.
func WithStrategy(strategy broadcast.Strategy) Option {
	return func(d *Dispatcher) {
		d.selector.SetDefault(strategy)
	}
}

// WithRegistry makes observer pipelines start from pipeline.Build and
// publisher pipelines from pipeline.BuildClient for the event type.
func WithRegistry(reg *pipeline.Registry) Option {
	return func(d *Dispatcher) {
		d.registry = reg
	}
}

func WithIDGenerator(gen ids.Generator) Option {
	return func(d *Dispatcher) {
		if gen != nil {
			d.generator = gen
		}
	}
}

func WithLogger(logger conduit.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher applies the given options to a new instance of the dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		observers:  make(map[string][]any),
		publishers: make(map[string]any),
		selector:   broadcast.NewSelector(nil),
		generator:  ids.Default(),
		logger:     conduit.NopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Selector exposes the strategy selector for per event type overrides.
func (d *Dispatcher) Selector() *broadcast.Selector {
	return d.selector
}

type observerEntry[E any] struct {
	observer conduit.Observer[E]
	chain    *pipeline.Chain[E, conduit.Unit]
}

type publisherEntry[E any] struct {
	recipe *pipeline.Pipeline[E, conduit.Unit]
	chain  *pipeline.Chain[E, conduit.Unit]
}

// Subscribe registers observer for events of type E. The configure
// functions shape the observer's own pipeline; it is compiled once here.
func Subscribe[E any](d *Dispatcher, observer conduit.Observer[E], configure ...func(*pipeline.Pipeline[E, conduit.Unit])) Subscription {
	p := pipeline.Build[E, conduit.Unit](d.registry)
	for _, fn := range configure {
		fn(p)
	}

	entry := &observerEntry[E]{
		observer: observer,
		chain:    p.Compile(),
	}
	eventType := conduit.TypeOf[E]()

	d.mu.Lock()
	d.observers[eventType] = append(d.observers[eventType], entry)
	d.mu.Unlock()

	return &subs{
		dispatcher: d,
		eventType:  eventType,
		observer:   entry,
	}
}

func SubscribeFunc[E any](d *Dispatcher, fn conduit.ObserverFunc[E], configure ...func(*pipeline.Pipeline[E, conduit.Unit])) Subscription {
	return Subscribe[E](d, fn, configure...)
}

// ConfigurePublisher changes the publisher pipeline of E. Publishes already
// running keep the pipeline they started with.
func ConfigurePublisher[E any](d *Dispatcher, configure func(*pipeline.Pipeline[E, conduit.Unit])) {
	eventType := conduit.TypeOf[E]()

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.publishers[eventType].(*publisherEntry[E])
	if !ok {
		entry = &publisherEntry[E]{recipe: pipeline.BuildClient[E, conduit.Unit](d.registry)}
	}
	recipe := entry.recipe.Clone()
	configure(recipe)
	d.publishers[eventType] = &publisherEntry[E]{recipe: recipe, chain: recipe.Compile()}
}

// ObserverCount returns how many observers E currently has.
func ObserverCount[E any](d *Dispatcher) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers[conduit.TypeOf[E]()])
}

// Publish delivers evt to every observer of E in process.
func Publish[E any](ctx context.Context, d *Dispatcher, evt E) error {
	return PublishFrom(ctx, d, evt, conduit.InProcessReceiver())
}

// PublishFrom delivers evt to every observer of E; the observer pipelines
// see transport as their descriptor.
//
// The publish runs on its own store with a fresh message id, forked from the
// active one when there is one. Each observer runs on its own fork of that
// store, taken before any observer starts. After the broadcast the forks are
// merged back in subscription order, and the publish store into the active
// one.
func PublishFrom[E any](ctx context.Context, d *Dispatcher, evt E, transport conduit.TransportType) error {
	if err := conduit.ValidateMessage(evt); err != nil {
		return err
	}

	ctx, _, release := scope.Begin(ctx, scope.WithIDGenerator(d.generator))
	defer release()

	eventType := conduit.TypeOf[E]()
	_, err := publisherChain[E](d, eventType).Run(ctx, evt, conduit.InProcessSender(),
		conduit.HandlerFunc[E, conduit.Unit](func(ctx context.Context, evt E) (conduit.Unit, error) {
			return conduit.Unit{}, fanOut(ctx, d, eventType, evt, transport)
		}))
	return err
}

// Deliver hands an event received from a remote transport to the observers
// of E. The publisher pipeline is skipped since it ran on the sending side,
// and the message id of the active store is kept.
func Deliver[E any](ctx context.Context, d *Dispatcher, evt E, transport conduit.TransportType) error {
	if err := conduit.ValidateMessage(evt); err != nil {
		return err
	}

	ctx, _, release := scope.GetOrCreate(ctx, scope.WithIDGenerator(d.generator))
	defer release()

	return fanOut(ctx, d, conduit.TypeOf[E](), evt, transport)
}

func publisherChain[E any](d *Dispatcher, eventType string) *pipeline.Chain[E, conduit.Unit] {
	d.mu.RLock()
	entry, ok := d.publishers[eventType].(*publisherEntry[E])
	d.mu.RUnlock()
	if ok {
		return entry.chain
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if entry, ok = d.publishers[eventType].(*publisherEntry[E]); ok {
		return entry.chain
	}
	recipe := pipeline.BuildClient[E, conduit.Unit](d.registry)
	entry = &publisherEntry[E]{recipe: recipe, chain: recipe.Compile()}
	d.publishers[eventType] = entry
	return entry.chain
}

func observersOf[E any](d *Dispatcher, eventType string) []*observerEntry[E] {
	d.mu.RLock()
	defer d.mu.RUnlock()

	registered := d.observers[eventType]
	out := make([]*observerEntry[E], 0, len(registered))
	for _, o := range registered {
		if entry, ok := o.(*observerEntry[E]); ok {
			out = append(out, entry)
		}
	}
	return out
}

func fanOut[E any](ctx context.Context, d *Dispatcher, eventType string, evt E, transport conduit.TransportType) error {
	observers := observersOf[E](d, eventType)
	logger := conduit.WithLoggerFields(d.logger.WithContext(ctx), map[string]any{
		"event_type": eventType,
		"observers":  len(observers),
		"transport":  transport.String(),
	})
	if len(observers) == 0 {
		logger.Trace("no observers for event")
		return nil
	}

	strategy := d.selector.For(eventType)
	invocations := make([]broadcast.Invocation, len(observers))
	releases := make([]scope.Release, len(observers))
	for i, o := range observers {
		_, branch, release := scope.Fork(ctx)
		releases[i] = release
		invocations[i] = func(ctx context.Context) error {
			_, err := o.chain.Run(scope.WithStore(ctx, branch), evt, transport, conduit.ObserverHandler(o.observer))
			return err
		}
	}
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	logger.Debug("broadcasting event with %v", strategy)
	err := strategy.Broadcast(ctx, invocations)
	if err != nil {
		logger.Debug("broadcast failed: %v", err)
	}
	return err
}
