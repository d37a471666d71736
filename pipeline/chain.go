package pipeline

import (
	"context"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/scope"
	"github.com/goliatone/go-errors"
)

// Chain is an immutable, compiled pipeline. It is safe for concurrent runs.
type Chain[M, R any] struct {
	entries []entry[M, R]
}

func (c *Chain[M, R]) Len() int { return len(c.entries) }

type run[M, R any] struct {
	chain     *Chain[M, R]
	store     *scope.Store
	transport conduit.TransportType
	handler   conduit.Handler[M, R]
}

// Call is what a middleware sees of the run it takes part in.
type Call[M, R any] struct {
	// Message is the value this middleware received.
	Message   M
	Store     *scope.Store
	Transport conduit.TransportType
	// Position is the index of this middleware in the chain.
	Position int

	run *run[M, R]
}

// Next passes msg to the rest of the chain, ending in the handler. It may be
// called any number of times; every call resumes right after this
// middleware.
func (c *Call[M, R]) Next(ctx context.Context, msg M) (R, error) {
	return c.run.invoke(ctx, c.Position+1, msg)
}

// Run executes the chain for msg. The store active on ctx is borrowed;
// without one a store is created for the duration of the run.
func (c *Chain[M, R]) Run(ctx context.Context, msg M, transport conduit.TransportType, handler conduit.Handler[M, R]) (R, error) {
	if handler == nil {
		var zero R
		return zero, errors.New("pipeline handler cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_HANDLER")
	}

	ctx, store, release := scope.GetOrCreate(ctx)
	defer release()

	r := &run[M, R]{
		chain:     c,
		store:     store,
		transport: transport,
		handler:   handler,
	}
	return r.invoke(ctx, 0, msg)
}

func (r *run[M, R]) invoke(ctx context.Context, position int, msg M) (R, error) {
	if position >= len(r.chain.entries) {
		return r.handler.Handle(ctx, msg)
	}

	e := r.chain.entries[position]
	return e.invoke(ctx, &Call[M, R]{
		Message:   msg,
		Store:     r.store,
		Transport: r.transport,
		Position:  position,
		run:       r,
	}, e.config)
}
