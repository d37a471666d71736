// Package scope holds the ambient execution context of a message or event:
// message id, trace id, directional key/value maps and process-local items.
//
// The active store travels in a context.Context. The first call to GetOrCreate
// on a chain of contexts owns the store and must release it; nested calls
// borrow it.
package scope

import (
	"context"
	"sync"

	"github.com/goliatone/go-conduit/ids"
	"go.opentelemetry.io/otel/trace"
)

type storeKey struct{}

// Release ends the lifetime of a store obtained from GetOrCreate or Fork.
// Releasing more than once is a no-op.
type Release func()

func noopRelease() {}

// Option customises store creation.
type Option func(*options)

type options struct {
	generator ids.Generator
}

// WithIDGenerator sets the generator used for the message id of new stores.
func WithIDGenerator(gen ids.Generator) Option {
	return func(o *options) {
		if gen != nil {
			o.generator = gen
		}
	}
}

// FromContext returns the active store. Released stores are not active.
func FromContext(ctx context.Context) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(storeKey{}).(*Store)
	if !ok || s == nil || s.Released() {
		return nil, false
	}
	return s, true
}

// WithStore registers s as the active store of the returned context.
func WithStore(ctx context.Context, s *Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeKey{}, s)
}

// GetOrCreate returns the active store of ctx, creating one when none is
// active. Only the creating call gets a release that invalidates the store;
// nested calls get a no-op.
func GetOrCreate(ctx context.Context, opts ...Option) (context.Context, *Store, Release) {
	if s, ok := FromContext(ctx); ok {
		return ctx, s, noopRelease
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := newStore(ctx, opts...)
	return WithStore(ctx, s), s, onceRelease(s.release)
}

// Fork registers a child of the active store on the returned context. The
// release merges the child back into its parent and invalidates it. Without
// an active store Fork behaves like GetOrCreate.
func Fork(ctx context.Context, opts ...Option) (context.Context, *Store, Release) {
	parent, ok := FromContext(ctx)
	if !ok {
		return GetOrCreate(ctx, opts...)
	}

	child := parent.Fork()
	return WithStore(ctx, child), child, onceRelease(func() {
		if !parent.Released() {
			parent.Merge(child)
		}
		child.release()
	})
}

// Begin starts one execution. Without an active store it behaves like
// GetOrCreate. Otherwise it forks the active store and gives the fork a fresh
// message id, leaving the parent's identifiers untouched; the release merges
// the fork back like Fork does.
func Begin(ctx context.Context, opts ...Option) (context.Context, *Store, Release) {
	if _, ok := FromContext(ctx); !ok {
		return GetOrCreate(ctx, opts...)
	}
	ctx, child, release := Fork(ctx)
	child.SetMessageID(resolve(opts).generator())
	return ctx, child, release
}

func newStore(ctx context.Context, opts ...Option) *Store {
	return New(resolve(opts).generator(), traceIDFrom(ctx))
}

func resolve(opts []Option) options {
	o := options{generator: ids.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func traceIDFrom(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.TraceID().IsValid() {
		return sc.TraceID().String()
	}
	return NewTraceID()
}

func onceRelease(fn func()) Release {
	var once sync.Once
	return func() { once.Do(fn) }
}
