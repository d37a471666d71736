// Package pipeline builds and runs ordered middleware chains for one message
// type M answered by R.
//
// A Pipeline is a mutable recipe. Compile freezes it into a Chain, so a run
// that already started is never affected by later Use, Without or Configure
// calls on the recipe.
package pipeline

import (
	"context"
	"fmt"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/scope"
)

// Middleware is one step of a pipeline. Execute receives its own typed
// configuration and decides whether, and how many times, to call
// call.Next.
type Middleware[M, R, C any] interface {
	Execute(ctx context.Context, call *Call[M, R], cfg C) (R, error)
}

// MiddlewareFunc is an inline middleware without configuration.
type MiddlewareFunc[M, R any] func(ctx context.Context, call *Call[M, R]) (R, error)

// Execute calls the underlying function
func (f MiddlewareFunc[M, R]) Execute(ctx context.Context, call *Call[M, R], _ conduit.Unit) (R, error) {
	return f(ctx, call)
}

type entry[M, R any] struct {
	instance any
	config   any
	invoke   func(ctx context.Context, call *Call[M, R], cfg any) (R, error)
}

// Pipeline is the ordered list of middleware bound to one message type.
// It is not safe for concurrent mutation; compile it before sharing.
type Pipeline[M, R any] struct {
	entries []entry[M, R]
}

// New creates an empty pipeline.
func New[M, R any]() *Pipeline[M, R] {
	return &Pipeline[M, R]{}
}

// Use appends mw with its configuration. Using the same middleware type
// again appends an independent entry with its own configuration.
func Use[MW Middleware[M, R, C], M, R, C any](p *Pipeline[M, R], mw MW, cfg C) *Pipeline[M, R] {
	p.entries = append(p.entries, entry[M, R]{
		instance: mw,
		config:   cfg,
		invoke: func(ctx context.Context, call *Call[M, R], cfg any) (R, error) {
			return mw.Execute(ctx, call, cfg.(C))
		},
	})
	return p
}

// UseFunc appends an inline middleware.
func (p *Pipeline[M, R]) UseFunc(fn MiddlewareFunc[M, R]) *Pipeline[M, R] {
	return Use(p, fn, conduit.Unit{})
}

// Without removes every entry whose middleware is of type MW and returns how
// many were removed. Without[MiddlewareFunc[M, R]] removes all inline
// middleware.
func Without[MW any, M, R any](p *Pipeline[M, R]) int {
	kept := p.entries[:0]
	removed := 0
	for _, e := range p.entries {
		if _, ok := e.instance.(MW); ok {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = entry[M, R]{}
	}
	p.entries = kept
	return removed
}

// Configure replaces the configuration of the first MW entry with
// mutate(old), keeping its position. It is a no-op returning false when MW
// was never used, so callers can adjust default pipelines blindly.
func Configure[MW Middleware[M, R, C], M, R, C any](p *Pipeline[M, R], mutate func(C) C) bool {
	for i := range p.entries {
		if _, ok := p.entries[i].instance.(MW); ok {
			p.entries[i].config = mutate(p.entries[i].config.(C))
			return true
		}
	}
	return false
}

// ConfigureAll applies mutate to every MW entry and returns how many were
// changed.
func ConfigureAll[MW Middleware[M, R, C], M, R, C any](p *Pipeline[M, R], mutate func(C) C) int {
	n := 0
	for i := range p.entries {
		if _, ok := p.entries[i].instance.(MW); ok {
			p.entries[i].config = mutate(p.entries[i].config.(C))
			n++
		}
	}
	return n
}

// Has reports whether a middleware of type MW is present.
func Has[MW any, M, R any](p *Pipeline[M, R]) bool {
	for _, e := range p.entries {
		if _, ok := e.instance.(MW); ok {
			return true
		}
	}
	return false
}

func (p *Pipeline[M, R]) Len() int { return len(p.entries) }

// Types lists the dynamic type of every entry in execution order.
func (p *Pipeline[M, R]) Types() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = fmt.Sprintf("%T", e.instance)
	}
	return out
}

// Clone returns an independent copy of the recipe.
func (p *Pipeline[M, R]) Clone() *Pipeline[M, R] {
	cp := &Pipeline[M, R]{entries: make([]entry[M, R], len(p.entries))}
	copy(cp.entries, p.entries)
	return cp
}

// Compile freezes the current entries into a Chain.
func (p *Pipeline[M, R]) Compile() *Chain[M, R] {
	entries := make([]entry[M, R], len(p.entries))
	copy(entries, p.entries)
	return &Chain[M, R]{entries: entries}
}

// Execute compiles the pipeline and runs it once.
func (p *Pipeline[M, R]) Execute(ctx context.Context, msg M, transport conduit.TransportType, handler conduit.Handler[M, R]) (R, error) {
	return p.Compile().Run(ctx, msg, transport, handler)
}

// Store returns the store of the run ctx belongs to, if any.
func Store(ctx context.Context) (*scope.Store, bool) {
	return scope.FromContext(ctx)
}
