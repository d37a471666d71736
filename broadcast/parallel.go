package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/goliatone/go-conduit"
	"golang.org/x/sync/errgroup"
)

// Parallel invokes all observers concurrently, at most MaxConcurrency at a
// time when it is positive. It waits for every invocation before returning,
// so a failing observer never cancels its siblings.
//
// A panic in an observer is captured and raised again on the calling
// goroutine, as a *conduit.PanicError, once all invocations finished. When
// several observers panic, the raised PanicError holds an *AggregateError of
// every captured PanicError in registration order, with the stack of the
// first.
type Parallel struct {
	MaxConcurrency int
}

func (p Parallel) Broadcast(ctx context.Context, invocations []Invocation) error {
	if len(invocations) == 0 {
		return nil
	}

	var g errgroup.Group
	if p.MaxConcurrency > 0 {
		g.SetLimit(p.MaxConcurrency)
	}

	errs := make([]error, len(invocations))
	panics := make([]*conduit.PanicError, len(invocations))
	var skipped atomic.Bool

	for i, invoke := range invocations {
		if ctx.Err() != nil {
			skipped.Store(true)
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Store(true)
				return nil
			}
			defer func() {
				if r := recover(); r != nil {
					panics[i] = conduit.NewPanicError(r)
				}
			}()
			errs[i] = invoke(ctx)
			return nil
		})
	}
	_ = g.Wait()

	if pe := joinPanics(panics); pe != nil {
		panic(pe)
	}

	failed := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return finish(ctx, failed, skipped.Load())
}

func joinPanics(panics []*conduit.PanicError) *conduit.PanicError {
	var captured []error
	var first *conduit.PanicError
	for _, pe := range panics {
		if pe == nil {
			continue
		}
		if first == nil {
			first = pe
		}
		captured = append(captured, pe)
	}
	if len(captured) <= 1 {
		return first
	}
	return &conduit.PanicError{Value: &AggregateError{Errors: captured}, Stack: first.Stack}
}

func (p Parallel) String() string {
	if p.MaxConcurrency > 0 {
		return fmt.Sprintf("parallel(max=%d)", p.MaxConcurrency)
	}
	return "parallel(unbounded)"
}
