package broadcast

import (
	"context"
	"fmt"
	"strings"
)

// AggregateError carries every failure of a broadcast in registration order.
// The original error values are kept so errors.Is and errors.As see them.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("broadcast failed: %v", e.Errors[0])
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("broadcast failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// finish builds the result of a broadcast. When invocations were skipped
// because ctx ended, its error is returned alone or appended to the
// aggregate.
func finish(ctx context.Context, errs []error, skipped bool) error {
	if skipped {
		if len(errs) == 0 {
			return ctx.Err()
		}
		errs = append(errs, ctx.Err())
	}
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: errs}
}
