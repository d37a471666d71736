package broadcast

import (
	"context"
)

// Sequential invokes observers one at a time in registration order.
type Sequential struct {
	Policy Policy
}

func (s Sequential) Broadcast(ctx context.Context, invocations []Invocation) error {
	var errs []error
	for _, invoke := range invocations {
		if ctx.Err() != nil {
			return finish(ctx, errs, true)
		}
		if err := invoke(ctx); err != nil {
			if s.Policy == FailFast {
				return err
			}
			errs = append(errs, err)
		}
	}
	return finish(ctx, errs, false)
}

func (s Sequential) String() string {
	return "sequential(" + s.Policy.String() + ")"
}
