// Package broadcast fans one event out to many observer invocations.
package broadcast

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

// Invocation runs one observer for the event being broadcast.
type Invocation func(ctx context.Context) error

// Strategy decides how invocations are scheduled and how their failures are
// reported. Implementations never abort an invocation that already started;
// cancellation of ctx only prevents new ones from starting.
type Strategy interface {
	Broadcast(ctx context.Context, invocations []Invocation) error
}

// StrategyFunc is an adapter that lets you use a function as a Strategy
type StrategyFunc func(ctx context.Context, invocations []Invocation) error

func (f StrategyFunc) Broadcast(ctx context.Context, invocations []Invocation) error {
	return f(ctx, invocations)
}

// Policy tells a Sequential strategy what to do when an observer fails.
type Policy int

const (
	// FailFast stops at the first failure and returns it unchanged.
	FailFast Policy = iota
	// CollectAll runs every observer and aggregates all failures.
	CollectAll
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case CollectAll:
		return "collect_all"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names produced by Policy.String, case insensitive.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "collect_all", "collectall":
		return CollectAll, nil
	default:
		return FailFast, errors.New(fmt.Sprintf("unknown broadcast policy %q", s), errors.CategoryValidation).
			WithTextCode("INVALID_BROADCAST_POLICY")
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
