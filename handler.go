package conduit

import (
	"context"
	"reflect"
	"regexp"
	"strings"
)

// Unit is the response type of messages and events that produce no value.
type Unit struct{}

// Handler is responsible for answering a message of type M with a response R
type Handler[M any, R any] interface {
	Handle(ctx context.Context, msg M) (R, error)
}

// HandlerFunc is an adapter that lets you use a function as a Handler[M, R]
type HandlerFunc[M any, R any] func(ctx context.Context, msg M) (R, error)

// Handle calls the underlying function
func (f HandlerFunc[M, R]) Handle(ctx context.Context, msg M) (R, error) {
	return f(ctx, msg)
}

// Observer reacts to events of type E. Many observers can exist for one event type.
type Observer[E any] interface {
	Observe(ctx context.Context, evt E) error
}

// ObserverFunc is an adapter that lets you use a function as an Observer[E]
type ObserverFunc[E any] func(ctx context.Context, evt E) error

// Observe calls the underlying function
func (f ObserverFunc[E]) Observe(ctx context.Context, evt E) error {
	return f(ctx, evt)
}

// ObserverHandler exposes an Observer as a terminal Handler so it can close a pipeline.
func ObserverHandler[E any](o Observer[E]) Handler[E, Unit] {
	return HandlerFunc[E, Unit](func(ctx context.Context, evt E) (Unit, error) {
		return Unit{}, o.Observe(ctx, evt)
	})
}

// Typed lets messages and events choose the key they are registered and
// reported under. Types without it get a name derived from the Go type.
type Typed interface {
	Type() string
}

// TypeOf returns the registration key of the zero value of T.
func TypeOf[T any]() string {
	var zero T
	if t, ok := any(zero).(Typed); ok && !IsNilMessage(zero) {
		return t.Type()
	}
	return GetMessageType(zero)
}

func GetMessageType(msg any) string {
	if msg == nil {
		return "unknown_type"
	}

	v := reflect.ValueOf(msg)
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return typeName(reflect.TypeOf(msg))
	}

	// if msg implements Type() then we use that:
	if msgTyper, ok := msg.(Typed); ok {
		return msgTyper.Type()
	}

	return typeName(reflect.TypeOf(msg))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "unknown_type"
	}

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	pkgPath := t.PkgPath()
	if pkgPath != "" {
		parts := strings.Split(pkgPath, "/")
		pkgPath = parts[len(parts)-1]
	}

	txName := toSnakeCase(name)

	if pkgPath == "" {
		return txName
	}
	return pkgPath + "::" + txName
}

var snakeCaseRe = regexp.MustCompile("([a-z0-9])([A-Z])")

func toSnakeCase(s string) string {
	return strings.ToLower(snakeCaseRe.ReplaceAllString(s, "${1}_${2}"))
}
