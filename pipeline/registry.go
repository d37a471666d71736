package pipeline

import (
	"sync"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-errors"
)

type registryKey[M, R any] struct{}

type clientRegistryKey[M, R any] struct{}

type registration struct {
	name       string
	configures []any
}

// Registry maps a message type to the functions that configure its default
// pipeline. Registration happens at startup; Initialize locks it.
type Registry struct {
	mu            sync.RWMutex
	registrations map[any]*registration
	order         []string
	initialized   bool
}

func NewRegistry() *Registry {
	return &Registry{
		registrations: make(map[any]*registration),
	}
}

// Register adds a configure function for the handler side pipeline of M.
// Functions run in registration order every time the pipeline is built.
func Register[M, R any](r *Registry, configure func(*Pipeline[M, R])) error {
	return register(r, registryKey[M, R]{}, conduit.TypeOf[M](), configure)
}

// RegisterClient adds a configure function for the client side pipeline of
// M, the one a sender runs before the message reaches a transport.
func RegisterClient[M, R any](r *Registry, configure func(*Pipeline[M, R])) error {
	return register(r, clientRegistryKey[M, R]{}, conduit.TypeOf[M]()+" (client)", configure)
}

func register[M, R any](r *Registry, key any, name string, configure func(*Pipeline[M, R])) error {
	if configure == nil {
		return errors.New("pipeline configure function cannot be nil", errors.CategoryBadInput).
			WithTextCode("NIL_CONFIGURE")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return conduit.CloneError(conduit.ErrRegistryInitialized,
			"cannot register pipelines after registry has been initialized", nil,
			map[string]any{"message_type": name})
	}

	reg, ok := r.registrations[key]
	if !ok {
		reg = &registration{name: name}
		r.registrations[key] = reg
		r.order = append(r.order, reg.name)
	}
	reg.configures = append(reg.configures, configure)
	return nil
}

// Build returns a fresh handler side pipeline with every configure function
// registered for M applied. Unknown types get an empty pipeline.
func Build[M, R any](r *Registry) *Pipeline[M, R] {
	return build[M, R](r, registryKey[M, R]{})
}

// BuildClient is Build for the client side pipeline of M.
func BuildClient[M, R any](r *Registry) *Pipeline[M, R] {
	return build[M, R](r, clientRegistryKey[M, R]{})
}

func build[M, R any](r *Registry, key any) *Pipeline[M, R] {
	p := New[M, R]()
	if r == nil {
		return p
	}

	r.mu.RLock()
	reg, ok := r.registrations[key]
	var fns []any
	if ok {
		fns = append(fns, reg.configures...)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn.(func(*Pipeline[M, R]))(p)
	}
	return p
}

// Initialize locks the registry against further registration.
func (r *Registry) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return conduit.CloneError(conduit.ErrRegistryInitialized, "", nil, nil)
	}
	r.initialized = true
	return nil
}

func (r *Registry) Initialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// Types lists registered message types in first registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
