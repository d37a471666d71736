package broadcast

import (
	"sync"

	"github.com/goliatone/go-conduit"
)

// Selector resolves the strategy of a broadcast: a process wide default plus
// optional overrides per event type.
type Selector struct {
	mu        sync.RWMutex
	fallback  Strategy
	overrides map[string]Strategy
}

// NewSelector creates a selector. A nil default means Sequential FailFast.
func NewSelector(def Strategy) *Selector {
	if def == nil {
		def = Sequential{Policy: FailFast}
	}
	return &Selector{
		fallback:  def,
		overrides: make(map[string]Strategy),
	}
}

func (s *Selector) SetDefault(def Strategy) {
	if def == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = def
}

func (s *Selector) Default() Strategy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

// Override sets the strategy of one event type. A nil strategy removes the
// override.
func (s *Selector) Override(eventType string, strategy Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strategy == nil {
		delete(s.overrides, eventType)
		return
	}
	s.overrides[eventType] = strategy
}

// For returns the strategy for eventType.
func (s *Selector) For(eventType string) Strategy {
	if s == nil {
		return Sequential{Policy: FailFast}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.overrides[eventType]; ok {
		return st
	}
	return s.fallback
}

// OverrideFor sets the strategy of event type E.
func OverrideFor[E any](s *Selector, strategy Strategy) {
	s.Override(conduit.TypeOf[E](), strategy)
}

// StrategyFor returns the strategy for event type E.
func StrategyFor[E any](s *Selector) Strategy {
	return s.For(conduit.TypeOf[E]())
}
