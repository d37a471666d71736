package scope

import (
	"crypto/rand"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-conduit"
	"go.opentelemetry.io/otel/trace"
)

// DataKind selects one of the three directional maps of a Store.
type DataKind int

const (
	// Downstream data flows from a caller to the handlers it invokes.
	Downstream DataKind = iota
	// Upstream data flows from handlers back to their caller.
	Upstream
	// Bidirectional data flows both ways.
	Bidirectional
)

func (k DataKind) String() string {
	switch k {
	case Downstream:
		return "downstream"
	case Upstream:
		return "upstream"
	case Bidirectional:
		return "bidirectional"
	default:
		return "unknown"
	}
}

// Store is the ambient state of one logical execution: identifiers, the three
// directional maps and process-local items.
//
// A Store is safe for concurrent use. Once released, every method except
// Released panics with conduit.ErrContextReleased.
type Store struct {
	mu        sync.RWMutex
	messageID string
	traceID   string
	items     map[string]any

	downstream    *Data
	upstream      *Data
	bidirectional *Data

	released atomic.Bool
}

// New creates a detached store. Most callers should use GetOrCreate instead.
func New(messageID, traceID string) *Store {
	s := &Store{
		messageID: messageID,
		traceID:   traceID,
		items:     make(map[string]any),
	}
	s.downstream = newData(s)
	s.upstream = newData(s)
	s.bidirectional = newData(s)
	return s
}

func (s *Store) MessageID() string {
	s.mustBeLive()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageID
}

func (s *Store) SetMessageID(id string) {
	s.mustBeLive()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messageID = id
}

func (s *Store) TraceID() string {
	s.mustBeLive()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traceID
}

func (s *Store) SetTraceID(id string) {
	s.mustBeLive()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traceID = id
}

func (s *Store) Downstream() *Data {
	s.mustBeLive()
	return s.downstream
}

func (s *Store) Upstream() *Data {
	s.mustBeLive()
	return s.upstream
}

func (s *Store) Bidirectional() *Data {
	s.mustBeLive()
	return s.bidirectional
}

// Data returns the map selected by kind.
func (s *Store) Data(kind DataKind) *Data {
	switch kind {
	case Upstream:
		return s.Upstream()
	case Bidirectional:
		return s.Bidirectional()
	default:
		return s.Downstream()
	}
}

// Set is a shorthand for s.Data(kind).Set(key, value, scope).
func (s *Store) Set(kind DataKind, key, value string, scope Scope) {
	s.Data(kind).Set(key, value, scope)
}

// Clear empties the three maps. Identifiers and items are kept.
func (s *Store) Clear() {
	s.mustBeLive()
	s.downstream.clear()
	s.upstream.clear()
	s.bidirectional.clear()
}

func (s *Store) SetItem(key string, value any) {
	s.mustBeLive()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

func (s *Store) Item(key string) (any, bool) {
	s.mustBeLive()
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *Store) DeleteItem(key string) {
	s.mustBeLive()
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Fork creates a child store for a nested execution branch. The child
// inherits the identifiers and starts with copies of the downstream and
// bidirectional maps and of the items. Its upstream map starts empty.
func (s *Store) Fork() *Store {
	s.mustBeLive()
	s.mu.RLock()
	child := New(s.messageID, s.traceID)
	for k, v := range s.items {
		child.items[k] = v
	}
	s.mu.RUnlock()

	for _, e := range s.downstream.snapshot() {
		child.downstream.set(e, false)
	}
	for _, e := range s.bidirectional.snapshot() {
		child.bidirectional.set(e, false)
	}
	return child
}

// Merge copies the upstream and bidirectional entries child wrote since it
// was forked into s, overwriting existing keys. Entries the child only
// inherited are skipped. Removals done on the child are not replayed.
func (s *Store) Merge(child *Store) {
	s.mustBeLive()
	if child == nil || child == s {
		return
	}
	for _, e := range child.upstream.writtenEntries() {
		s.upstream.Set(e.Key, e.Value, e.Scope)
	}
	for _, e := range child.bidirectional.writtenEntries() {
		s.bidirectional.Set(e.Key, e.Value, e.Scope)
	}
}

// Released reports whether the owner of the store has released it.
func (s *Store) Released() bool {
	return s.released.Load()
}

func (s *Store) release() {
	s.released.Store(true)
}

func (s *Store) mustBeLive() {
	if s.released.Load() {
		panic(conduit.ErrContextReleased)
	}
}

// NewTraceID returns a random W3C compatible trace id (32 lowercase hex chars).
func NewTraceID() string {
	var id trace.TraceID
	for !id.IsValid() {
		_, _ = rand.Read(id[:])
	}
	return id.String()
}
