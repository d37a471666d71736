package scope

import "sync"

// Scope tells how far an entry travels.
type Scope int

const (
	// InProcess entries stay inside the current process.
	InProcess Scope = iota
	// AcrossTransports entries are also encoded onto the wire.
	AcrossTransports
)

func (s Scope) String() string {
	switch s {
	case InProcess:
		return "in_process"
	case AcrossTransports:
		return "across_transports"
	default:
		return "unknown"
	}
}

// Entry is one key/value pair of a Data map.
type Entry struct {
	Key   string
	Value string
	Scope Scope
}

// Data is an insertion ordered string map with per-entry scope. Keys are
// unique; setting an existing key overwrites it in place.
type Data struct {
	owner   *Store
	mu      sync.RWMutex
	keys    []string
	entries map[string]Entry
	// written holds the keys set through Set, used by Store.Merge.
	written map[string]struct{}
}

func newData(owner *Store) *Data {
	return &Data{
		owner:   owner,
		entries: make(map[string]Entry),
		written: make(map[string]struct{}),
	}
}

// Set stores value under key, replacing any previous value and scope.
func (d *Data) Set(key, value string, scope Scope) {
	d.owner.mustBeLive()
	d.set(Entry{Key: key, Value: value, Scope: scope}, true)
}

func (d *Data) set(e Entry, written bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[e.Key]; !ok {
		d.keys = append(d.keys, e.Key)
	}
	d.entries[e.Key] = e
	if written {
		d.written[e.Key] = struct{}{}
	}
}

// Get returns the value stored under key.
func (d *Data) Get(key string) (string, bool) {
	e, ok := d.Lookup(key)
	return e.Value, ok
}

// Lookup returns the full entry stored under key.
func (d *Data) Lookup(key string) (Entry, bool) {
	d.owner.mustBeLive()
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[key]
	return e, ok
}

// Remove deletes key and reports whether it was present.
func (d *Data) Remove(key string) bool {
	d.owner.mustBeLive()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[key]; !ok {
		return false
	}
	delete(d.entries, key)
	delete(d.written, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every entry.
func (d *Data) Clear() {
	d.owner.mustBeLive()
	d.clear()
}

func (d *Data) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = nil
	d.entries = make(map[string]Entry)
	d.written = make(map[string]struct{})
}

func (d *Data) Len() int {
	d.owner.mustBeLive()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keys)
}

// Entries returns a copy of all entries in insertion order.
func (d *Data) Entries() []Entry {
	d.owner.mustBeLive()
	return d.snapshot()
}

// AcrossTransports returns the entries that are allowed on the wire, in
// insertion order.
func (d *Data) AcrossTransports() []Entry {
	all := d.Entries()
	out := all[:0]
	for _, e := range all {
		if e.Scope == AcrossTransports {
			out = append(out, e)
		}
	}
	return out
}

func (d *Data) snapshot() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.keys))
	for _, k := range d.keys {
		out = append(out, d.entries[k])
	}
	return out
}

func (d *Data) writtenEntries() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.written))
	for _, k := range d.keys {
		if _, ok := d.written[k]; ok {
			out = append(out, d.entries[k])
		}
	}
	return out
}
