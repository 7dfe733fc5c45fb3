// Package sinkreg maintains the set of downstream audio sinks discovered
// through the audio-graph runtime's registry events. It is read by control
// threads (gain/target queries) and written only by the loop thread as
// registry events arrive; the audio thread never touches it.
package sinkreg

import "sync"

// MaxSinks bounds the table the way the original engine's fixed-size array
// did; beyond this many simultaneously-present sinks, further adds are
// ignored rather than growing unbounded.
const MaxSinks = 64

// Sink is one discovered downstream audio sink.
type Sink struct {
	ID     uint32 // opaque id assigned by the graph runtime
	Serial uint32 // stable serial, carried across renames
	Name   string
	Desc   string
}

// Registry is a mutex-guarded table of Sinks. The critical section is
// always a short, bounded copy or comparison — never held across
// allocation-sensitive or blocking work, and never touched by the audio
// thread.
type Registry struct {
	mu    sync.Mutex
	sinks []Sink
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{sinks: make([]Sink, 0, MaxSinks)}
}

// Add inserts a sink discovered via an "added" registry event, deduplicated
// by id. Returns false if the sink was already present or the table is
// full.
func (r *Registry) Add(s Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.sinks {
		if r.sinks[i].ID == s.ID {
			return false
		}
	}
	if len(r.sinks) >= MaxSinks {
		return false
	}
	r.sinks = append(r.sinks, s)
	return true
}

// Remove deletes the sink with the given id, if present, and returns its
// serial with ok true; ok is false if no sink had that id. The caller
// compares removedSerial against its own selected target. Order is not
// preserved: the
// removed entry is swapped with the last live entry, matching the original
// engine's O(1) removal.
func (r *Registry) Remove(id uint32) (removedSerial uint32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sinks)
	for i := 0; i < n; i++ {
		if r.sinks[i].ID == id {
			removedSerial = r.sinks[i].Serial
			r.sinks[i] = r.sinks[n-1]
			r.sinks = r.sinks[:n-1]
			return removedSerial, true
		}
	}
	return 0, false
}

// Count returns the number of currently known sinks.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}

// Describe returns a copy of the sink at index i, and whether i was valid.
// Index order is registry-internal and not guaranteed stable across
// mutations.
func (r *Registry) Describe(i int) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.sinks) {
		return Sink{}, false
	}
	return r.sinks[i], true
}

// BySerial returns a copy of the sink with the given serial, if present.
func (r *Registry) BySerial(serial uint32) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sinks {
		if s.Serial == serial {
			return s, true
		}
	}
	return Sink{}, false
}

// ByIdentity returns a copy of the sink matching both name and description
// exactly. Partial matches are never used.
func (r *Registry) ByIdentity(name, desc string) (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sinks {
		if s.Name == name && s.Desc == desc {
			return s, true
		}
	}
	return Sink{}, false
}

// First returns a copy of the first-enumerated sink, if any exist.
func (r *Registry) First() (Sink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sinks) == 0 {
		return Sink{}, false
	}
	return r.sinks[0], true
}
