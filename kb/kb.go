// Package kb holds the authoritative, in-memory orbit state.
package kb

import (
	"errors"
	"sync"

	"github.com/signalsfoundry/orbit-engine/model"
)

var (
	// ErrDuplicateEntry is returned when a replacement set repeats an ID.
	ErrDuplicateEntry = errors.New("duplicate orbit entry")
	// ErrStaleGeneration is returned when updates were computed against a
	// satellite set that has since been replaced.
	ErrStaleGeneration = errors.New("orbit updates are for a replaced satellite set")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	// EventReinitialized means the whole satellite set was replaced.
	EventReinitialized EventType = iota
	// EventPositionsUpdated means one tick's positions were applied.
	EventPositionsUpdated
)

// Event is emitted to subscribers after a change is committed.
type Event struct {
	Type       EventType
	Generation uint64
	SimTime    float64
	Satellites int
	Visible    int
}

// OrbitStore owns the OrbitEntry set. Entries are never mutated in place:
// every write swaps in fresh copies under the lock, so readers always see a
// whole tick or none of it.
type OrbitStore struct {
	mu sync.RWMutex

	entries    []*model.OrbitEntry
	index      map[string]int
	generation uint64
	simTime    float64

	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn func(Event)
}

// NewOrbitStore constructs an empty store.
func NewOrbitStore() *OrbitStore {
	return &OrbitStore{
		index: make(map[string]int),
	}
}

// Replace swaps in a new satellite set and returns its generation.
func (s *OrbitStore) Replace(entries []*model.OrbitEntry, simTime float64) (uint64, error) {
	index := make(map[string]int, len(entries))
	owned := make([]*model.OrbitEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		if _, dup := index[e.ID]; dup {
			return 0, ErrDuplicateEntry
		}
		index[e.ID] = len(owned)
		owned = append(owned, e.Clone())
	}

	s.mu.Lock()
	s.entries = owned
	s.index = index
	s.generation++
	s.simTime = simTime
	ev := s.eventLocked(EventReinitialized)
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
	return ev.Generation, nil
}

// ApplyUpdates commits one tick. updates is keyed by entry ID; entries
// without an update keep their previous position.
func (s *OrbitStore) ApplyUpdates(generation uint64, simTime float64, updates map[string]model.OrbitUpdate) error {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return ErrStaleGeneration
	}
	next := make([]*model.OrbitEntry, len(s.entries))
	for i, e := range s.entries {
		u, ok := updates[e.ID]
		if !ok {
			next[i] = e
			continue
		}
		cp := e.Clone()
		cp.Position = u.Position
		cp.Visible = u.Visible
		cp.Elevation = u.Elevation
		cp.Azimuth = u.Azimuth
		cp.Distance = u.Distance
		next[i] = cp
	}
	s.entries = next
	s.simTime = simTime
	ev := s.eventLocked(EventPositionsUpdated)
	subs := append([]subscriber(nil), s.subs...)
	s.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub.fn(ev)
	}
	return nil
}

// Snapshot returns the current generation and its entries.
func (s *OrbitStore) Snapshot() (uint64, []*model.OrbitEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation, append([]*model.OrbitEntry(nil), s.entries...)
}

// Get returns a copy of the entry with the given ID.
func (s *OrbitStore) Get(id string) (model.OrbitEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.OrbitEntry{}, false
	}
	return *s.entries[i], true
}

// Entries returns copies of all entries in insertion order.
func (s *OrbitStore) Entries() []model.OrbitEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OrbitEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out
}

// Visible returns copies of the entries currently above the horizon.
func (s *OrbitStore) Visible() []model.OrbitEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OrbitEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Visible {
			out = append(out, *e)
		}
	}
	return out
}

// Len returns the number of entries.
func (s *OrbitStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Generation returns the current satellite-set generation.
func (s *OrbitStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// SimTime returns the simulated time of the last committed write.
func (s *OrbitStore) SimTime() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.simTime
}

// Subscribe registers a callback for store events. It returns an
// unsubscribe function.
func (s *OrbitStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *OrbitStore) eventLocked(t EventType) Event {
	visible := 0
	for _, e := range s.entries {
		if e.Visible {
			visible++
		}
	}
	return Event{
		Type:       t,
		Generation: s.generation,
		SimTime:    s.simTime,
		Satellites: len(s.entries),
		Visible:    visible,
	}
}
