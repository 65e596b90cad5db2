package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/orbit-engine/model"
)

func entries(ids ...string) []*model.OrbitEntry {
	out := make([]*model.OrbitEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, &model.OrbitEntry{ID: id, Name: "name-" + id})
	}
	return out
}

func TestReplaceAndGet(t *testing.T) {
	store := NewOrbitStore()
	gen, err := store.Replace(entries("a", "b"), 12)
	if err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	if gen != 1 || store.Generation() != 1 {
		t.Fatalf("generation = %d/%d, want 1", gen, store.Generation())
	}
	if store.Len() != 2 || store.SimTime() != 12 {
		t.Fatalf("len/simTime = %d/%v", store.Len(), store.SimTime())
	}
	got, ok := store.Get("b")
	if !ok || got.Name != "name-b" {
		t.Fatalf("Get(b) = %#v ok=%v", got, ok)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("Get(missing) should fail")
	}
}

func TestReplaceRejectsDuplicates(t *testing.T) {
	store := NewOrbitStore()
	if _, err := store.Replace(entries("a", "a"), 0); !errors.Is(err, ErrDuplicateEntry) {
		t.Fatalf("err = %v, want ErrDuplicateEntry", err)
	}
	if store.Generation() != 0 {
		t.Fatalf("failed replace bumped the generation")
	}
}

func TestReplaceCopiesInput(t *testing.T) {
	store := NewOrbitStore()
	in := entries("a")
	if _, err := store.Replace(in, 0); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	in[0].Name = "mutated"
	if got, _ := store.Get("a"); got.Name != "name-a" {
		t.Fatalf("store shares caller's entry: %q", got.Name)
	}
}

func TestApplyUpdatesCommitsVisibleSet(t *testing.T) {
	store := NewOrbitStore()
	gen, _ := store.Replace(entries("a", "b", "c"), 0)

	err := store.ApplyUpdates(gen, 1.5, map[string]model.OrbitUpdate{
		"a": {Visible: true, Elevation: 30, Position: model.Vec3{Y: 300}},
		"b": {Visible: false, Elevation: -3},
	})
	if err != nil {
		t.Fatalf("ApplyUpdates error: %v", err)
	}

	visible := store.Visible()
	if len(visible) != 1 || visible[0].ID != "a" || visible[0].Position.Y != 300 {
		t.Fatalf("visible = %#v", visible)
	}
	if store.SimTime() != 1.5 {
		t.Fatalf("simTime = %v", store.SimTime())
	}
	all := store.Entries()
	if len(all) != 3 || all[1].Elevation != -3 || all[2].Elevation != 0 {
		t.Fatalf("entries = %#v", all)
	}
}

func TestApplyUpdatesRejectsStaleGeneration(t *testing.T) {
	store := NewOrbitStore()
	old, _ := store.Replace(entries("a"), 0)
	if _, err := store.Replace(entries("b"), 0); err != nil {
		t.Fatalf("Replace error: %v", err)
	}
	err := store.ApplyUpdates(old, 1, map[string]model.OrbitUpdate{"a": {Visible: true}})
	if !errors.Is(err, ErrStaleGeneration) {
		t.Fatalf("err = %v, want ErrStaleGeneration", err)
	}
	if len(store.Visible()) != 0 {
		t.Fatalf("stale update leaked into the store")
	}
}

func TestSnapshotIsIsolatedFromLaterTicks(t *testing.T) {
	store := NewOrbitStore()
	gen, _ := store.Replace(entries("a"), 0)
	_, before := store.Snapshot()

	if err := store.ApplyUpdates(gen, 1, map[string]model.OrbitUpdate{"a": {Visible: true, Elevation: 10}}); err != nil {
		t.Fatalf("ApplyUpdates error: %v", err)
	}
	if before[0].Visible || before[0].Elevation != 0 {
		t.Fatalf("earlier snapshot observed a later tick: %#v", before[0])
	}
}

func TestSubscribeReceivesEventsUntilUnsubscribed(t *testing.T) {
	store := NewOrbitStore()
	var got []Event
	unsubscribe := store.Subscribe(func(ev Event) { got = append(got, ev) })
	other := store.Subscribe(func(Event) {})

	gen, _ := store.Replace(entries("a", "b"), 0)
	_ = store.ApplyUpdates(gen, 2, map[string]model.OrbitUpdate{"a": {Visible: true}})

	other()
	unsubscribe()
	_ = store.ApplyUpdates(gen, 3, nil)

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Type != EventReinitialized || got[0].Satellites != 2 {
		t.Fatalf("first event = %#v", got[0])
	}
	if got[1].Type != EventPositionsUpdated || got[1].Visible != 1 || got[1].SimTime != 2 {
		t.Fatalf("second event = %#v", got[1])
	}
}

func TestConcurrentReadersDuringTicks(t *testing.T) {
	store := NewOrbitStore()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("sat-%03d", i)
	}
	gen, _ := store.Replace(entries(ids...), 0)

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				// Every tick flips all entries together; a reader must never
				// see a mix.
				vis := store.Visible()
				if n := len(vis); n != 0 && n != len(ids) {
					t.Errorf("observed partial tick: %d visible", n)
					return
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		updates := make(map[string]model.OrbitUpdate, len(ids))
		for _, id := range ids {
			updates[id] = model.OrbitUpdate{Visible: i%2 == 0}
		}
		if err := store.ApplyUpdates(gen, float64(i), updates); err != nil {
			t.Fatalf("ApplyUpdates error: %v", err)
		}
	}
	wg.Wait()
}
