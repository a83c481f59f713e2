package queue

import (
	"testing"

	"grajek/internal/track"
)

func tr(id string) track.Track {
	return track.Track{ID: id, Title: "t-" + id, Uploader: "ch", AddedBy: "u"}
}

func TestEnqueueOrder(t *testing.T) {
	m := NewManager()
	m.Enqueue("g1", tr("a"))
	m.EnqueueMany("g1", []track.Track{tr("b"), tr("c")})

	got := m.Tracks("g1")
	if len(got) != 3 || got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("queue order = %v, want [a b c]", ids(got))
	}
	if m.Len("g1") != 3 {
		t.Errorf("Len = %d, want 3", m.Len("g1"))
	}
}

func TestDequeueAt(t *testing.T) {
	m := NewManager()
	m.EnqueueMany("g1", []track.Track{tr("a"), tr("b"), tr("c")})

	got, ok := m.DequeueAt("g1", 1)
	if !ok || got.ID != "b" {
		t.Fatalf("DequeueAt(1) = (%v, %v), want b", got.ID, ok)
	}
	if rest := ids(m.Tracks("g1")); len(rest) != 2 || rest[0] != "a" || rest[1] != "c" {
		t.Errorf("remaining = %v, want [a c]", rest)
	}

	// Out-of-range positions fail without mutating the queue.
	if _, ok := m.DequeueAt("g1", 2); ok {
		t.Error("DequeueAt past end should fail")
	}
	if _, ok := m.DequeueAt("g1", -1); ok {
		t.Error("DequeueAt(-1) should fail")
	}
	if m.Len("g1") != 2 {
		t.Errorf("failed dequeue mutated queue, Len = %d", m.Len("g1"))
	}
}

func TestEnqueueFront(t *testing.T) {
	m := NewManager()
	m.EnqueueMany("g1", []track.Track{tr("b"), tr("c")})
	m.EnqueueFront("g1", tr("a"))

	if got := ids(m.Tracks("g1")); got[0] != "a" {
		t.Errorf("queue = %v, want a first", got)
	}
}

func TestCurrentSlot(t *testing.T) {
	m := NewManager()
	if _, ok := m.Current("g1"); ok {
		t.Error("Current on fresh guild should be empty")
	}

	cur := tr("x")
	m.SetCurrent("g1", &cur)
	got, ok := m.Current("g1")
	if !ok || got.ID != "x" {
		t.Errorf("Current = (%v, %v), want x", got.ID, ok)
	}

	m.SetCurrent("g1", nil)
	if _, ok := m.Current("g1"); ok {
		t.Error("Current should be empty after clearing")
	}
}

func TestToggleLoop(t *testing.T) {
	m := NewManager()
	if m.IsLooping("g1") {
		t.Error("looping should default off")
	}
	if !m.ToggleLoop("g1") {
		t.Error("first toggle should enable looping")
	}
	if m.ToggleLoop("g1") {
		t.Error("second toggle should disable looping")
	}
}

func TestGuildIsolation(t *testing.T) {
	m := NewManager()
	m.Enqueue("g1", tr("a"))
	m.Enqueue("g2", tr("b"))

	m.Clear("g1")
	if m.Len("g2") != 1 {
		t.Error("clearing g1 must not touch g2")
	}
}

func TestActiveTrackIDsIsGlobalUnion(t *testing.T) {
	m := NewManager()
	curr := tr("x")
	m.SetCurrent("g1", &curr)   // playing in guild 1
	m.Enqueue("g2", tr("x"))    // also queued in guild 2
	m.Enqueue("g2", tr("y"))

	active := m.ActiveTrackIDs()
	for _, id := range []string{"x", "y"} {
		if _, ok := active[id]; !ok {
			t.Errorf("ActiveTrackIDs missing %q", id)
		}
	}
	if len(active) != 2 {
		t.Errorf("ActiveTrackIDs len = %d, want 2", len(active))
	}
}

func ids(tracks []track.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}
