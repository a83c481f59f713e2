package cache

import (
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	c := New[string](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get() on empty cache should miss")
	}

	c.Put("q", "result")
	got, ok := c.Get("q")
	if !ok || got != "result" {
		t.Errorf("Get() = (%q, %v), want (%q, true)", got, ok, "result")
	}

	c.Put("q", "overwritten")
	got, _ = c.Get("q")
	if got != "overwritten" {
		t.Errorf("Put() should overwrite, got %q", got)
	}
}

func TestExpiredEntryIsAbsentButNotEvicted(t *testing.T) {
	c := New[int](10 * time.Millisecond)
	c.Put("k", 1)

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("Get() should miss on expired entry")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (reads must not evict)", c.Len())
	}
}

func TestSweepExpired(t *testing.T) {
	c := New[int](15 * time.Millisecond)
	c.Put("old1", 1)
	c.Put("old2", 2)

	time.Sleep(25 * time.Millisecond)
	c.Put("fresh", 3)

	if n := c.SweepExpired(); n != 2 {
		t.Errorf("SweepExpired() = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry should survive the sweep")
	}
}
