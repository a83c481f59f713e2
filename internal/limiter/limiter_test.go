package limiter

import (
	"errors"
	"testing"
	"time"
)

// fakeClock lets tests step through the cooldown window deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration)   { c.t = c.t.Add(d) }

func newTestLimiter(cooldown time.Duration, maxQueue int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(cooldown, maxQueue)
	l.now = clock.now
	return l, clock
}

func TestCheckAndRecordRejectionDoesNotResetWindow(t *testing.T) {
	l, clock := newTestLimiter(3*time.Second, 15)

	if err := l.CheckAndRecord("u1", "g1", "play"); err != nil {
		t.Fatalf("first call should pass, got %v", err)
	}

	clock.advance(1 * time.Second)
	err := l.CheckAndRecord("u1", "g1", "play")
	var cd *CooldownActiveError
	if !errors.As(err, &cd) {
		t.Fatalf("second call at 1s should be rejected, got %v", err)
	}
	if cd.Remaining != 2*time.Second {
		t.Errorf("Remaining = %v, want 2s", cd.Remaining)
	}

	// 2.9s after the first call: still inside the original window even
	// though a rejected attempt happened in between.
	clock.advance(1900 * time.Millisecond)
	if err := l.CheckAndRecord("u1", "g1", "play"); !errors.As(err, &cd) {
		t.Fatalf("call at 2.9s should still be rejected, got %v", err)
	}

	clock.advance(200 * time.Millisecond)
	if err := l.CheckAndRecord("u1", "g1", "play"); err != nil {
		t.Errorf("call at 3.1s should pass, got %v", err)
	}
}

func TestCheckAndRecordIsolation(t *testing.T) {
	l, _ := newTestLimiter(3*time.Second, 15)

	if err := l.CheckAndRecord("u1", "g1", "play"); err != nil {
		t.Fatal(err)
	}
	// Different action, user or guild each get their own window.
	if err := l.CheckAndRecord("u1", "g1", "skip"); err != nil {
		t.Errorf("different action should not share cooldown: %v", err)
	}
	if err := l.CheckAndRecord("u2", "g1", "play"); err != nil {
		t.Errorf("different user should not share cooldown: %v", err)
	}
	if err := l.CheckAndRecord("u1", "g2", "play"); err != nil {
		t.Errorf("different guild should not share cooldown: %v", err)
	}
}

func TestCanAddTracks(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 15)

	ok, max := l.CanAddTracks("u1", "g1", 16)
	if ok || max != 15 {
		t.Errorf("CanAddTracks(16) = (%v, %d), want (false, 15)", ok, max)
	}

	l.AdjustCount("u1", "g1", 10)
	ok, max = l.CanAddTracks("u1", "g1", 5)
	if !ok || max != 5 {
		t.Errorf("CanAddTracks(5) with 10 queued = (%v, %d), want (true, 5)", ok, max)
	}
	ok, max = l.CanAddTracks("u1", "g1", 6)
	if ok || max != 5 {
		t.Errorf("CanAddTracks(6) with 10 queued = (%v, %d), want (false, 5)", ok, max)
	}
}

func TestAdjustCountClamping(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 15)

	l.AdjustCount("u1", "g1", 3)
	// Double decrement races must never drive the count negative.
	l.AdjustCount("u1", "g1", -2)
	l.AdjustCount("u1", "g1", -2)
	if got := l.Count("u1", "g1"); got != 0 {
		t.Errorf("Count = %d, want 0 after over-decrement", got)
	}

	l.AdjustCount("u1", "g1", 100)
	if got := l.Count("u1", "g1"); got != 15 {
		t.Errorf("Count = %d, want clamp at maxQueue 15", got)
	}
}

func TestClearGuild(t *testing.T) {
	l, _ := newTestLimiter(time.Second, 15)
	l.AdjustCount("u1", "g1", 5)
	l.AdjustCount("u2", "g1", 5)
	l.AdjustCount("u1", "g2", 5)

	l.ClearGuild("g1")

	if l.Count("u1", "g1") != 0 || l.Count("u2", "g1") != 0 {
		t.Error("ClearGuild should zero all counts in the guild")
	}
	if l.Count("u1", "g2") != 5 {
		t.Error("ClearGuild must not touch other guilds")
	}
}
