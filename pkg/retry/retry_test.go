package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 5, nil, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoStopsOnFatal(t *testing.T) {
	sentinel := errors.New("video unavailable")
	calls := 0
	err := Do(context.Background(), 5, nil, func() error {
		calls++
		return &Fatal{Err: sentinel}
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal errors must not be retried)", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Do() = %v, want wrapped sentinel", err)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	last := errors.New("still failing")
	err := Do(context.Background(), 1, nil, func() error { return last })
	if !errors.Is(err, last) {
		t.Errorf("Do() = %v, want %v", err, last)
	}
}

func TestDoRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		// Cancel during the first backoff sleep.
		cancel()
	}()
	err := Do(ctx, 3, nil, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("Do() with cancelled context should fail")
	}
}

func TestLimiterAdapts(t *testing.T) {
	l := NewLimiter(4, 1, 8)
	start := l.Limit()

	l.Backoff()
	if got := l.Limit(); got >= start {
		t.Errorf("Limit after Backoff = %v, want < %v", got, start)
	}

	l.Backoff()
	l.Backoff()
	l.Backoff()
	if got := l.Limit(); got < 1 {
		t.Errorf("Limit = %v, must never drop below min 1", got)
	}

	// Success inside the settle window after a drop must not raise the limit.
	before := l.Limit()
	l.Success()
	if got := l.Limit(); got != before {
		t.Errorf("Limit raised to %v during settle window, want %v", got, before)
	}
}
