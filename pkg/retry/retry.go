// Package retry wraps calls to an external backend with an adaptive rate
// limit and exponential backoff. The limit grows while calls succeed and is
// cut back when the backend pushes back, keeping a misbehaving extraction
// backend from being hammered across many guilds at once.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Fatal marks an error that must stop retries immediately, e.g. a video
// reported as private or unavailable.
type Fatal struct {
	Err error
}

func (f *Fatal) Error() string { return f.Err.Error() }
func (f *Fatal) Unwrap() error { return f.Err }

func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}

// Limiter is an adaptive token-bucket limit shared by every caller that
// talks to the same backend.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	min, max rate.Limit
	lastDrop time.Time
}

// NewLimiter starts at initial requests/second and adapts between min and max.
func NewLimiter(initial, min, max rate.Limit) *Limiter {
	if initial < min {
		initial = min
	}
	burst := int(max)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(initial, burst),
		min:     min,
		max:     max,
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Success nudges the limit up after a clean call, but not while still inside
// the settle window after a recent failure.
func (l *Limiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastDrop) < 10*time.Second {
		return
	}
	l.set(l.limiter.Limit() + 1)
}

// Backoff halves the limit after a failed call.
func (l *Limiter) Backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastDrop = time.Now()
	l.set(l.limiter.Limit() / 2)
}

func (l *Limiter) set(limit rate.Limit) {
	if limit > l.max {
		limit = l.max
	}
	if limit < l.min {
		limit = l.min
	}
	l.limiter.SetLimit(limit)
}

// Limit returns the current requests/second.
func (l *Limiter) Limit() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(l.limiter.Limit())
}

// Do runs fn up to attempts times with exponential backoff and jitter,
// waiting on lim (if non-nil) before each try. A Fatal error or context
// cancellation stops immediately.
func Do(ctx context.Context, attempts int, lim *Limiter, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	delay := 500 * time.Millisecond
	const maxDelay = 10 * time.Second

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if werr := lim.Wait(ctx); werr != nil {
				return werr
			}
		}

		err = fn()
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			return nil
		}
		if IsFatal(err) {
			return err
		}
		if lim != nil {
			lim.Backoff()
		}
		if attempt == attempts {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Dur("sleep", delay).Msg("backend call failed, retrying")

		sleep := delay + time.Duration(rand.Int63n(int64(delay/4)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}
