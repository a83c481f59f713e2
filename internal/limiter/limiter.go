// Package limiter enforces per-user command cooldowns and per-user queue
// quotas within a guild.
package limiter

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned when a user already holds the maximum number
// of queued tracks for a guild.
var ErrQuotaExceeded = errors.New("queued track quota exceeded")

// CooldownActiveError reports how long a user must wait before repeating an
// action. A rejected attempt never resets the window.
type CooldownActiveError struct {
	Action    string
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active for %s: wait %s", e.Action, e.Remaining.Round(time.Millisecond))
}

type cooldownKey struct {
	userID  string
	guildID string
	action  string
}

type quotaKey struct {
	guildID string
	userID  string
}

// Limiter tracks per-(user, guild, action) cooldown stamps and
// per-(guild, user) queued-track counts. Safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	cooldowns map[cooldownKey]time.Time
	counts    map[quotaKey]int

	cooldown time.Duration
	maxQueue int

	now func() time.Time
}

func New(cooldown time.Duration, maxQueuePerUser int) *Limiter {
	return &Limiter{
		cooldowns: make(map[cooldownKey]time.Time),
		counts:    make(map[quotaKey]int),
		cooldown:  cooldown,
		maxQueue:  maxQueuePerUser,
		now:       time.Now,
	}
}

// CheckAndRecord atomically checks the cooldown for (user, guild, action) and
// stamps it when allowed. When blocked it returns a CooldownActiveError and
// leaves the previous stamp untouched, so rapid retries cannot extend the
// window.
func (l *Limiter) CheckAndRecord(userID, guildID, action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := cooldownKey{userID: userID, guildID: guildID, action: action}
	now := l.now()

	if last, ok := l.cooldowns[key]; ok {
		if elapsed := now.Sub(last); elapsed < l.cooldown {
			return &CooldownActiveError{Action: action, Remaining: l.cooldown - elapsed}
		}
	}

	l.cooldowns[key] = now
	return nil
}

// CanAddTracks reports whether the user may add requested tracks to the
// guild's queue, and how many they could add at most. Callers admit only the
// allowed prefix of a playlist and report the shortfall.
func (l *Limiter) CanAddTracks(userID, guildID string, requested int) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.counts[quotaKey{guildID: guildID, userID: userID}]
	maxAddable := l.maxQueue - current
	if maxAddable < 0 {
		maxAddable = 0
	}
	return requested <= maxAddable, maxAddable
}

// AdjustCount moves the user's queued-track count by delta, clamping at zero.
// Clamping defends against double decrements from racing skip/delete/advance
// events.
func (l *Limiter) AdjustCount(userID, guildID string, delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := quotaKey{guildID: guildID, userID: userID}
	next := l.counts[key] + delta
	if next <= 0 {
		delete(l.counts, key)
		return
	}
	if next > l.maxQueue {
		next = l.maxQueue
	}
	l.counts[key] = next
}

// Count returns the user's current queued-track count in the guild.
func (l *Limiter) Count(userID, guildID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[quotaKey{guildID: guildID, userID: userID}]
}

// ClearGuild drops all queued-track counts for the guild. Called when
// playback stops or the bot disconnects.
func (l *Limiter) ClearGuild(guildID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.counts {
		if key.guildID == guildID {
			delete(l.counts, key)
		}
	}
}
