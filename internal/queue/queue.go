// Package queue holds the per-guild pending-track queues and the
// currently-playing slot. The guild table uses per-entry locking, so one
// guild's queue operations never contend with another's.
package queue

import (
	"sync"

	"grajek/internal/track"
)

type guildQueue struct {
	mu      sync.Mutex
	tracks  []track.Track
	current *track.Track
	looping bool
}

// Manager owns every guild's queue state.
type Manager struct {
	mu     sync.RWMutex
	guilds map[string]*guildQueue
}

func NewManager() *Manager {
	return &Manager{guilds: make(map[string]*guildQueue)}
}

func (m *Manager) guild(guildID string) *guildQueue {
	m.mu.RLock()
	g, ok := m.guilds[guildID]
	m.mu.RUnlock()
	if ok {
		return g
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.guilds[guildID]; ok {
		return g
	}
	g = &guildQueue{}
	m.guilds[guildID] = g
	return g
}

// Enqueue appends the track to the guild's queue.
func (m *Manager) Enqueue(guildID string, t track.Track) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracks = append(g.tracks, t)
}

// EnqueueMany appends tracks preserving their order.
func (m *Manager) EnqueueMany(guildID string, tracks []track.Track) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracks = append(g.tracks, tracks...)
}

// EnqueueFront inserts the track at position 0. Used to requeue the finished
// track when looping is enabled.
func (m *Manager) EnqueueFront(guildID string, t track.Track) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracks = append([]track.Track{t}, g.tracks...)
}

// DequeueAt removes and returns the track at the 0-based position. Both
// normal advance (position 0) and skip-to-position go through here. ok is
// false when the position is out of range; the queue is left untouched.
func (m *Manager) DequeueAt(guildID string, position int) (track.Track, bool) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()

	if position < 0 || position >= len(g.tracks) {
		return track.Track{}, false
	}
	t := g.tracks[position]
	g.tracks = append(g.tracks[:position], g.tracks[position+1:]...)
	return t, true
}

// RemoveAt deletes the track at the position with the same bounds contract
// as DequeueAt. Ownership checks belong to the caller.
func (m *Manager) RemoveAt(guildID string, position int) (track.Track, bool) {
	return m.DequeueAt(guildID, position)
}

// SetCurrent binds the track to the guild's playing slot; nil clears it.
func (m *Manager) SetCurrent(guildID string, t *track.Track) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if t == nil {
		g.current = nil
		return
	}
	cp := *t
	g.current = &cp
}

// Current returns a copy of the currently playing track, if any.
func (m *Manager) Current(guildID string) (track.Track, bool) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return track.Track{}, false
	}
	return *g.current, true
}

func (m *Manager) IsEmpty(guildID string) bool {
	return m.Len(guildID) == 0
}

func (m *Manager) Len(guildID string) int {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tracks)
}

// Tracks returns a copy of the guild's queue in order.
func (m *Manager) Tracks(guildID string) []track.Track {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]track.Track, len(g.tracks))
	copy(out, g.tracks)
	return out
}

// Clear empties the guild's queue, leaving the current slot alone.
func (m *Manager) Clear(guildID string) {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracks = nil
}

// ToggleLoop flips the guild's loop flag and returns the new state.
func (m *Manager) ToggleLoop(guildID string) bool {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.looping = !g.looping
	return g.looping
}

func (m *Manager) IsLooping(guildID string) bool {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.looping
}

// HasContent reports whether the guild has anything queued or playing.
func (m *Manager) HasContent(guildID string) bool {
	g := m.guild(guildID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tracks) > 0 || g.current != nil
}

// ActiveTrackIDs snapshots the union of queued and current track IDs across
// every guild. This is the only valid input to filestore garbage collection:
// a file referenced anywhere must never be deleted while processing a single
// guild's event.
func (m *Manager) ActiveTrackIDs() map[string]struct{} {
	m.mu.RLock()
	guilds := make([]*guildQueue, 0, len(m.guilds))
	for _, g := range m.guilds {
		guilds = append(guilds, g)
	}
	m.mu.RUnlock()

	active := make(map[string]struct{})
	for _, g := range guilds {
		g.mu.Lock()
		for _, t := range g.tracks {
			active[t.ID] = struct{}{}
		}
		if g.current != nil {
			active[g.current.ID] = struct{}{}
		}
		g.mu.Unlock()
	}
	return active
}
