package player

import (
	"sync"

	"grajek/internal/filestore"
	"grajek/internal/limiter"
	"grajek/internal/queue"
)

// Deps are the collaborators shared by every guild session. Queues and
// Files are the only cross-guild shared state; both synchronize internally.
type Deps struct {
	Queues    *queue.Manager
	Limits    *limiter.Limiter
	Files     *filestore.Store
	Resolver  MediaResolver
	Connector Connector
	Locator   VoiceLocator
	Notifier  Notifier
}

// Manager owns the guild-keyed session table. Sessions are created on first
// use and retained for the process lifetime.
type Manager struct {
	mu       sync.Mutex
	deps     Deps
	opts     Options
	sessions map[string]*Session
}

func NewManager(deps Deps, opts Options) *Manager {
	return &Manager{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Session returns the guild's playback session, creating it on first use.
func (m *Manager) Session(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[guildID]; ok {
		return s
	}
	s := newSession(guildID, m.deps, m.opts)
	m.sessions[guildID] = s
	return s
}
