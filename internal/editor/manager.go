package editor

import (
	"sort"
	"strings"
	"sync"

	"github.com/nainya/applydesk/internal/logger"
	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/persist"
	"github.com/segmentio/ksuid"
)

// Manager owns the open sessions. A document identity has at most one open
// session; opening it again returns the existing one.
type Manager struct {
	deps Deps
	cfg  Config
	keys *KeyHub

	mu         sync.Mutex
	sessions   map[string]*Session
	byIdentity map[persist.Identity]*Session
}

// NewManager creates a manager. keys may be nil for a hub with the default
// keymap.
func NewManager(deps Deps, cfg Config, keys *KeyHub) *Manager {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if keys == nil {
		keys = NewKeyHub(nil)
	}
	return &Manager{
		deps:       deps,
		cfg:        cfg.withDefaults(),
		keys:       keys,
		sessions:   make(map[string]*Session),
		byIdentity: make(map[persist.Identity]*Session),
	}
}

// Keys returns the key hub sessions listen on
func (m *Manager) Keys() *KeyHub {
	return m.keys
}

// Open returns the session for id, loading its history when it is not
// already open. The returned flag reports whether a new session was created.
func (m *Manager) Open(id persist.Identity) (*Session, bool, error) {
	id.ID = strings.TrimSpace(id.ID)
	if id.ID == "" {
		return nil, false, ErrInvalidIdentity
	}
	if _, err := content.SchemaFor(id.Kind); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byIdentity[id]; ok {
		return s, false, nil
	}

	s, err := newSession(ksuid.New().String(), id, m.deps, m.cfg)
	if err != nil {
		return nil, false, err
	}
	s.unbind = m.keys.Listen(s.apply)
	m.sessions[s.handle] = s
	m.byIdentity[id] = s
	m.deps.Metrics.SessionOpened()

	s.log.Info("Session opened").
		Str("handle", s.handle).
		Int("versions", s.store.Len()).
		Int("cursor", s.store.Cursor()).
		Send()
	return s, true, nil
}

// Get returns an open session by handle
func (m *Manager) Get(handle string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[handle]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the open sessions ordered by handle, which is creation order
func (m *Manager) List() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].handle < out[j].handle })
	return out
}

// Close closes one session, saving its history
func (m *Manager) Close(handle string) error {
	m.mu.Lock()
	s, ok := m.sessions[handle]
	if ok {
		delete(m.sessions, handle)
		delete(m.byIdentity, s.id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	m.deps.Metrics.SessionClosed()
	return nil
}

// CloseAll closes every open session
func (m *Manager) CloseAll() {
	for _, s := range m.List() {
		m.Close(s.handle)
	}
}
