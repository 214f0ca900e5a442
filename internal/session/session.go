// Package session holds per-user conversation state and a registry of live
// sessions.
package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"chatbot/internal/domain"
)

// State is the mutable part of a session.
type State struct {
	History  domain.History
	Profile  domain.Profile
	Language string
	ModelID  string
}

// Session is one conversation. All access goes through Do or Snapshot,
// which serializes turns of the same session.
type Session struct {
	ID string

	mu    sync.Mutex
	state State
}

func New(id string, st State) *Session {
	return &Session{ID: id, state: st}
}

// Do runs fn with exclusive access to the state.
func (s *Session) Do(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

// Snapshot returns a copy of the state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.History = slices.Clone(s.state.History)
	return st
}

// SetModel selects the model used by later turns.
func (s *Session) SetModel(id string) {
	s.mu.Lock()
	s.state.ModelID = id
	s.mu.Unlock()
}

// SetLanguage changes the display language without touching the profile.
func (s *Session) SetLanguage(lang string) {
	s.mu.Lock()
	s.state.Language = lang
	s.mu.Unlock()
}

// Defaults seed sessions that have no stored profile.
type Defaults struct {
	Language string
	ModelID  string
}

// Manager loads sessions from the stores and keeps them for ttl after the
// last access.
type Manager struct {
	mu       sync.Mutex
	cache    *cache.Cache
	history  domain.HistoryStore
	profiles domain.ProfileStore
	defaults Defaults
}

func NewManager(history domain.HistoryStore, profiles domain.ProfileStore, defaults Defaults, ttl time.Duration) *Manager {
	return &Manager{
		cache:    cache.New(ttl, ttl),
		history:  history,
		profiles: profiles,
		defaults: defaults,
	}
}

// Get returns the live session for id, restoring it from the stores on
// first use.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache.Get(id); ok {
		m.cache.SetDefault(id, v)
		return v.(*Session), nil
	}
	history, err := m.history.LoadHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	profile, found, err := m.profiles.LoadProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	if !found {
		profile = domain.Profile{PreferredLanguage: m.defaults.Language}
	}
	s := New(id, State{
		History:  history,
		Profile:  profile,
		Language: profile.PreferredLanguage,
		ModelID:  m.defaults.ModelID,
	})
	m.cache.SetDefault(id, s)
	return s, nil
}

// Forget drops a session from the registry; the next Get reloads it.
func (m *Manager) Forget(id string) {
	m.cache.Delete(id)
}
