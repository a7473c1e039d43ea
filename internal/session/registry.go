package session

import (
	"fmt"
	"sync"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
)

// Registry is the process-wide mapping from identity key to live Session.
// At most one session exists per key; a caller must tear the old session
// down before creating a new one.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create registers a new session for key with its dashboard channel and the
// identity resolved by the handshake. Fails with ErrSessionExists when a
// session for key is still live.
func (r *Registry) Create(key string, dashboard domain.DashboardConn, identity Identity) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[key]; exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionExists, key)
	}

	s := &Session{
		key:           key,
		dashboard:     dashboard,
		subscriptions: make(map[string]struct{}),
		identity:      identity,
	}
	r.sessions[key] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return s, nil
}

func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	return s, ok
}

// Remove deletes the session for key. Removing an absent key is a no-op.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, key)
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
}

// Keys returns the identity keys of all live sessions.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
