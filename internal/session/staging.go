package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
)

// PendingInit is the channel-selection state staged by the REST handshake,
// waiting for the dashboard websocket to arrive and consume it.
type PendingInit struct {
	Username            string
	IdentityToken       string
	BroadcasterLogin    string
	BroadcasterUserID   string
	CallerUserID        string
	Role                domain.Role
	StreamID            string
	StreamTitle         string
	StreamCategory      string
	StreamViewerCount   int
	StreamStartedAt     time.Time
	StreamLiveAtStaging bool
}

type stagedEntry struct {
	pending   PendingInit
	expiresAt time.Time
}

// Staging holds pending-initialization records keyed by identity. Records
// are consumed exactly once; unconsumed records expire after a TTL so an
// abandoned handshake cannot leak state.
type Staging struct {
	mu      sync.Mutex
	entries map[string]*stagedEntry
	ttl     time.Duration
	clock   clockwork.Clock
}

func NewStaging(ttl time.Duration, clock clockwork.Clock) *Staging {
	return &Staging{
		entries: make(map[string]*stagedEntry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Put stages a pending initialization for key, replacing any existing record.
// A repeated handshake before the websocket arrives simply wins.
func (s *Staging) Put(key string, pending PendingInit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &stagedEntry{
		pending:   pending,
		expiresAt: s.clock.Now().Add(s.ttl),
	}
	metrics.StagedHandshakes.Set(float64(len(s.entries)))
}

// Take consumes the pending initialization for key. A record can be taken at
// most once; expired records are treated as absent.
func (s *Staging) Take(key string) (*PendingInit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	delete(s.entries, key)
	metrics.StagedHandshakes.Set(float64(len(s.entries)))

	if s.clock.Now().After(entry.expiresAt) {
		return nil, false
	}

	pending := entry.pending
	return &pending, true
}

// Remove drops the record for key without consuming it.
func (s *Staging) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	metrics.StagedHandshakes.Set(float64(len(s.entries)))
}

func (s *Staging) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EvictExpired removes all expired records and returns the count evicted.
func (s *Staging) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	evicted := 0
	for key, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, key)
			evicted++
		}
	}
	metrics.StagedHandshakes.Set(float64(len(s.entries)))
	return evicted
}

// StartEvictionTimer starts a background goroutine that periodically evicts
// expired records. The returned stop function cleans up the goroutine.
func (s *Staging) StartEvictionTimer(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.Chan():
				if evicted := s.EvictExpired(); evicted > 0 {
					slog.Debug("Evicted expired pending initializations",
						"count", evicted,
						"remaining", s.Size(),
					)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
