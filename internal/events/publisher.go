package events

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

// Publisher pushes a metadata snapshot downstream at a fixed interval for
// each session whose stream is live. One goroutine runs per started key;
// Start and Stop are idempotent.
type Publisher struct {
	registry *session.Registry
	clock    clockwork.Clock
	interval time.Duration

	mu      sync.Mutex
	running map[string]chan struct{}
}

func NewPublisher(registry *session.Registry, clock clockwork.Clock, interval time.Duration) *Publisher {
	return &Publisher{
		registry: registry,
		clock:    clock,
		interval: interval,
		running:  make(map[string]chan struct{}),
	}
}

// Start begins periodic publishing for key. Calling Start for an already
// started key is a no-op.
func (p *Publisher) Start(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.running[key]; ok {
		return
	}

	done := make(chan struct{})
	p.running[key] = done
	go p.loop(key, done)

	logging.WithUser(key).Debug("Metadata publisher started", "interval", p.interval)
}

// Stop halts periodic publishing for key. Stopping an unstarted key is a
// no-op.
func (p *Publisher) Stop(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done, ok := p.running[key]
	if !ok {
		return
	}
	close(done)
	delete(p.running, key)

	logging.WithUser(key).Debug("Metadata publisher stopped")
}

// StopAll halts every running publisher loop.
func (p *Publisher) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, done := range p.running {
		close(done)
		delete(p.running, key)
	}
}

// Running reports whether a publisher loop is active for key.
func (p *Publisher) Running(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.running[key]
	return ok
}

func (p *Publisher) loop(key string, done chan struct{}) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			p.publishOnce(key)
		case <-done:
			return
		}
	}
}

func (p *Publisher) publishOnce(key string) {
	s, ok := p.registry.Get(key)
	if !ok {
		// Session torn down under us; the orchestrator stops the loop.
		return
	}
	if _, live := s.StreamID(); !live {
		return
	}

	fwd := s.Forwarding()
	if fwd == nil {
		return
	}

	snap := s.Snapshot(p.clock.Now())
	if err := fwd.PublishMetadata(&snap); err != nil {
		metrics.ForwardPublishFailures.WithLabelValues("metadata").Inc()
		logging.WithError(err).Warn("Failed to publish metadata snapshot", "user_id", key)
	}
}
