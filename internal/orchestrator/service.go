package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/events"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

// Service wires the session registry, staging store, channel connectors and
// event router into the session lifecycle use cases. It implements
// domain.EventHandler for frames arriving on the event-source channel.
type Service struct {
	registry  *session.Registry
	staging   *session.Staging
	gate      *session.Gate
	router    *events.Router
	publisher *events.Publisher

	channels    domain.ChannelAPI
	subs        domain.SubscriptionAPI
	eventSource domain.EventSourceConnector
	forwarding  domain.ForwardingConnector
	verifier    domain.TokenVerifier
	clock       clockwork.Clock

	callTimeout time.Duration

	// teardownGroup collapses concurrent teardowns for the same key.
	teardownGroup singleflight.Group

	// identityLocks serializes authenticate and teardown per key so a
	// reconnect cannot interleave with the teardown of its predecessor.
	mu            sync.Mutex
	identityLocks map[string]*sync.Mutex
}

type ServiceParams struct {
	Registry    *session.Registry
	Staging     *session.Staging
	Gate        *session.Gate
	Router      *events.Router
	Publisher   *events.Publisher
	Channels    domain.ChannelAPI
	Subs        domain.SubscriptionAPI
	EventSource domain.EventSourceConnector
	Forwarding  domain.ForwardingConnector
	Verifier    domain.TokenVerifier
	Clock       clockwork.Clock
	CallTimeout time.Duration
}

func NewService(p ServiceParams) *Service {
	return &Service{
		registry:      p.Registry,
		staging:       p.Staging,
		gate:          p.Gate,
		router:        p.Router,
		publisher:     p.Publisher,
		channels:      p.Channels,
		subs:          p.Subs,
		eventSource:   p.EventSource,
		forwarding:    p.Forwarding,
		verifier:      p.Verifier,
		clock:         p.Clock,
		callTimeout:   p.CallTimeout,
		identityLocks: make(map[string]*sync.Mutex),
	}
}

func (o *Service) identityLock(key string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.identityLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		o.identityLocks[key] = lock
	}
	return lock
}

// Authenticate promotes a staged handshake into a live session. The dashboard
// connection sends its identity token as the first frame; Authenticate
// verifies it, consumes the pending initialization staged by the REST
// handshake and opens the session's upstream and downstream channels.
//
// The dashboard connection is NOT closed on error; the caller owns it until
// Authenticate succeeds.
func (o *Service) Authenticate(ctx context.Context, conn domain.DashboardConn, token string) (string, error) {
	claims, err := o.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	key := claims.Subject

	lock := o.identityLock(key)
	lock.Lock()
	defer lock.Unlock()

	// A surviving session for the same identity is replaced, not shared.
	if _, exists := o.registry.Get(key); exists {
		logging.WithUser(key).Info("Replacing existing session on reconnect")
		o.teardownLocked(context.WithoutCancel(ctx), key)
	}

	pending, ok := o.staging.Take(key)
	if !ok {
		return "", fmt.Errorf("%w for %s", domain.ErrNoPendingInit, key)
	}

	identity := session.Identity{
		Username:          pending.Username,
		BroadcasterLogin:  pending.BroadcasterLogin,
		BroadcasterUserID: pending.BroadcasterUserID,
		CallerUserID:      pending.CallerUserID,
		Role:              pending.Role,
	}

	s, err := o.registry.Create(key, conn, identity)
	if err != nil {
		return "", err
	}

	log := logging.WithUser(key)
	log.Info("Session created",
		"broadcaster", pending.BroadcasterLogin,
		"role", string(pending.Role),
	)

	if pending.StreamLiveAtStaging {
		o.router.BeginLiveStream(ctx, key, s, pending.StreamID, &domain.StreamInfo{
			ID:          pending.StreamID,
			Title:       pending.StreamTitle,
			Category:    pending.StreamCategory,
			ViewerCount: pending.StreamViewerCount,
			StartedAt:   pending.StreamStartedAt,
		})
	}

	// Channel failures leave a degraded session rather than failing the
	// dashboard; the client can reconnect to retry.
	esConn, err := o.eventSource.Connect(ctx, key, o)
	if err != nil {
		logging.WithError(err).Error("Failed to open event-source channel", "user_id", key)
	} else {
		s.SetEventSource(esConn)
	}

	fwdConn, err := o.forwarding.Connect(ctx, domain.ForwardingParams{
		Key:           key,
		StreamerName:  pending.BroadcasterLogin,
		IdentityToken: pending.IdentityToken,
		OnResult:      o.handleProcessedResult,
	})
	if err != nil {
		logging.WithError(err).Error("Failed to open forwarding channel", "user_id", key)
	} else {
		s.SetForwarding(fwdConn)
		if s.MarkForwardingReady() {
			o.notifyReady(key, s)
		}
	}

	return key, nil
}

// HandleWelcome registers the role-tiered subscription set against the
// upstream websocket session and marks the event-source side ready.
func (o *Service) HandleWelcome(ctx context.Context, key, eventSourceSessionID string) {
	s, ok := o.registry.Get(key)
	if !ok {
		logging.WithUser(key).Debug("Welcome for torn-down session discarded")
		return
	}

	o.registerSubscriptions(ctx, s, eventSourceSessionID)

	if s.MarkEventSourceReady() {
		o.notifyReady(key, s)
	}
}

// HandleNotification forwards a decoded notification to the event router.
func (o *Service) HandleNotification(ctx context.Context, key string, env *domain.EventEnvelope) {
	o.router.Dispatch(ctx, key, env)
}

// notifyReady tells the dashboard both channels are up. Fired at most once
// per session by the readiness accounting in Session.
func (o *Service) notifyReady(key string, s *session.Session) {
	frame := domain.DashboardFrame{Type: domain.FrameInitComplete, Message: "ready"}
	if err := s.Dashboard().Send(frame); err != nil {
		logging.WithError(err).Warn("Failed to send init-complete frame", "user_id", key)
		return
	}
	logging.WithUser(key).Info("Session initialization complete")
}

// handleProcessedResult consumes one inbound record from the forwarding
// channel: sentiment counters are updated and the record is relayed to the
// dashboard.
func (o *Service) handleProcessedResult(key string, result *domain.ProcessedResult) {
	s, ok := o.registry.Get(key)
	if !ok {
		return
	}

	if result.Type == domain.ProcessedResultType && result.Sentiment != "" {
		bucket, err := domain.ParseSentimentBucket(result.Sentiment)
		if err != nil {
			logging.WithError(err).Warn("Dropping result with unknown sentiment", "user_id", key)
		} else {
			s.IncrementSentiment(bucket)
		}
	}

	frame := domain.DashboardFrame{Type: domain.FrameNlpMessage, Message: result}
	if err := s.Dashboard().Send(frame); err != nil {
		logging.WithError(err).Warn("Failed to relay processed result to dashboard", "user_id", key)
	}
}

// Shutdown tears down every live session. Used on process exit.
func (o *Service) Shutdown(ctx context.Context) {
	for _, key := range o.registry.Keys() {
		o.Teardown(ctx, key)
	}
	o.publisher.StopAll()
}
