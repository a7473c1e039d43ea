package events

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

// Router dispatches upstream notifications to per-type handlers. It owns no
// session state itself; everything it touches lives in the registry.
type Router struct {
	registry  *session.Registry
	gate      *session.Gate
	channels  domain.ChannelAPI
	publisher *Publisher
	clock     clockwork.Clock

	callTimeout       time.Duration
	startPublishDelay time.Duration
}

func NewRouter(
	registry *session.Registry,
	gate *session.Gate,
	channels domain.ChannelAPI,
	publisher *Publisher,
	clock clockwork.Clock,
	callTimeout time.Duration,
	startPublishDelay time.Duration,
) *Router {
	return &Router{
		registry:          registry,
		gate:              gate,
		channels:          channels,
		publisher:         publisher,
		clock:             clock,
		callTimeout:       callTimeout,
		startPublishDelay: startPublishDelay,
	}
}

// Dispatch routes one notification to its handler. Frames for sessions that
// no longer exist are discarded.
func (r *Router) Dispatch(ctx context.Context, key string, env *domain.EventEnvelope) {
	s, ok := r.registry.Get(key)
	if !ok {
		logging.WithUser(key).Debug("Discarding event for torn-down session",
			"subscription_type", env.Metadata.SubscriptionType)
		return
	}
	if env.Payload.Event == nil {
		logging.WithUser(key).Warn("Notification without event payload",
			"subscription_type", env.Metadata.SubscriptionType)
		return
	}

	subType := env.Metadata.SubscriptionType
	metrics.EventsDispatched.WithLabelValues(subType).Inc()

	switch subType {
	case domain.SubChannelChatMessage:
		r.handleChatMessage(key, s, env)
	case domain.SubChannelChatMessageDelete:
		r.handleMessageDelete(key, s, env.Payload.Event)
	case domain.SubStreamOnline:
		r.handleStreamOnline(ctx, key, s, env.Payload.Event)
	case domain.SubStreamOffline:
		r.handleStreamOffline(ctx, key, s)
	case domain.SubChannelFollow:
		s.IncrementFollowers()
	case domain.SubChannelSubscribe, domain.SubChannelSubscriptionMsg:
		s.IncrementSubscribers()
	case domain.SubChannelUpdate:
		s.UpdateChannelInfo(env.Payload.Event.Title, env.Payload.Event.CategoryName)
	default:
		logging.WithUser(key).Debug("Ignoring unhandled subscription type",
			"subscription_type", subType)
	}
}

// verify wraps the permission gate, treating gate errors as denials. A
// missing session mid-dispatch means teardown won the race.
func (r *Router) verify(key string, required domain.Role, action string) bool {
	granted, err := r.gate.Verify(key, required, action)
	if err != nil {
		logging.WithError(err).Warn("Permission check failed", "user_id", key, "action", action)
		return false
	}
	return granted
}
