package orchestrator

import (
	"context"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

// subscriptionSpec describes one EventSub subscription and the minimum role
// that earns it.
type subscriptionSpec struct {
	subType   string
	version   string
	minRole   domain.Role
	condition func(identity session.Identity) domain.SubscriptionCondition
}

func broadcasterOnly(identity session.Identity) domain.SubscriptionCondition {
	return domain.SubscriptionCondition{BroadcasterUserID: identity.BroadcasterUserID}
}

func broadcasterAndUser(identity session.Identity) domain.SubscriptionCondition {
	return domain.SubscriptionCondition{
		BroadcasterUserID: identity.BroadcasterUserID,
		UserID:            identity.CallerUserID,
	}
}

// subscriptionTiers is the role-tiered subscription set. Every session gets
// the base tier; moderators add follow events; streamers add subscription
// revenue events on top.
var subscriptionTiers = []subscriptionSpec{
	{subType: domain.SubChannelChatMessage, version: "1", minRole: domain.RoleViewer, condition: broadcasterAndUser},
	{subType: domain.SubChannelChatMessageDelete, version: "1", minRole: domain.RoleViewer, condition: broadcasterAndUser},
	{subType: domain.SubStreamOnline, version: "1", minRole: domain.RoleViewer, condition: broadcasterOnly},
	{subType: domain.SubStreamOffline, version: "1", minRole: domain.RoleViewer, condition: broadcasterOnly},
	{subType: domain.SubChannelUpdate, version: "1", minRole: domain.RoleViewer, condition: broadcasterOnly},
	{subType: domain.SubChannelFollow, version: "2", minRole: domain.RoleModerator, condition: func(identity session.Identity) domain.SubscriptionCondition {
		return domain.SubscriptionCondition{
			BroadcasterUserID: identity.BroadcasterUserID,
			ModeratorUserID:   identity.CallerUserID,
		}
	}},
	{subType: domain.SubChannelSubscribe, version: "1", minRole: domain.RoleStreamer, condition: broadcasterOnly},
	{subType: domain.SubChannelSubscriptionMsg, version: "1", minRole: domain.RoleStreamer, condition: broadcasterOnly},
}

// registerSubscriptions creates every subscription the session's role earns.
// A failed creation is logged and skipped; the session keeps whatever subset
// succeeded.
func (o *Service) registerSubscriptions(ctx context.Context, s *session.Session, eventSourceSessionID string) {
	identity := s.Identity()
	roleLevel, ok := identity.Role.Level()
	if !ok {
		logging.WithUser(s.Key()).Error("Session holds unknown role, skipping subscriptions",
			"role", string(identity.Role))
		return
	}

	log := logging.WithUser(s.Key())

	for _, spec := range subscriptionTiers {
		minLevel, _ := spec.minRole.Level()
		if roleLevel < minLevel {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		id, err := o.subs.CreateSubscription(callCtx, eventSourceSessionID, spec.subType, spec.version, spec.condition(identity))
		cancel()
		if err != nil {
			logging.WithError(err).Error("Failed to create subscription",
				"user_id", s.Key(),
				"subscription_type", spec.subType,
			)
			continue
		}

		s.TrackSubscription(id)
		log.Debug("Subscription created", "subscription_type", spec.subType, "subscription_id", id)
	}
}
