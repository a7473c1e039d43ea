package domain

import (
	"context"
	"time"
)

// --- Upstream query API (Twitch Helix) ---

type ChannelUser struct {
	ID          string
	Login       string
	DisplayName string
}

type StreamInfo struct {
	ID          string
	Title       string
	Category    string
	ViewerCount int
	StartedAt   time.Time
}

// ChannelAPI is the upstream query API for channel, stream and count lookups.
type ChannelAPI interface {
	GetUserByLogin(ctx context.Context, login string) (*ChannelUser, error)
	// GetStreamByUserID reports the live stream for a broadcaster; the bool is
	// false when the channel is not live.
	GetStreamByUserID(ctx context.Context, userID string) (*StreamInfo, bool, error)
	GetFollowerCount(ctx context.Context, broadcasterID string) (int, error)
	GetSubscriberCount(ctx context.Context, broadcasterID string) (int, error)
	// GetTokenUser resolves the Twitch user that owns an OAuth token.
	GetTokenUser(ctx context.Context, oauthToken string) (*ChannelUser, error)
	IsModerator(ctx context.Context, broadcasterID, userID string) (bool, error)
}

// --- EventSub subscription management ---

type SubscriptionCondition struct {
	BroadcasterUserID string
	UserID            string
	ModeratorUserID   string
}

// SubscriptionAPI creates and revokes EventSub subscriptions bound to an
// event-source websocket session.
type SubscriptionAPI interface {
	CreateSubscription(ctx context.Context, sessionID, subType, version string, cond SubscriptionCondition) (string, error)
	DeleteSubscription(ctx context.Context, subscriptionID string) error
}

// --- Per-session channel handles ---

// DashboardConn is the session's exclusively owned dashboard socket handle.
type DashboardConn interface {
	Send(frame DashboardFrame) error
	Close() error
}

// EventSourceConn is the handle to the upstream notification socket.
type EventSourceConn interface {
	Close() error
}

// ForwardingConn is the handle to the downstream analytics socket. Publish
// failures are non-fatal to the session; callers log and continue.
type ForwardingConn interface {
	PublishChatMessage(msg *ChatMessage) error
	PublishStreamStart(rec *StreamRecord) error
	PublishStreamEnd(rec *StreamRecord) error
	PublishMetadata(snap *MetadataSnapshot) error
	Close() error
}

// --- Channel connectors ---

// EventHandler receives decoded frames from an event-source channel.
type EventHandler interface {
	HandleWelcome(ctx context.Context, key, eventSourceSessionID string)
	HandleNotification(ctx context.Context, key string, env *EventEnvelope)
}

// EventSourceConnector opens the upstream notification channel for a session.
type EventSourceConnector interface {
	Connect(ctx context.Context, key string, handler EventHandler) (EventSourceConn, error)
}

// ForwardingParams carries everything needed to open a forwarding channel.
type ForwardingParams struct {
	Key           string
	StreamerName  string
	IdentityToken string
	// OnResult is invoked for each inbound processed-result record.
	OnResult func(key string, result *ProcessedResult)
}

// ForwardingConnector opens the downstream analytics channel for a session.
type ForwardingConnector interface {
	Connect(ctx context.Context, params ForwardingParams) (ForwardingConn, error)
}

// --- Identity ---

// IdentityClaims is the verified content of an identity token. Subject is the
// stable session key.
type IdentityClaims struct {
	Subject  string
	Username string
}

// TokenVerifier validates identity tokens issued by the external identity
// provider. Token issuance is out of scope; only verification lives here.
type TokenVerifier interface {
	Verify(token string) (*IdentityClaims, error)
}
