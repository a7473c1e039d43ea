package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/events"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

type fixture struct {
	svc          *Service
	registry     *session.Registry
	staging      *session.Staging
	publisher    *events.Publisher
	clock        *clockwork.FakeClock
	channels     *fakeChannelAPI
	subs         *fakeSubs
	esConnector  *fakeEventSourceConnector
	fwdConnector *fakeForwardingConnector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := clockwork.NewFakeClock()
	registry := session.NewRegistry()
	staging := session.NewStaging(2*time.Minute, clock)
	gate := session.NewGate(registry)
	channels := &fakeChannelAPI{followers: 100, subscribers: 10}
	publisher := events.NewPublisher(registry, clock, 5*time.Minute)
	t.Cleanup(publisher.StopAll)
	router := events.NewRouter(registry, gate, channels, publisher, clock, time.Second, 3*time.Second)

	subs := &fakeSubs{}
	esConnector := &fakeEventSourceConnector{}
	fwdConnector := &fakeForwardingConnector{}
	verifier := &fakeVerifier{claims: map[string]*domain.IdentityClaims{
		"good-token": {Subject: "user-1", Username: "alice"},
	}}

	svc := NewService(ServiceParams{
		Registry:    registry,
		Staging:     staging,
		Gate:        gate,
		Router:      router,
		Publisher:   publisher,
		Channels:    channels,
		Subs:        subs,
		EventSource: esConnector,
		Forwarding:  fwdConnector,
		Verifier:    verifier,
		Clock:       clock,
		CallTimeout: time.Second,
	})

	return &fixture{
		svc:          svc,
		registry:     registry,
		staging:      staging,
		publisher:    publisher,
		clock:        clock,
		channels:     channels,
		subs:         subs,
		esConnector:  esConnector,
		fwdConnector: fwdConnector,
	}
}

func (f *fixture) stage(role domain.Role) {
	f.staging.Put("user-1", session.PendingInit{
		Username:          "alice",
		IdentityToken:     "good-token",
		BroadcasterLogin:  "somestreamer",
		BroadcasterUserID: "12345",
		CallerUserID:      "67890",
		Role:              role,
	})
}

func TestAuthenticateCreatesSession(t *testing.T) {
	f := newFixture(t)
	f.stage(domain.RoleViewer)
	dashboard := &fakeDashboard{}

	key, err := f.svc.Authenticate(context.Background(), dashboard, "good-token")
	require.NoError(t, err)
	assert.Equal(t, "user-1", key)

	s, ok := f.registry.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "somestreamer", s.Identity().BroadcasterLogin)
	assert.Equal(t, domain.RoleViewer, s.Role())

	// The staged record is consumed.
	_, ok = f.staging.Take("user-1")
	assert.False(t, ok)

	// Both channels were opened and wired to the session.
	assert.NotNil(t, f.esConnector.conn)
	assert.NotNil(t, f.fwdConnector.conn)
	assert.Equal(t, "somestreamer", f.fwdConnector.params.StreamerName)
}

func TestAuthenticateInvalidToken(t *testing.T) {
	f := newFixture(t)
	f.stage(domain.RoleViewer)

	_, err := f.svc.Authenticate(context.Background(), &fakeDashboard{}, "bad-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
	assert.Zero(t, f.registry.Len())
}

func TestAuthenticateWithoutStagedHandshake(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Authenticate(context.Background(), &fakeDashboard{}, "good-token")
	assert.ErrorIs(t, err, domain.ErrNoPendingInit)
	assert.Zero(t, f.registry.Len())
}

func TestAuthenticateReplacesExistingSession(t *testing.T) {
	f := newFixture(t)
	f.stage(domain.RoleViewer)
	first := &fakeDashboard{}
	_, err := f.svc.Authenticate(context.Background(), first, "good-token")
	require.NoError(t, err)

	f.stage(domain.RoleViewer)
	second := &fakeDashboard{}
	_, err = f.svc.Authenticate(context.Background(), second, "good-token")
	require.NoError(t, err)

	assert.True(t, first.isClosed())
	assert.Equal(t, 1, f.registry.Len())

	s, ok := f.registry.Get("user-1")
	require.True(t, ok)
	assert.Same(t, second, s.Dashboard().(*fakeDashboard))
}

func TestInitCompleteFiresOnceWhenBothChannelsReady(t *testing.T) {
	f := newFixture(t)
	f.stage(domain.RoleViewer)
	dashboard := &fakeDashboard{}

	_, err := f.svc.Authenticate(context.Background(), dashboard, "good-token")
	require.NoError(t, err)

	// Forwarding is ready after Authenticate; the welcome completes the pair.
	assert.Empty(t, dashboard.framesOfType(domain.FrameInitComplete))

	f.svc.HandleWelcome(context.Background(), "user-1", "es-session-1")
	assert.Len(t, dashboard.framesOfType(domain.FrameInitComplete), 1)

	// A duplicate welcome must not re-fire the frame.
	f.svc.HandleWelcome(context.Background(), "user-1", "es-session-1")
	assert.Len(t, dashboard.framesOfType(domain.FrameInitComplete), 1)
}

func TestHandleWelcomeRegistersRoleTieredSubscriptions(t *testing.T) {
	tests := []struct {
		role domain.Role
		want []string
	}{
		{domain.RoleViewer, []string{
			domain.SubChannelChatMessage,
			domain.SubChannelChatMessageDelete,
			domain.SubStreamOnline,
			domain.SubStreamOffline,
			domain.SubChannelUpdate,
		}},
		{domain.RoleModerator, []string{
			domain.SubChannelChatMessage,
			domain.SubChannelChatMessageDelete,
			domain.SubStreamOnline,
			domain.SubStreamOffline,
			domain.SubChannelUpdate,
			domain.SubChannelFollow,
		}},
		{domain.RoleStreamer, []string{
			domain.SubChannelChatMessage,
			domain.SubChannelChatMessageDelete,
			domain.SubStreamOnline,
			domain.SubStreamOffline,
			domain.SubChannelUpdate,
			domain.SubChannelFollow,
			domain.SubChannelSubscribe,
			domain.SubChannelSubscriptionMsg,
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			f := newFixture(t)
			f.stage(tt.role)
			_, err := f.svc.Authenticate(context.Background(), &fakeDashboard{}, "good-token")
			require.NoError(t, err)

			f.svc.HandleWelcome(context.Background(), "user-1", "es-session-1")

			assert.ElementsMatch(t, tt.want, f.subs.createdTypes())

			s, _ := f.registry.Get("user-1")
			assert.Len(t, s.SubscriptionIDs(), len(tt.want))
		})
	}
}

func TestHandleWelcomeForUnknownSession(t *testing.T) {
	f := newFixture(t)

	f.svc.HandleWelcome(context.Background(), "ghost", "es-session-1")
	assert.Empty(t, f.subs.createdTypes())
}

func TestAuthenticateAlreadyLiveStreamSeedsStreamerSession(t *testing.T) {
	f := newFixture(t)
	f.staging.Put("user-1", session.PendingInit{
		Username:            "alice",
		BroadcasterLogin:    "somestreamer",
		BroadcasterUserID:   "12345",
		CallerUserID:        "12345",
		Role:                domain.RoleStreamer,
		StreamID:            "stream-7",
		StreamTitle:         "Already live",
		StreamCategory:      "Chess",
		StreamViewerCount:   55,
		StreamStartedAt:     time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
		StreamLiveAtStaging: true,
	})

	_, err := f.svc.Authenticate(context.Background(), &fakeDashboard{}, "good-token")
	require.NoError(t, err)

	s, _ := f.registry.Get("user-1")
	id, live := s.StreamID()
	assert.True(t, live)
	assert.Equal(t, "stream-7", id)
	assert.True(t, f.publisher.Running("user-1"))

	rec := s.StreamRecord()
	assert.Equal(t, 100, rec.StartFollowerCount)
	assert.Equal(t, 10, rec.StartSubscriberCount)
}

func TestAuthenticateAlreadyLiveStreamViewerNotSeeded(t *testing.T) {
	f := newFixture(t)
	f.staging.Put("user-1", session.PendingInit{
		Username:            "alice",
		BroadcasterLogin:    "somestreamer",
		BroadcasterUserID:   "12345",
		CallerUserID:        "67890",
		Role:                domain.RoleViewer,
		StreamID:            "stream-7",
		StreamLiveAtStaging: true,
	})

	_, err := f.svc.Authenticate(context.Background(), &fakeDashboard{}, "good-token")
	require.NoError(t, err)

	s, _ := f.registry.Get("user-1")
	_, live := s.StreamID()
	assert.True(t, live)
	assert.False(t, f.publisher.Running("user-1"))
}

func TestHandleProcessedResult(t *testing.T) {
	f := newFixture(t)
	f.stage(domain.RoleStreamer)
	dashboard := &fakeDashboard{}
	_, err := f.svc.Authenticate(context.Background(), dashboard, "good-token")
	require.NoError(t, err)

	s, _ := f.registry.Get("user-1")
	s.BeginStream("stream-1", nil)

	onResult := f.fwdConnector.params.OnResult
	require.NotNil(t, onResult)

	onResult("user-1", &domain.ProcessedResult{
		Type:      domain.ProcessedResultType,
		Sentiment: "positive",
	})
	onResult("user-1", &domain.ProcessedResult{
		Type:      domain.ProcessedResultType,
		Sentiment: "positive",
	})
	onResult("user-1", &domain.ProcessedResult{
		Type:      domain.ProcessedResultType,
		Sentiment: "not-a-bucket",
	})

	snap := s.Snapshot(f.clock.Now())
	assert.Equal(t, 2, snap.Sentiment.Positive)

	// Every result is relayed, even one with an unknown sentiment label.
	assert.Len(t, dashboard.framesOfType(domain.FrameNlpMessage), 3)

	// Results for torn-down sessions are dropped silently.
	onResult("ghost", &domain.ProcessedResult{Type: domain.ProcessedResultType, Sentiment: "positive"})
}
