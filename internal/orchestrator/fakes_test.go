package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
)

type fakeDashboard struct {
	mu     sync.Mutex
	frames []domain.DashboardFrame
	closed bool
}

func (d *fakeDashboard) Send(frame domain.DashboardFrame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
	return nil
}

func (d *fakeDashboard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDashboard) framesOfType(frameType string) []domain.DashboardFrame {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []domain.DashboardFrame
	for _, f := range d.frames {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

func (d *fakeDashboard) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// fakeForwarding rejects publishes after Close so tests catch ordering bugs
// in the teardown sequence.
type fakeForwarding struct {
	mu     sync.Mutex
	chat   []*domain.ChatMessage
	ends   []*domain.StreamRecord
	closed bool
}

func (f *fakeForwarding) PublishChatMessage(msg *domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelClosed
	}
	f.chat = append(f.chat, msg)
	return nil
}

func (f *fakeForwarding) PublishStreamStart(rec *domain.StreamRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelClosed
	}
	return nil
}

func (f *fakeForwarding) PublishStreamEnd(rec *domain.StreamRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelClosed
	}
	f.ends = append(f.ends, rec)
	return nil
}

func (f *fakeForwarding) PublishMetadata(snap *domain.MetadataSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return domain.ErrChannelClosed
	}
	return nil
}

func (f *fakeForwarding) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeForwarding) endCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ends)
}

func (f *fakeForwarding) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeEventSourceConn struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeEventSourceConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeEventSourceConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeEventSourceConnector struct {
	conn       *fakeEventSourceConn
	connectErr error

	// When dialEntered is set, Connect signals it and then blocks until
	// dialRelease closes, letting tests hold an authentication mid-dial.
	dialEntered chan struct{}
	dialRelease chan struct{}
}

func (c *fakeEventSourceConnector) Connect(ctx context.Context, key string, handler domain.EventHandler) (domain.EventSourceConn, error) {
	if c.dialEntered != nil {
		close(c.dialEntered)
		c.dialEntered = nil
		<-c.dialRelease
	}
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	c.conn = &fakeEventSourceConn{}
	return c.conn, nil
}

type fakeForwardingConnector struct {
	conn       *fakeForwarding
	params     domain.ForwardingParams
	connectErr error
}

func (c *fakeForwardingConnector) Connect(ctx context.Context, params domain.ForwardingParams) (domain.ForwardingConn, error) {
	if c.connectErr != nil {
		return nil, c.connectErr
	}
	c.params = params
	c.conn = &fakeForwarding{}
	return c.conn, nil
}

type fakeSubs struct {
	mu        sync.Mutex
	nextID    int
	created   []string
	deleted   []string
	deleteErr error
}

func (s *fakeSubs) CreateSubscription(ctx context.Context, sessionID, subType, version string, cond domain.SubscriptionCondition) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.created = append(s.created, subType)
	return fmt.Sprintf("sub-%d", s.nextID), nil
}

func (s *fakeSubs) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, subscriptionID)
	return nil
}

func (s *fakeSubs) createdTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}

func (s *fakeSubs) deletedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

type fakeChannelAPI struct {
	followers   int
	subscribers int
}

func (c *fakeChannelAPI) GetUserByLogin(ctx context.Context, login string) (*domain.ChannelUser, error) {
	return &domain.ChannelUser{ID: "12345", Login: login}, nil
}

func (c *fakeChannelAPI) GetStreamByUserID(ctx context.Context, userID string) (*domain.StreamInfo, bool, error) {
	return nil, false, nil
}

func (c *fakeChannelAPI) GetFollowerCount(ctx context.Context, broadcasterID string) (int, error) {
	return c.followers, nil
}

func (c *fakeChannelAPI) GetSubscriberCount(ctx context.Context, broadcasterID string) (int, error) {
	return c.subscribers, nil
}

func (c *fakeChannelAPI) GetTokenUser(ctx context.Context, oauthToken string) (*domain.ChannelUser, error) {
	return nil, domain.ErrUserNotFound
}

func (c *fakeChannelAPI) IsModerator(ctx context.Context, broadcasterID, userID string) (bool, error) {
	return false, nil
}

type fakeVerifier struct {
	claims map[string]*domain.IdentityClaims
}

func (v *fakeVerifier) Verify(token string) (*domain.IdentityClaims, error) {
	claims, ok := v.claims[token]
	if !ok {
		return nil, errors.Join(domain.ErrInvalidToken, errors.New("unknown test token"))
	}
	return claims, nil
}
