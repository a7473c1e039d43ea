package events

import (
	"context"
	"sync"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
)

type fakeDashboard struct {
	mu      sync.Mutex
	frames  []domain.DashboardFrame
	sendErr error
	closed  bool
}

func (d *fakeDashboard) Send(frame domain.DashboardFrame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return d.sendErr
	}
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

type fakeForwarding struct {
	mu         sync.Mutex
	chat       []*domain.ChatMessage
	starts     []*domain.StreamRecord
	ends       []*domain.StreamRecord
	snapshots  []*domain.MetadataSnapshot
	publishErr error
	closed     bool
}

func (f *fakeForwarding) PublishChatMessage(msg *domain.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.chat = append(f.chat, msg)
	return nil
}

func (f *fakeForwarding) PublishStreamStart(rec *domain.StreamRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.starts = append(f.starts, rec)
	return nil
}

func (f *fakeForwarding) PublishStreamEnd(rec *domain.StreamRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.ends = append(f.ends, rec)
	return nil
}

func (f *fakeForwarding) PublishMetadata(snap *domain.MetadataSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeForwarding) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeForwarding) chatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.chat)
}

func (f *fakeForwarding) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.starts)
}

func (f *fakeForwarding) endCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ends)
}

func (f *fakeForwarding) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

type fakeChannelAPI struct {
	user        *domain.ChannelUser
	stream      *domain.StreamInfo
	live        bool
	followers   int
	subscribers int
	tokenUser   *domain.ChannelUser
	isModerator bool

	streamErr error
	countErr  error
}

func (c *fakeChannelAPI) GetUserByLogin(ctx context.Context, login string) (*domain.ChannelUser, error) {
	if c.user == nil {
		return nil, domain.ErrUserNotFound
	}
	return c.user, nil
}

func (c *fakeChannelAPI) GetStreamByUserID(ctx context.Context, userID string) (*domain.StreamInfo, bool, error) {
	if c.streamErr != nil {
		return nil, false, c.streamErr
	}
	return c.stream, c.live, nil
}

func (c *fakeChannelAPI) GetFollowerCount(ctx context.Context, broadcasterID string) (int, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.followers, nil
}

func (c *fakeChannelAPI) GetSubscriberCount(ctx context.Context, broadcasterID string) (int, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.subscribers, nil
}

func (c *fakeChannelAPI) GetTokenUser(ctx context.Context, oauthToken string) (*domain.ChannelUser, error) {
	if c.tokenUser == nil {
		return nil, domain.ErrUserNotFound
	}
	return c.tokenUser, nil
}

func (c *fakeChannelAPI) IsModerator(ctx context.Context, broadcasterID, userID string) (bool, error) {
	return c.isModerator, nil
}
