package session

import (
	"sync"
	"time"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/google/uuid"
)

// Identity is the resolved identity of a session: the dashboard account, the
// Twitch channel it watches and the caller's role for that channel.
type Identity struct {
	Username          string
	BroadcasterLogin  string
	BroadcasterUserID string
	CallerUserID      string
	Role              domain.Role
}

// StreamState holds the running counters for the current stream. Counters
// are monotonically non-decreasing within a stream window and reset when a
// new window opens, not at session creation.
type StreamState struct {
	StreamID        string
	Title           string
	Category        string
	ViewerCount     int
	MessageCount    int
	FollowerCount   int
	SubscriberCount int
	Sentiment       domain.SentimentCounts
}

// StreamWindow brackets one live stream with follower/subscriber snapshots
// taken at its edges. Open only while a stream is live.
type StreamWindow struct {
	StartedAt            time.Time
	StartFollowerCount   int
	StartSubscriberCount int
	EndedAt              time.Time
	EndFollowerCount     int
	EndSubscriberCount   int
}

// Session is the per-identity aggregate of channels, role and stream state.
// The zero value is not usable; sessions are created through Registry.Create.
type Session struct {
	key string

	mu            sync.Mutex
	dashboard     domain.DashboardConn
	eventSource   domain.EventSourceConn
	forwarding    domain.ForwardingConn
	subscriptions map[string]struct{}
	identity      Identity
	stream        StreamState
	window        StreamWindow

	eventSourceReady bool
	forwardingReady  bool
	readyNotified    bool
}

// Key returns the session's identity key (the token subject claim).
func (s *Session) Key() string { return s.key }

func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity.Role
}

// Dashboard returns the dashboard channel handle. It is set at creation and
// never replaced, so no lock is needed.
func (s *Session) Dashboard() domain.DashboardConn { return s.dashboard }

func (s *Session) SetEventSource(c domain.EventSourceConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSource = c
}

func (s *Session) EventSource() domain.EventSourceConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventSource
}

func (s *Session) SetForwarding(c domain.ForwardingConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwarding = c
}

func (s *Session) Forwarding() domain.ForwardingConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forwarding
}

// --- Subscription tracking ---

func (s *Session) TrackSubscription(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[id] = struct{}{}
}

func (s *Session) SubscriptionIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.subscriptions))
	for id := range s.subscriptions {
		ids = append(ids, id)
	}
	return ids
}

func (s *Session) RemoveSubscription(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, id)
}

// ClearSubscriptions drops all tracked ids. Called at the end of teardown so
// tracking is empty even when individual revocations failed.
func (s *Session) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions = make(map[string]struct{})
}

// --- Stream state ---

// StreamID reports the current stream id; ok is false when not live.
func (s *Session) StreamID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.StreamID, s.stream.StreamID != ""
}

// BeginStream opens a new stream window: sets the stream id, overwrites
// title/category/viewers from the online snapshot and resets every counter
// to zero. info may be nil when the metadata fetch failed; the id is still
// recorded so the live flag is correct.
func (s *Session) BeginStream(streamID string, info *domain.StreamInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = StreamState{StreamID: streamID}
	if info != nil {
		s.stream.Title = info.Title
		s.stream.Category = info.Category
		s.stream.ViewerCount = info.ViewerCount
	}
	s.window = StreamWindow{}
}

// ClearStreamID marks the session as not live. Counters are left intact;
// they reset when the next window opens.
func (s *Session) ClearStreamID() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.StreamID = ""
}

// UpdateChannelInfo overwrites title and category, preserving all counters.
func (s *Session) UpdateChannelInfo(title, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.Title = title
	s.stream.Category = category
}

func (s *Session) IncrementMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.MessageCount++
}

func (s *Session) IncrementFollowers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.FollowerCount++
}

func (s *Session) IncrementSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream.SubscriberCount++
}

func (s *Session) IncrementSentiment(bucket domain.SentimentBucket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch bucket {
	case domain.SentimentVeryNegative:
		s.stream.Sentiment.VeryNegative++
	case domain.SentimentNegative:
		s.stream.Sentiment.Negative++
	case domain.SentimentSlightlyNegative:
		s.stream.Sentiment.SlightlyNegative++
	case domain.SentimentNeutral:
		s.stream.Sentiment.Neutral++
	case domain.SentimentSlightlyPositive:
		s.stream.Sentiment.SlightlyPositive++
	case domain.SentimentPositive:
		s.stream.Sentiment.Positive++
	case domain.SentimentVeryPositive:
		s.stream.Sentiment.VeryPositive++
	}
}

// --- Stream window edges ---

func (s *Session) OpenWindow(startedAt time.Time, followers, subscribers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.StartedAt = startedAt
	s.window.StartFollowerCount = followers
	s.window.StartSubscriberCount = subscribers
}

func (s *Session) CloseWindow(endedAt time.Time, followers, subscribers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window.EndedAt = endedAt
	s.window.EndFollowerCount = followers
	s.window.EndSubscriberCount = subscribers
}

// --- Snapshots ---

// Snapshot copies the current stream state into a downstream metadata record.
func (s *Session) Snapshot(capturedAt time.Time) domain.MetadataSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MetadataSnapshot{
		StreamID:        s.stream.StreamID,
		Title:           s.stream.Title,
		Category:        s.stream.Category,
		ViewerCount:     s.stream.ViewerCount,
		MessageCount:    s.stream.MessageCount,
		FollowerCount:   s.stream.FollowerCount,
		SubscriberCount: s.stream.SubscriberCount,
		Sentiment:       s.stream.Sentiment,
		CapturedAt:      capturedAt,
	}
}

// StreamRecord builds the downstream stream record for the current window.
func (s *Session) StreamRecord() *domain.StreamRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &domain.StreamRecord{
		RecordID:             uuid.NewString(),
		StreamID:             s.stream.StreamID,
		BroadcasterUserID:    s.identity.BroadcasterUserID,
		BroadcasterUserLogin: s.identity.BroadcasterLogin,
		StartedAt:            s.window.StartedAt,
		StartFollowerCount:   s.window.StartFollowerCount,
		StartSubscriberCount: s.window.StartSubscriberCount,
		EndFollowerCount:     s.window.EndFollowerCount,
		EndSubscriberCount:   s.window.EndSubscriberCount,
	}
	if !s.window.EndedAt.IsZero() {
		ended := s.window.EndedAt
		rec.EndedAt = &ended
	}
	return rec
}

// --- Readiness ---

// MarkEventSourceReady sets the event-source readiness flag. Returns true
// exactly when this call completes joint readiness for the first time;
// duplicate welcome frames cannot re-fire the notification.
func (s *Session) MarkEventSourceReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSourceReady = true
	return s.jointReadyLocked()
}

// MarkForwardingReady is the forwarding-channel counterpart of
// MarkEventSourceReady.
func (s *Session) MarkForwardingReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forwardingReady = true
	return s.jointReadyLocked()
}

func (s *Session) jointReadyLocked() bool {
	if s.eventSourceReady && s.forwardingReady && !s.readyNotified {
		s.readyNotified = true
		return true
	}
	return false
}
