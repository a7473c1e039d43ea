package domain

import (
	"fmt"
	"time"
)

// SentimentBucket labels one of the seven sentiment counters kept per stream.
type SentimentBucket string

const (
	SentimentVeryNegative     SentimentBucket = "very_negative"
	SentimentNegative         SentimentBucket = "negative"
	SentimentSlightlyNegative SentimentBucket = "slightly_negative"
	SentimentNeutral          SentimentBucket = "neutral"
	SentimentSlightlyPositive SentimentBucket = "slightly_positive"
	SentimentPositive         SentimentBucket = "positive"
	SentimentVeryPositive     SentimentBucket = "very_positive"
)

var sentimentBuckets = map[SentimentBucket]struct{}{
	SentimentVeryNegative:     {},
	SentimentNegative:         {},
	SentimentSlightlyNegative: {},
	SentimentNeutral:          {},
	SentimentSlightlyPositive: {},
	SentimentPositive:         {},
	SentimentVeryPositive:     {},
}

// ParseSentimentBucket validates a sentiment label from the analytics backend.
func ParseSentimentBucket(s string) (SentimentBucket, error) {
	b := SentimentBucket(s)
	if _, ok := sentimentBuckets[b]; !ok {
		return "", fmt.Errorf("unknown sentiment bucket %q", s)
	}
	return b, nil
}

// SentimentCounts holds the per-bucket message counters for one stream window.
type SentimentCounts struct {
	VeryNegative     int `json:"very_negative"`
	Negative         int `json:"negative"`
	SlightlyNegative int `json:"slightly_negative"`
	Neutral          int `json:"neutral"`
	SlightlyPositive int `json:"slightly_positive"`
	Positive         int `json:"positive"`
	VeryPositive     int `json:"very_positive"`
}

// StreamRecord is the downstream record describing a stream window. Start
// fields are seeded when the stream goes online; end fields are filled by the
// offline handler or the teardown sequencer, whichever comes first.
type StreamRecord struct {
	RecordID             string     `json:"record_id"`
	StreamID             string     `json:"stream_id"`
	BroadcasterUserID    string     `json:"broadcaster_user_id"`
	BroadcasterUserLogin string     `json:"broadcaster_user_login"`
	StartedAt            time.Time  `json:"started_at"`
	StartFollowerCount   int        `json:"start_follower_count"`
	StartSubscriberCount int        `json:"start_subscriber_count"`
	EndedAt              *time.Time `json:"ended_at,omitempty"`
	EndFollowerCount     int        `json:"end_follower_count,omitempty"`
	EndSubscriberCount   int        `json:"end_subscriber_count,omitempty"`
}

// MetadataSnapshot is the periodic downstream record with the session's
// accumulated counters for the live stream.
type MetadataSnapshot struct {
	StreamID        string          `json:"stream_id"`
	Title           string          `json:"title"`
	Category        string          `json:"category"`
	ViewerCount     int             `json:"viewer_count"`
	MessageCount    int             `json:"message_count"`
	FollowerCount   int             `json:"follower_count"`
	SubscriberCount int             `json:"subscriber_count"`
	Sentiment       SentimentCounts `json:"sentiment"`
	CapturedAt      time.Time       `json:"captured_at"`
}
