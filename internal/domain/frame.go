package domain

import "encoding/json"

// Dashboard frame types sent over the dashboard websocket.
const (
	FrameTwitchMessage  = "TwitchMessage"
	FrameMessageDeleted = "MessageDeleted"
	FrameInitComplete   = "InitComplete"
	FrameNlpMessage     = "NlpMessage"
)

// DashboardFrame is the outbound envelope on the dashboard channel.
type DashboardFrame struct {
	Type    string `json:"type"`
	Message any    `json:"message"`
}

// ChatMessage is the normalized chat record built from a chat-message event.
// The same shape is relayed to the dashboard and forwarded downstream.
type ChatMessage struct {
	BroadcasterUserID    string `json:"broadcasterUserId"`
	BroadcasterUserLogin string `json:"broadcasterUserLogin"`
	BroadcasterUserName  string `json:"broadcasterUserName"`
	ChatterUserID        string `json:"chatterUserId"`
	ChatterUserLogin     string `json:"chatterUserLogin"`
	ChatterUserName      string `json:"chatterUserName"`
	Text                 string `json:"messageText"`
	MessageID            string `json:"messageId"`
	Timestamp            string `json:"messageTimestamp"`
}

// DeletionNotice tells the dashboard a chat message was removed upstream.
type DeletionNotice struct {
	MessageID string `json:"message_id"`
}

// ProcessedResult is an inbound record from the forwarding channel: the
// analytics backend's output for a previously forwarded event.
type ProcessedResult struct {
	Type      string          `json:"type"`
	Sentiment string          `json:"sentiment,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ProcessedResultType is the discriminator for analyzed chat messages.
const ProcessedResultType = "nlp_processed_message"
