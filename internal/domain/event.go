package domain

// EventSub websocket message types.
const (
	MessageTypeWelcome      = "session_welcome"
	MessageTypeKeepalive    = "session_keepalive"
	MessageTypeNotification = "notification"
)

// EventSub subscription types handled by the event router.
const (
	SubChannelChatMessage       = "channel.chat.message"
	SubChannelChatMessageDelete = "channel.chat.message_delete"
	SubStreamOnline             = "stream.online"
	SubStreamOffline            = "stream.offline"
	SubChannelFollow            = "channel.follow"
	SubChannelSubscribe         = "channel.subscribe"
	SubChannelSubscriptionMsg   = "channel.subscription.message"
	SubChannelUpdate            = "channel.update"
)

// EventEnvelope is one inbound frame from the event-source websocket.
type EventEnvelope struct {
	Metadata EventMetadata `json:"metadata"`
	Payload  EventPayload  `json:"payload"`
}

type EventMetadata struct {
	MessageID        string `json:"message_id"`
	MessageType      string `json:"message_type"`
	MessageTimestamp string `json:"message_timestamp"`
	SubscriptionType string `json:"subscription_type,omitempty"`
}

type EventPayload struct {
	Session *EventSourceSession `json:"session,omitempty"`
	Event   *Event              `json:"event,omitempty"`
}

// EventSourceSession is the welcome payload carrying the upstream websocket
// session id used to register subscriptions.
type EventSourceSession struct {
	ID string `json:"id"`
}

// Event is the union of the notification payload fields we consume. The
// upstream source sends a different subset per subscription type.
type Event struct {
	ID                   string           `json:"id,omitempty"`
	BroadcasterUserID    string           `json:"broadcaster_user_id,omitempty"`
	BroadcasterUserLogin string           `json:"broadcaster_user_login,omitempty"`
	BroadcasterUserName  string           `json:"broadcaster_user_name,omitempty"`
	ChatterUserID        string           `json:"chatter_user_id,omitempty"`
	ChatterUserLogin     string           `json:"chatter_user_login,omitempty"`
	ChatterUserName      string           `json:"chatter_user_name,omitempty"`
	UserLogin            string           `json:"user_login,omitempty"`
	MessageID            string           `json:"message_id,omitempty"`
	Message              *ChatMessageBody `json:"message,omitempty"`
	Title                string           `json:"title,omitempty"`
	CategoryName         string           `json:"category_name,omitempty"`
}

type ChatMessageBody struct {
	Text string `json:"text"`
}
