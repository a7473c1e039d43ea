package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
)

// Connector opens one EventSub websocket per session. Each connection gets
// its own upstream session id, delivered in the welcome frame, which the
// handler uses to register subscriptions.
type Connector struct {
	url string
}

func NewConnector(url string) *Connector {
	return &Connector{url: url}
}

func (c *Connector) Connect(ctx context.Context, key string, handler domain.EventHandler) (domain.EventSourceConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial eventsub websocket: %w", err)
	}

	conn := &eventSourceConn{ws: ws, key: key}
	go conn.readLoop(handler)

	logging.WithUser(key).Info("Event-source channel connected")
	return conn, nil
}

type eventSourceConn struct {
	ws        *websocket.Conn
	key       string
	closeOnce sync.Once
}

func (c *eventSourceConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

// readLoop decodes inbound frames until the socket closes. Keepalives are
// dropped here; everything else goes to the handler.
func (c *eventSourceConn) readLoop(handler domain.EventHandler) {
	defer c.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			logging.WithUser(c.key).Debug("Event-source channel closed", "error", err)
			return
		}

		var env domain.EventEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.WithError(err).Warn("Discarding malformed event-source frame", "user_id", c.key)
			continue
		}

		switch env.Metadata.MessageType {
		case domain.MessageTypeWelcome:
			if env.Payload.Session == nil {
				logging.WithUser(c.key).Warn("Welcome frame without session payload")
				continue
			}
			handler.HandleWelcome(context.Background(), c.key, env.Payload.Session.ID)
		case domain.MessageTypeKeepalive:
			// Nothing to do; the read itself keeps the connection alive.
		case domain.MessageTypeNotification:
			handler.HandleNotification(context.Background(), c.key, &env)
		default:
			logging.WithUser(c.key).Debug("Ignoring event-source frame",
				"message_type", env.Metadata.MessageType)
		}
	}
}
