package forwarding

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
)

// Connector opens one forwarding channel per session. The identity token
// rides in the query string; the backend associates everything sent on the
// socket with that identity.
type Connector struct {
	baseURL      string
	pingInterval time.Duration
	clock        clockwork.Clock
}

func NewConnector(baseURL string, pingInterval time.Duration, clock clockwork.Clock) *Connector {
	return &Connector{
		baseURL:      baseURL,
		pingInterval: pingInterval,
		clock:        clock,
	}
}

func (c *Connector) Connect(ctx context.Context, params domain.ForwardingParams) (domain.ForwardingConn, error) {
	dialURL := c.baseURL + "?token=" + url.QueryEscape(params.IdentityToken)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial forwarding websocket: %w", err)
	}

	conn := newChannel(ws, params)
	if err := conn.register(params.StreamerName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to register forwarding connection: %w", err)
	}

	go conn.writeLoop()
	go conn.readLoop()
	go conn.pingLoop(c.clock, c.pingInterval)

	logging.WithUser(params.Key).Info("Forwarding channel connected", "streamer", params.StreamerName)
	return conn, nil
}
