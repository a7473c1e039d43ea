package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendQueue    = 64
)

// wsConn adapts a gorilla websocket to domain.DashboardConn. All writes go
// through a single writer goroutine; Send never blocks past queue capacity
// plus the write timeout.
type wsConn struct {
	ws        *websocket.Conn
	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:     ws,
		sendCh: make(chan []byte, wsSendQueue),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *wsConn) Send(frame domain.DashboardFrame) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case c.sendCh <- raw:
		return nil
	case <-c.done:
		return domain.ErrChannelClosed
	}
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) writeLoop() {
	for {
		select {
		case raw := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				logging.WithError(err).Debug("Dashboard write failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
