package forwarding

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
)

const (
	writeTimeout  = 5 * time.Second
	sendQueueSize = 64
)

// Outbound record kinds understood by the analytics backend.
const (
	recordChatMessage    = "chat_message"
	recordStreamStart    = "stream_start"
	recordStreamEnd      = "stream_end"
	recordStreamMetadata = "stream_metadata"
)

// forwardFrame is the outbound envelope on the forwarding channel.
type forwardFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// controlFrame carries connection management actions.
type controlFrame struct {
	Action       string `json:"action"`
	StreamerName string `json:"streamer_name,omitempty"`
}

type channel struct {
	ws       *websocket.Conn
	key      string
	onResult func(key string, result *domain.ProcessedResult)

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once

	breaker *gobreaker.CircuitBreaker
}

func newChannel(ws *websocket.Conn, params domain.ForwardingParams) *channel {
	c := &channel{
		ws:       ws,
		key:      params.Key,
		onResult: params.OnResult,
		sendCh:   make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "forwarding-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.WithUser(params.Key).Warn("Forwarding circuit breaker state changed",
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c
}

// register announces the connection to the backend. Called before the writer
// goroutine starts, so it writes directly.
func (c *channel) register(streamerName string) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(controlFrame{Action: "registerConnection", StreamerName: streamerName})
}

func (c *channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *channel) PublishChatMessage(msg *domain.ChatMessage) error {
	return c.publish(recordChatMessage, msg)
}

func (c *channel) PublishStreamStart(rec *domain.StreamRecord) error {
	return c.publish(recordStreamStart, rec)
}

func (c *channel) PublishStreamEnd(rec *domain.StreamRecord) error {
	return c.publish(recordStreamEnd, rec)
}

func (c *channel) PublishMetadata(snap *domain.MetadataSnapshot) error {
	return c.publish(recordStreamMetadata, snap)
}

func (c *channel) publish(recordKind string, data any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		raw, err := json.Marshal(forwardFrame{Type: recordKind, Data: data})
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s record: %w", recordKind, err)
		}
		return nil, c.enqueue(raw)
	})
	return err
}

func (c *channel) enqueue(frame []byte) error {
	select {
	case c.sendCh <- frame:
		return nil
	case <-c.done:
		return domain.ErrChannelClosed
	}
}

func (c *channel) writeLoop() {
	for {
		select {
		case frame := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.WithError(err).Warn("Forwarding write failed", "user_id", c.key)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop delivers processed results until the socket closes. The session
// owner is responsible for teardown when results stop flowing.
func (c *channel) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			logging.WithUser(c.key).Debug("Forwarding channel closed", "error", err)
			return
		}

		var result domain.ProcessedResult
		if err := json.Unmarshal(data, &result); err != nil {
			logging.WithError(err).Warn("Discarding malformed forwarding frame", "user_id", c.key)
			continue
		}
		if result.Type == "" {
			continue
		}

		if c.onResult != nil {
			c.onResult(c.key, &result)
		}
	}
}

// pingLoop keeps the backend's idle timeout from reaping the connection.
func (c *channel) pingLoop(clock clockwork.Clock, interval time.Duration) {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	ping, _ := json.Marshal(controlFrame{Action: "ping"})
	for {
		select {
		case <-ticker.Chan():
			if err := c.enqueue(ping); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
