package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
)

const authFrameTimeout = 10 * time.Second

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// handleDashboardSocket upgrades the dashboard websocket and promotes the
// staged handshake once the client authenticates with its first frame. The
// socket closing, for any reason, tears the whole session down.
func (s *Server) handleDashboardSocket(c echo.Context) error {
	if !s.connLimiter.Acquire() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "connection limit reached")
	}
	defer s.connLimiter.Release()

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := newWSConn(ws)
	defer conn.Close()

	ws.SetReadDeadline(time.Now().Add(authFrameTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		logging.Logger.Debug("Dashboard socket closed before auth frame", "error", err)
		return nil
	}

	var frame authFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "auth" || frame.Token == "" {
		logging.Logger.Info("Dashboard socket sent invalid auth frame")
		return nil
	}

	key, err := s.orch.Authenticate(c.Request().Context(), conn, frame.Token)
	if err != nil {
		logging.WithError(err).Info("Dashboard authentication failed")
		return nil
	}

	// Authenticated. Read until the socket dies; inbound frames beyond the
	// auth frame are not part of the protocol.
	ws.SetReadDeadline(time.Time{})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	logging.WithUser(key).Info("Dashboard socket closed")
	s.orch.TeardownConn(context.WithoutCancel(c.Request().Context()), key, conn)
	return nil
}
