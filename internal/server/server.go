package server

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Aniszorek/twitch-chat-relay/internal/config"
	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/orchestrator"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	orch     *orchestrator.Service
	staging  *session.Staging
	registry *session.Registry
	channels domain.ChannelAPI
	verifier domain.TokenVerifier

	connLimiter      *ConnectionLimiter
	handshakeLimiter *HandshakeRateLimiter
	upgrader         websocket.Upgrader
}

func NewServer(
	cfg *config.Config,
	orch *orchestrator.Service,
	staging *session.Staging,
	registry *session.Registry,
	channels domain.ChannelAPI,
	verifier domain.TokenVerifier,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:             e,
		config:           cfg,
		orch:             orch,
		staging:          staging,
		registry:         registry,
		channels:         channels,
		verifier:         verifier,
		connLimiter:      NewConnectionLimiter(int64(cfg.MaxWebSocketConnections)),
		handshakeLimiter: NewHandshakeRateLimiter(float64(cfg.HandshakeRatePerSecond), cfg.HandshakeBurst),
		upgrader:         websocket.Upgrader{},
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	logging.Logger.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
