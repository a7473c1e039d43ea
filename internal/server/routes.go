package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Channel-selection handshake (bearer identity token)
	s.echo.POST("/set-twitch-username", s.handleHandshake)

	// Dashboard websocket (token arrives in the first frame)
	s.echo.GET("/ws", s.handleDashboardSocket)
}
