package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Aniszorek/twitch-chat-relay/internal/auth"
	"github.com/Aniszorek/twitch-chat-relay/internal/config"
	"github.com/Aniszorek/twitch-chat-relay/internal/events"
	"github.com/Aniszorek/twitch-chat-relay/internal/forwarding"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/orchestrator"
	"github.com/Aniszorek/twitch-chat-relay/internal/server"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
	"github.com/Aniszorek/twitch-chat-relay/internal/twitch"
)

const stagingEvictionInterval = 30 * time.Second

func runGracefulShutdown(srv *server.Server, orch *orchestrator.Service, stopEviction func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		orch.Shutdown(shutdownCtx)
		stopEviction()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	twitchClient, err := twitch.NewClient(cfg.TwitchClientID, cfg.TwitchBotOAuthToken)
	if err != nil {
		slog.Error("Failed to create twitch client", "error", err)
		os.Exit(1)
	}

	registry := session.NewRegistry()
	staging := session.NewStaging(cfg.PendingInitTTL, clock)
	stopEviction := staging.StartEvictionTimer(stagingEvictionInterval)
	gate := session.NewGate(registry)

	publisher := events.NewPublisher(registry, clock, cfg.MetadataPublishInterval)
	router := events.NewRouter(registry, gate, twitchClient, publisher, clock,
		cfg.ExternalCallTimeout, cfg.StreamStartPublishDelay)

	orch := orchestrator.NewService(orchestrator.ServiceParams{
		Registry:    registry,
		Staging:     staging,
		Gate:        gate,
		Router:      router,
		Publisher:   publisher,
		Channels:    twitchClient,
		Subs:        twitchClient,
		EventSource: twitch.NewConnector(cfg.EventSubWebSocketURL),
		Forwarding:  forwarding.NewConnector(cfg.ForwardingWebSocketURL, cfg.ForwardingPingInterval, clock),
		Verifier:    auth.NewVerifier(cfg.TokenSecret),
		Clock:       clock,
		CallTimeout: cfg.ExternalCallTimeout,
	})

	srv := server.NewServer(cfg, orch, staging, registry, twitchClient, auth.NewVerifier(cfg.TokenSecret))

	done := runGracefulShutdown(srv, orch, stopEviction)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
