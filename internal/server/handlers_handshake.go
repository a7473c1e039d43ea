package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

type handshakeRequest struct {
	TwitchUsername string `json:"twitchUsername"`
	// TwitchOauthToken is the caller's own Twitch token, used only to resolve
	// the caller's role for the selected channel. Absent means Viewer.
	TwitchOauthToken string `json:"twitchOauthToken"`
}

type handshakeResponse struct {
	Role              string `json:"role"`
	BroadcasterUserID string `json:"broadcasterUserId"`
	StreamLive        bool   `json:"streamLive"`
}

// handleHandshake stages the channel selection for the authenticated
// identity. The websocket that follows consumes the staged record.
func (s *Server) handleHandshake(c echo.Context) error {
	if !s.handshakeLimiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}

	token := bearerToken(c)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var req handshakeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	login := strings.ToLower(strings.TrimSpace(req.TwitchUsername))
	if login == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "twitchUsername is required")
	}

	ctx := c.Request().Context()

	broadcaster, err := s.channels.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "twitch user not found")
		}
		logging.WithError(err).Error("Failed to resolve broadcaster", "login", login)
		return echo.NewHTTPError(http.StatusBadGateway, "failed to resolve twitch user")
	}

	// A new handshake replaces any session the identity still holds.
	if _, exists := s.registry.Get(claims.Subject); exists {
		s.orch.Teardown(context.WithoutCancel(ctx), claims.Subject)
	}

	info, live, err := s.channels.GetStreamByUserID(ctx, broadcaster.ID)
	if err != nil {
		logging.WithBroadcaster(broadcaster.ID).Warn("Failed to fetch stream state at handshake",
			"login", login,
			"error", err,
		)
	}

	role, callerID := s.resolveRole(ctx, broadcaster, req.TwitchOauthToken)

	pending := session.PendingInit{
		Username:          claims.Username,
		IdentityToken:     token,
		BroadcasterLogin:  broadcaster.Login,
		BroadcasterUserID: broadcaster.ID,
		CallerUserID:      callerID,
		Role:              role,
	}
	if live && info != nil {
		pending.StreamLiveAtStaging = true
		pending.StreamID = info.ID
		pending.StreamTitle = info.Title
		pending.StreamCategory = info.Category
		pending.StreamViewerCount = info.ViewerCount
		pending.StreamStartedAt = info.StartedAt
	}
	s.staging.Put(claims.Subject, pending)

	logging.WithUser(claims.Subject).Info("Handshake staged",
		"broadcaster", broadcaster.Login,
		"role", string(role),
		"stream_live", live,
	)

	return c.JSON(http.StatusOK, handshakeResponse{
		Role:              string(role),
		BroadcasterUserID: broadcaster.ID,
		StreamLive:        live,
	})
}

// resolveRole maps the caller onto the channel: the broadcaster themselves is
// Streamer, a moderator of the channel is Moderator, everyone else is Viewer.
func (s *Server) resolveRole(ctx context.Context, broadcaster *domain.ChannelUser, oauthToken string) (domain.Role, string) {
	if oauthToken == "" {
		return domain.RoleViewer, ""
	}

	caller, err := s.channels.GetTokenUser(ctx, oauthToken)
	if err != nil {
		logging.WithError(err).Warn("Failed to resolve caller from oauth token")
		return domain.RoleViewer, ""
	}

	if caller.ID == broadcaster.ID {
		return domain.RoleStreamer, caller.ID
	}

	isMod, err := s.channels.IsModerator(ctx, broadcaster.ID, caller.ID)
	if err != nil {
		logging.WithBroadcaster(broadcaster.ID).Warn("Failed to check moderator status", "error", err)
		return domain.RoleViewer, caller.ID
	}
	if isMod {
		return domain.RoleModerator, caller.ID
	}
	return domain.RoleViewer, caller.ID
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
