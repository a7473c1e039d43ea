package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

func (r *Router) handleChatMessage(key string, s *session.Session, env *domain.EventEnvelope) {
	event := env.Payload.Event
	if event.Message == nil {
		return
	}

	msg := &domain.ChatMessage{
		BroadcasterUserID:    event.BroadcasterUserID,
		BroadcasterUserLogin: event.BroadcasterUserLogin,
		BroadcasterUserName:  event.BroadcasterUserName,
		ChatterUserID:        event.ChatterUserID,
		ChatterUserLogin:     event.ChatterUserLogin,
		ChatterUserName:      event.ChatterUserName,
		Text:                 event.Message.Text,
		MessageID:            event.MessageID,
		Timestamp:            env.Metadata.MessageTimestamp,
	}

	s.IncrementMessages()

	if r.verify(key, domain.RoleStreamer, "forward_chat_message") {
		if fwd := s.Forwarding(); fwd != nil {
			if err := fwd.PublishChatMessage(msg); err != nil {
				metrics.ForwardPublishFailures.WithLabelValues("chat_message").Inc()
				logging.WithError(err).Warn("Failed to forward chat message", "user_id", key)
			}
		}
	}

	// The dashboard sees every message regardless of role.
	frame := domain.DashboardFrame{Type: domain.FrameTwitchMessage, Message: msg}
	if err := s.Dashboard().Send(frame); err != nil {
		logging.WithError(err).Warn("Failed to relay chat message to dashboard", "user_id", key)
	}
}

func (r *Router) handleMessageDelete(key string, s *session.Session, event *domain.Event) {
	frame := domain.DashboardFrame{
		Type:    domain.FrameMessageDeleted,
		Message: domain.DeletionNotice{MessageID: event.MessageID},
	}
	if err := s.Dashboard().Send(frame); err != nil {
		logging.WithError(err).Warn("Failed to relay deletion notice to dashboard", "user_id", key)
	}
}

func (r *Router) handleStreamOnline(ctx context.Context, key string, s *session.Session, event *domain.Event) {
	identity := s.Identity()
	log := logging.WithUser(key)

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	info, live, err := r.channels.GetStreamByUserID(callCtx, identity.BroadcasterUserID)
	if err != nil {
		log.Warn("Failed to fetch stream info at stream online", "error", err)
	}
	streamID := event.ID
	if live && info != nil && streamID == "" {
		streamID = info.ID
	}
	if streamID == "" {
		// An online notification with no id and no recoverable metadata
		// still marks the channel live; the placeholder keeps the offline
		// handler and publisher gating working.
		streamID = "online-" + uuid.NewString()
		log.Warn("Stream online without a stream id, using placeholder")
	}

	log.Info("Stream went online", "stream_id", streamID)
	r.BeginLiveStream(ctx, key, s, streamID, info)
}

// BeginLiveStream records a live stream on the session and, for streamer
// sessions, seeds the stream window and starts periodic publishing. It covers
// both the stream-online notification and a channel that is already live when
// the session is established.
func (r *Router) BeginLiveStream(ctx context.Context, key string, s *session.Session, streamID string, info *domain.StreamInfo) {
	s.BeginStream(streamID, info)

	if !r.verify(key, domain.RoleStreamer, "seed_stream_window") {
		return
	}

	identity := s.Identity()
	log := logging.WithUser(key)

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	startedAt := r.clock.Now()
	if info != nil && !info.StartedAt.IsZero() {
		startedAt = info.StartedAt
	}

	followers, err := r.channels.GetFollowerCount(callCtx, identity.BroadcasterUserID)
	if err != nil {
		log.Warn("Failed to fetch follower count at stream online", "error", err)
	}
	subscribers, err := r.channels.GetSubscriberCount(callCtx, identity.BroadcasterUserID)
	if err != nil {
		log.Warn("Failed to fetch subscriber count at stream online", "error", err)
	}

	s.OpenWindow(startedAt, followers, subscribers)
	r.publisher.Start(key)
	r.publishStartDelayed(key)
}

// publishStartDelayed sends the stream-start record after a short delay so
// the downstream backend sees the stream as live on its own side first.
func (r *Router) publishStartDelayed(key string) {
	go func() {
		<-r.clock.After(r.startPublishDelay)

		s, ok := r.registry.Get(key)
		if !ok {
			return
		}
		if _, live := s.StreamID(); !live {
			return
		}
		fwd := s.Forwarding()
		if fwd == nil {
			return
		}

		if err := fwd.PublishStreamStart(s.StreamRecord()); err != nil {
			metrics.ForwardPublishFailures.WithLabelValues("stream_start").Inc()
			logging.WithError(err).Warn("Failed to publish stream start", "user_id", key)
		}
	}()
}

func (r *Router) handleStreamOffline(ctx context.Context, key string, s *session.Session) {
	identity := s.Identity()
	log := logging.WithUser(key)
	log.Info("Stream went offline")

	if r.verify(key, domain.RoleStreamer, "publish_stream_end") {
		callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
		defer cancel()

		followers, err := r.channels.GetFollowerCount(callCtx, identity.BroadcasterUserID)
		if err != nil {
			log.Warn("Failed to fetch follower count at stream offline", "error", err)
		}
		subscribers, err := r.channels.GetSubscriberCount(callCtx, identity.BroadcasterUserID)
		if err != nil {
			log.Warn("Failed to fetch subscriber count at stream offline", "error", err)
		}

		s.CloseWindow(r.clock.Now(), followers, subscribers)

		if fwd := s.Forwarding(); fwd != nil {
			if err := fwd.PublishStreamEnd(s.StreamRecord()); err != nil {
				metrics.ForwardPublishFailures.WithLabelValues("stream_end").Inc()
				log.Warn("Failed to publish stream end", "error", err)
			}
		}
	}

	s.ClearStreamID()
	r.publisher.Stop(key)
}
