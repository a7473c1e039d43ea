package orchestrator

import (
	"context"
	"time"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
	"github.com/Aniszorek/twitch-chat-relay/internal/platform/retry"
	"github.com/Aniszorek/twitch-chat-relay/internal/session"
)

const (
	revocationAttempts = 3
	revocationBackoff  = 500 * time.Millisecond
)

// Teardown runs the ordered teardown sequence for key. It holds the identity
// lock for key, so it cannot interleave with an in-flight Authenticate for
// the same identity; concurrent calls are collapsed. Tearing down an absent
// key is a no-op. Every step runs regardless of earlier step failures.
func (o *Service) Teardown(ctx context.Context, key string) {
	o.teardownGroup.Do(key, func() (any, error) {
		lock := o.identityLock(key)
		lock.Lock()
		defer lock.Unlock()
		o.teardown(ctx, key)
		return nil, nil
	})
}

// TeardownConn tears down the session for key only while conn is still its
// dashboard connection. A socket that was already replaced by a reconnect
// must not take the successor session down with it.
func (o *Service) TeardownConn(ctx context.Context, key string, conn domain.DashboardConn) {
	lock := o.identityLock(key)
	lock.Lock()
	defer lock.Unlock()

	s, ok := o.registry.Get(key)
	if !ok || s.Dashboard() != conn {
		return
	}
	o.teardown(ctx, key)
}

// teardownLocked is Teardown for callers that already hold the identity lock
// for key.
func (o *Service) teardownLocked(ctx context.Context, key string) {
	o.teardown(ctx, key)
}

func (o *Service) teardown(ctx context.Context, key string) {
	s, ok := o.registry.Get(key)
	if !ok {
		return
	}
	log := logging.WithUser(key)
	log.Info("Tearing down session")

	// Step 1: if a stream is still live, close the window and publish the
	// final record before any channel goes away.
	o.finishLiveStream(ctx, key, s)
	o.publisher.Stop(key)

	// Step 2: close the upstream and downstream channels.
	if es := s.EventSource(); es != nil {
		if err := es.Close(); err != nil {
			logging.WithError(err).Warn("Failed to close event-source channel", "user_id", key)
		}
	}
	if fwd := s.Forwarding(); fwd != nil {
		if err := fwd.Close(); err != nil {
			logging.WithError(err).Warn("Failed to close forwarding channel", "user_id", key)
		}
	}

	// Step 3: revoke subscriptions with bounded retry. A revocation that
	// still fails is dropped from tracking; the upstream side expires it
	// once the websocket session is gone.
	o.revokeSubscriptions(ctx, key, s)

	// Step 4: close the dashboard connection.
	if err := s.Dashboard().Close(); err != nil {
		logging.WithError(err).Warn("Failed to close dashboard connection", "user_id", key)
	}

	// Step 5: only now does the key become free for a new session.
	o.registry.Remove(key)
	metrics.SessionTeardowns.Inc()
	log.Info("Session torn down")
}

// finishLiveStream publishes the end-of-stream record when teardown preempts
// the stream-offline notification.
func (o *Service) finishLiveStream(ctx context.Context, key string, s *session.Session) {
	if _, live := s.StreamID(); !live {
		return
	}

	granted, err := o.gate.Verify(key, domain.RoleStreamer, "publish_stream_end")
	if err != nil || !granted {
		return
	}

	identity := s.Identity()
	log := logging.WithUser(key)

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	followers, err := o.channels.GetFollowerCount(callCtx, identity.BroadcasterUserID)
	if err != nil {
		log.Warn("Failed to fetch follower count at teardown", "error", err)
	}
	subscribers, err := o.channels.GetSubscriberCount(callCtx, identity.BroadcasterUserID)
	if err != nil {
		log.Warn("Failed to fetch subscriber count at teardown", "error", err)
	}

	s.CloseWindow(o.clock.Now(), followers, subscribers)

	fwd := s.Forwarding()
	if fwd == nil {
		return
	}
	if err := fwd.PublishStreamEnd(s.StreamRecord()); err != nil {
		metrics.ForwardPublishFailures.WithLabelValues("stream_end").Inc()
		log.Warn("Failed to publish stream end at teardown", "error", err)
	}
}

func (o *Service) revokeSubscriptions(ctx context.Context, key string, s *session.Session) {
	log := logging.WithUser(key)

	policy := retry.Policy{
		MaxAttempts:    revocationAttempts,
		InitialBackoff: revocationBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Warn("Retrying subscription revocation",
				"attempt", attempt,
				"error", err,
				"backoff", backoff,
			)
		},
	}

	for _, id := range s.SubscriptionIDs() {
		err := retry.DoVoid(ctx, policy, func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()
			return o.subs.DeleteSubscription(callCtx, id)
		})
		if err != nil {
			metrics.SubscriptionRevocationFailures.Inc()
			logging.WithError(err).Error("Dropping subscription after failed revocation",
				"user_id", key,
				"subscription_id", id,
			)
			continue
		}
		s.RemoveSubscription(id)
	}

	s.ClearSubscriptions()
}
