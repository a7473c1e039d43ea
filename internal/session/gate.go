package session

import (
	"fmt"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
	"github.com/Aniszorek/twitch-chat-relay/internal/logging"
	"github.com/Aniszorek/twitch-chat-relay/internal/metrics"
)

// Gate answers permission questions against the role stored in a live
// session. It holds a registry reference instead of reaching for globals so
// tests can build isolated instances.
type Gate struct {
	registry *Registry
}

func NewGate(registry *Registry) *Gate {
	return &Gate{registry: registry}
}

// Verify reports whether the session identified by key holds at least the
// required role. An unknown required or stored role is a data error, not a
// denial. Every decision is logged with the action it gates.
func (g *Gate) Verify(key string, required domain.Role, action string) (bool, error) {
	requiredLevel, ok := required.Level()
	if !ok {
		return false, fmt.Errorf("%w: required role %q", domain.ErrUnknownRole, required)
	}

	s, ok := g.registry.Get(key)
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, key)
	}

	role := s.Role()
	level, ok := role.Level()
	if !ok {
		return false, fmt.Errorf("%w: stored role %q", domain.ErrUnknownRole, role)
	}

	granted := level >= requiredLevel
	if granted {
		metrics.PermissionDecisions.WithLabelValues("granted").Inc()
		logging.WithUser(key).Debug("Permission granted",
			"action", action,
			"role", string(role),
			"required", string(required),
		)
	} else {
		metrics.PermissionDecisions.WithLabelValues("denied").Inc()
		logging.WithUser(key).Info("Permission denied",
			"action", action,
			"role", string(role),
			"required", string(required),
		)
	}

	return granted, nil
}
