package domain

import "fmt"

// Role is the resolved role of a dashboard user for a specific Twitch channel.
// Roles form a total order: Viewer < Moderator < Streamer. A higher role is
// granted everything a lower role is granted.
type Role string

const (
	RoleViewer    Role = "Viewer"
	RoleModerator Role = "Moderator"
	RoleStreamer  Role = "Streamer"
)

var roleLevels = map[Role]int{
	RoleViewer:    0,
	RoleModerator: 1,
	RoleStreamer:  2,
}

// Level returns the numeric rank of the role. The second return value is
// false for roles outside the known set.
func (r Role) Level() (int, bool) {
	level, ok := roleLevels[r]
	return level, ok
}

// ParseRole converts a raw role string into a Role. An unrecognized value is
// a data error, not a denial, and is reported as ErrUnknownRole.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleLevels[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}
