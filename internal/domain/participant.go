package domain

import "errors"

var ErrUnknownRole = errors.New("unknown role")

type Role string

const (
	RoleHost      Role = "host"
	RoleModerator Role = "moderator"
	RoleSpeaker   Role = "speaker"
	RoleListener  Role = "listener"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleHost, RoleModerator, RoleSpeaker, RoleListener:
		return r, nil
	}
	return "", ErrUnknownRole
}

// CanModerate reports whether the role may kick users or change roles.
func (r Role) CanModerate() bool {
	return r == RoleHost || r == RoleModerator
}

// Participant represents a user's membership meta for one room.
// Uniquely keyed by User.ID within a room. No transport state here.
type Participant struct {
	User  User `json:"user"`
	Role  Role `json:"role"`
	Muted bool `json:"isMuted"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(user User, role Role) Participant {
	return Participant{User: user, Role: role}
}
